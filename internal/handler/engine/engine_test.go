package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tradecap/conf"
	"tradecap/internal/account"
	"tradecap/internal/exchange"
	"tradecap/internal/market"
	"tradecap/internal/model"
	"tradecap/internal/position"
	"tradecap/internal/risk"
	"tradecap/internal/signal"
	"tradecap/internal/strategy"
)

func testParams() conf.Params {
	var p conf.Params
	p.FillDefaults()
	p.Symbols = []string{"SOL/USDT"}
	return p
}

func testHandler(p conf.Params) (*Handler, *exchange.SimulatedGateway, *position.Manager, *account.Store) {
	gw := exchange.NewSimulatedGateway()
	gw.FreezePrices()
	store := account.NewStore(p.StartingCapital)
	retry := exchange.NewRetryPolicy(conf.RetryConf{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	})
	pm := position.NewManager(gw, retry, store, nil)
	riskEngine := risk.NewEngine(store, risk.NewMemoryCooldown(), pm.HasOpen)
	e := strategy.NewEngine(market.NewStaticFeed(), signal.NewEvaluator(), riskEngine, pm, p)
	return NewHandler(e, pm, store, nil), gw, pm, store
}

func postJSON(target, body string) (*gin.Context, *httptest.ResponseRecorder, func()) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	reqCtx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body)).WithContext(reqCtx)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w, cancel
}

// 场景：客户端发出紧急停止后断开连接，平仓流程必须继续走完，
// 首次平仓失败也要能重试成功，不能留下冻结仓位
func TestEmergencyStopSurvivesClientDisconnect(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := testParams()
	h, gw, pm, store := testHandler(p)
	gw.SetPrice("SOL/USDT", 100)

	if err := store.Reserve(5000); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	order := &model.SizedOrder{
		Symbol:     "SOL/USDT",
		Side:       model.SideLong,
		Price:      100,
		Quantity:   200,
		Notional:   5000,
		Leverage:   4,
		Atr:        1.5,
		Confidence: 0.62,
	}
	if _, err := pm.Open(context.Background(), order, p); err != nil {
		t.Fatalf("open: %v", err)
	}

	gw.FailNext("ClosePositionMarket", 1)
	c, w, cancel := postJSON("/api/v1/engine/emergency-stop", `{"confirm":"EMERGENCY","close_all":true}`)
	cancel() // 请求上下文已取消，模拟连接断开
	h.EmergencyStop()(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if pm.HasOpen("SOL/USDT") {
		t.Fatal("liquidation must finish after client disconnect")
	}
	if len(pm.ListStuck()) != 0 {
		t.Fatalf("no position should be stuck: %+v", pm.ListStuck())
	}
	if snap := store.Snapshot(); snap.Committed != 0 {
		t.Fatalf("margin not released: %+v", snap)
	}
}

// confirm字段不对直接拒绝，引擎不停止
func TestEmergencyStopRequiresConfirm(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := testParams()
	h, _, _, _ := testHandler(p)

	c, w, cancel := postJSON("/api/v1/engine/emergency-stop", `{"close_all":true}`)
	defer cancel()
	h.EmergencyStop()(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
