package strategy

import (
	"context"
	"testing"
	"time"

	"tradecap/conf"
	"tradecap/internal/account"
	"tradecap/internal/consts"
	"tradecap/internal/exchange"
	"tradecap/internal/market"
	"tradecap/internal/model"
	"tradecap/internal/position"
	"tradecap/internal/risk"
	"tradecap/internal/signal"
)

type memSink struct {
	trades []*model.CompletedTrade
}

func (s *memSink) Record(ctx context.Context, t *model.CompletedTrade) error {
	s.trades = append(s.trades, t)
	return nil
}

func testParams() conf.Params {
	var p conf.Params
	p.FillDefaults()
	p.Symbols = []string{"SOL/USDT"}
	return p
}

func goodSnapshot(symbol string) *model.Snapshot {
	return &model.Snapshot{
		Symbol:      symbol,
		Price:       110,
		Price1hAgo:  108,
		Price24hAgo: 100,
		Volume24h:   20_000_000,
		VolumeRatio: 2.2,
		Rsi14:       55,
		MacdTrend:   model.MacdBullish,
		Ema20:       105,
		Atr:         1.2,
		RecentHigh:  118,
		Support:     107,
		MarketCap:   500_000_000,
		Timestamp:   time.Now(),
	}
}

func testEngine(p conf.Params) (*Engine, *market.StaticFeed, *exchange.SimulatedGateway, *position.Manager, *memSink) {
	feed := market.NewStaticFeed()
	gw := exchange.NewSimulatedGateway()
	gw.FreezePrices()
	store := account.NewStore(p.StartingCapital)
	sink := &memSink{}
	retry := exchange.NewRetryPolicy(conf.RetryConf{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	pm := position.NewManager(gw, retry, store, sink)
	riskEngine := risk.NewEngine(store, risk.NewMemoryCooldown(), pm.HasOpen)
	e := NewEngine(feed, signal.NewEvaluator(), riskEngine, pm, p)
	return e, feed, gw, pm, sink
}

// 完整链路：快照 -> 信号 -> 准入 -> 开仓
func TestScanOpensPosition(t *testing.T) {
	p := testParams()
	e, feed, gw, pm, _ := testEngine(p)
	gw.SetPrice("SOL/USDT", 110)
	feed.Put(goodSnapshot("SOL/USDT"))
	feed.SetBenchmarkMove(0.03)

	e.ScanOnce(context.Background())
	e.wg.Wait()

	if !pm.HasOpen("SOL/USDT") {
		t.Fatal("scan should have opened a position")
	}
	pos, err := pm.Get("SOL/USDT")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pos.Status != model.PositionOpen {
		t.Fatalf("expected open, got %v", pos.Status)
	}
}

// 已有仓位的币种本轮直接跳过
func TestScanSkipsOpenSymbol(t *testing.T) {
	p := testParams()
	e, feed, gw, pm, _ := testEngine(p)
	gw.SetPrice("SOL/USDT", 110)
	feed.Put(goodSnapshot("SOL/USDT"))

	e.ScanOnce(context.Background())
	e.wg.Wait()
	first, _ := pm.Get("SOL/USDT")

	e.ScanOnce(context.Background())
	e.wg.Wait()
	second, _ := pm.Get("SOL/USDT")
	if first.Id != second.Id {
		t.Fatal("second scan must not replace the open position")
	}
}

// 基准币种崩盘只暂停准入，绝不自动清仓
func TestCrashSuspendsAdmissionOnly(t *testing.T) {
	p := testParams()
	e, feed, gw, pm, _ := testEngine(p)
	gw.SetPrice("SOL/USDT", 110)
	feed.Put(goodSnapshot("SOL/USDT"))

	e.ScanOnce(context.Background())
	e.wg.Wait()
	if !pm.HasOpen("SOL/USDT") {
		t.Fatal("setup: position expected")
	}

	feed.SetBenchmarkMove(-0.12)
	e.RiskCheckOnce(context.Background())
	if e.AdmissionOpen() {
		t.Fatal("crash must suspend admission")
	}
	if !pm.HasOpen("SOL/USDT") {
		t.Fatal("crash must not liquidate positions")
	}

	// 行情恢复后准入自动恢复
	feed.SetBenchmarkMove(0.01)
	e.RiskCheckOnce(context.Background())
	if !e.AdmissionOpen() {
		t.Fatal("admission should restore after recovery")
	}
}

func TestPauseBlocksAdmission(t *testing.T) {
	p := testParams()
	e, feed, gw, pm, _ := testEngine(p)
	gw.SetPrice("SOL/USDT", 110)
	feed.Put(goodSnapshot("SOL/USDT"))

	e.Pause()
	e.ScanOnce(context.Background())
	e.wg.Wait()
	if pm.HasOpen("SOL/USDT") {
		t.Fatal("paused engine must not open positions")
	}

	e.Resume()
	e.ScanOnce(context.Background())
	e.wg.Wait()
	if !pm.HasOpen("SOL/USDT") {
		t.Fatal("resumed engine should open positions again")
	}
}

func TestEmergencyStopClosesAll(t *testing.T) {
	p := testParams()
	e, feed, gw, pm, sink := testEngine(p)
	gw.SetPrice("SOL/USDT", 110)
	feed.Put(goodSnapshot("SOL/USDT"))

	e.ScanOnce(context.Background())
	e.wg.Wait()

	e.EmergencyStop(context.Background(), true)
	if pm.HasOpen("SOL/USDT") {
		t.Fatal("emergency stop with closeAll must liquidate")
	}
	if len(sink.trades) != 1 || sink.trades[0].ExitReason != consts.ExitReasonEmergency {
		t.Fatalf("expected emergency trade record, got %+v", sink.trades)
	}
	if e.AdmissionOpen() {
		t.Fatal("engine must stay stopped")
	}

	// 停止后扫描不再开仓
	e.ScanOnce(context.Background())
	e.wg.Wait()
	if pm.HasOpen("SOL/USDT") {
		t.Fatal("stopped engine must not admit signals")
	}
}

func TestMonitorTicksPositions(t *testing.T) {
	p := testParams()
	e, feed, gw, pm, sink := testEngine(p)
	gw.SetPrice("SOL/USDT", 110)
	feed.Put(goodSnapshot("SOL/USDT"))

	e.ScanOnce(context.Background())
	e.wg.Wait()
	pos, _ := pm.Get("SOL/USDT")

	gw.SetPrice("SOL/USDT", pos.StopLoss*0.99)
	e.MonitorOnce(context.Background())
	if pm.HasOpen("SOL/USDT") {
		t.Fatal("monitor should close stopped-out positions")
	}
	if len(sink.trades) != 1 || sink.trades[0].ExitReason != consts.ExitReasonStopLoss {
		t.Fatalf("expected stop-loss record, got %+v", sink.trades)
	}
}

func TestUpdateParams(t *testing.T) {
	p := testParams()
	e, _, _, _, _ := testEngine(p)
	p2 := testParams()
	p2.MaxOpenPositions = 2
	e.UpdateParams(p2)
	if got := e.Params(); got.MaxOpenPositions != 2 {
		t.Fatalf("params not swapped: %+v", got.MaxOpenPositions)
	}
}
