package position

import (
	"context"
	"sync"
	"testing"
	"time"

	"tradecap/conf"
	"tradecap/internal/account"
	"tradecap/internal/consts"
	"tradecap/internal/exchange"
	"tradecap/internal/model"
)

type memSink struct {
	mu     sync.Mutex
	trades []*model.CompletedTrade
}

func (s *memSink) Record(ctx context.Context, t *model.CompletedTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

func testParams() conf.Params {
	var p conf.Params
	p.FillDefaults()
	return p
}

func testSetup() (*Manager, *exchange.SimulatedGateway, *account.Store, *memSink) {
	gw := exchange.NewSimulatedGateway()
	gw.FreezePrices()
	store := account.NewStore(50000)
	sink := &memSink{}
	retry := exchange.NewRetryPolicy(conf.RetryConf{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	})
	m := NewManager(gw, retry, store, sink)
	return m, gw, store, sink
}

func testOrder(store *account.Store) *model.SizedOrder {
	// 模拟风控已放行并占用保证金
	if err := store.Reserve(5000); err != nil {
		panic(err)
	}
	return &model.SizedOrder{
		Symbol:     "SOL/USDT",
		Side:       model.SideLong,
		Price:      100,
		Quantity:   200, // 5000 * 4x / 100
		Notional:   5000,
		Leverage:   4,
		Fraction:   0.10,
		Atr:        1.5,
		Confidence: 0.62,
	}
}

// 场景：放行的指令完成 Pending -> Open，止损和止盈齐备
func TestOpenLifecycle(t *testing.T) {
	m, gw, store, _ := testSetup()
	gw.SetPrice("SOL/USDT", 100)

	pos, err := m.Open(context.Background(), testOrder(store), testParams())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if pos.Status != model.PositionOpen {
		t.Fatalf("expected open, got %v", pos.Status)
	}
	if pos.StopLoss <= 0 || pos.StopLoss >= pos.Entry {
		t.Fatalf("long stop-loss must sit below entry: sl=%v entry=%v", pos.StopLoss, pos.Entry)
	}
	if len(pos.Targets) != 2 || pos.Targets[0].Price <= pos.Entry {
		t.Fatalf("take-profit targets malformed: %+v", pos.Targets)
	}
	// 止损幅度在6%~8%之间
	slPct := (pos.Entry - pos.StopLoss) / pos.Entry
	if slPct < 0.059 || slPct > 0.081 {
		t.Fatalf("stop-loss pct %v outside bounds", slPct)
	}
	if !m.HasOpen("SOL/USDT") {
		t.Fatal("manager must track the position")
	}
	if st := store.Snapshot(); st.Committed != 5000 {
		t.Fatalf("reservation must be held while open: %+v", st)
	}
}

// 场景：入场单只成交一部分，已成交的部分必须接管挂保护，
// 剩余挂单撤掉，保证金按实际成交比例缩减，绝不整单放弃
func TestPartialEntryFillAdopted(t *testing.T) {
	m, gw, store, sink := testSetup()
	gw.SetPrice("SOL/USDT", 100)
	gw.PartialFillNext(80) // 200张只成交80张
	m.fillTimeout = 50 * time.Millisecond
	m.fillPoll = 10 * time.Millisecond

	pos, err := m.Open(context.Background(), testOrder(store), testParams())
	if err != nil {
		t.Fatalf("partial fill must be adopted, got %v", err)
	}
	if pos.Status != model.PositionOpen {
		t.Fatalf("expected open, got %v", pos.Status)
	}
	if pos.Quantity != 80 || pos.InitQty != 80 {
		t.Fatalf("position must hold the filled quantity: %+v", pos)
	}
	// 5000 * 80/200 = 2000
	if pos.Notional != 2000 || pos.InitNotional != 2000 {
		t.Fatalf("notional must shrink to the filled share: %+v", pos)
	}
	st := store.Snapshot()
	if st.Committed != 2000 || st.OpenCount != 1 {
		t.Fatalf("unfilled margin must be released, filled share kept: %+v", st)
	}
	if pos.StopId == "" || pos.TpId == "" {
		t.Fatal("adopted fill must still get protective orders")
	}
	// 剩余挂单必须已撤掉
	if _, err := gw.QueryFillStatus(context.Background(), "SOL/USDT", pos.EntryId); err == nil {
		t.Fatal("entry order remainder must be canceled")
	}

	// 退出路径照常走，记录里是实际开仓的保证金
	gw.SetPrice("SOL/USDT", pos.StopLoss*0.99)
	if err := m.Tick(context.Background(), "SOL/USDT", testParams()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if st := store.Snapshot(); st.Committed != 0 || st.OpenCount != 0 {
		t.Fatalf("all margin must be released on close: %+v", st)
	}
	if sink.count() != 1 || sink.trades[0].Notional != 2000 {
		t.Fatalf("trade record must carry the adopted notional, got %+v", sink.trades)
	}
}

// 场景：止损退出后交易所侧的止盈单必须一并撤掉，
// 留着会在无仓位时触发，凭空开出反向敞口
func TestExitCancelsProtectiveOrders(t *testing.T) {
	m, gw, store, _ := testSetup()
	gw.SetPrice("SOL/USDT", 100)
	pos, err := m.Open(context.Background(), testOrder(store), testParams())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if pos.StopId == "" || pos.TpId == "" {
		t.Fatalf("both protective order ids must be tracked: %+v", pos)
	}

	gw.SetPrice("SOL/USDT", pos.StopLoss*0.99)
	if err := m.Tick(context.Background(), "SOL/USDT", testParams()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if _, err := gw.QueryFillStatus(context.Background(), "SOL/USDT", pos.StopId); err == nil {
		t.Fatal("stop-loss order must be canceled after exit")
	}
	if _, err := gw.QueryFillStatus(context.Background(), "SOL/USDT", pos.TpId); err == nil {
		t.Fatal("take-profit order must be canceled after exit")
	}
	if st := store.Snapshot(); st.Committed != 0 {
		t.Fatalf("margin must be released: %+v", st)
	}
}

func TestOpenRejectsDuplicateSymbol(t *testing.T) {
	m, gw, store, _ := testSetup()
	gw.SetPrice("SOL/USDT", 100)
	if _, err := m.Open(context.Background(), testOrder(store), testParams()); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := m.Open(context.Background(), testOrder(store), testParams()); err == nil {
		t.Fatal("second open on same symbol must fail")
	}
	// 重复指令的保证金必须被退回
	if st := store.Snapshot(); st.Committed != 5000 {
		t.Fatalf("duplicate order reservation must be released: %+v", st)
	}
}

func TestStopLossClosesPosition(t *testing.T) {
	m, gw, store, sink := testSetup()
	gw.SetPrice("SOL/USDT", 100)
	pos, err := m.Open(context.Background(), testOrder(store), testParams())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	gw.SetPrice("SOL/USDT", pos.StopLoss*0.99)
	if err := m.Tick(context.Background(), "SOL/USDT", testParams()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if m.HasOpen("SOL/USDT") {
		t.Fatal("position should be closed after stop-loss")
	}
	if sink.count() != 1 || sink.trades[0].ExitReason != consts.ExitReasonStopLoss {
		t.Fatalf("expected one stop-loss trade, got %+v", sink.trades)
	}
	st := store.Snapshot()
	if st.Committed != 0 || st.OpenCount != 0 {
		t.Fatalf("reservation must be released on close: %+v", st)
	}
	if st.RealizedDay >= 0 {
		t.Fatalf("stop-loss must book a realized loss, got %v", st.RealizedDay)
	}
}

// 场景：TP1触发平一半并启动移动止损，随后回撤触发移动止损退出
func TestStagedTakeProfitAndTrailing(t *testing.T) {
	m, gw, store, sink := testSetup()
	gw.SetPrice("SOL/USDT", 100)
	p := testParams()
	pos, err := m.Open(context.Background(), testOrder(store), p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	initQty := pos.Quantity
	tpOrderId := pos.TpId

	// 价格到TP1上方
	gw.SetPrice("SOL/USDT", pos.Targets[0].Price*1.001)
	if err := m.Tick(context.Background(), "SOL/USDT", p); err != nil {
		t.Fatalf("tick tp1: %v", err)
	}
	got, err := m.Get("SOL/USDT")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.PositionPartiallyClosed {
		t.Fatalf("expected partially closed, got %v", got.Status)
	}
	if got.Quantity >= initQty {
		t.Fatal("tp1 must shrink the position")
	}
	if !got.Targets[0].Filled {
		t.Fatal("tp1 must be marked filled")
	}
	if !got.Trailing.Armed {
		t.Fatal("trailing must arm after first target")
	}
	// TP1的市价平仓完成后，交易所侧同档的止盈单撤掉防止二次触发
	if got.TpId != "" {
		t.Fatal("exchange-side tp order must be cleared after tp1 fill")
	}
	if _, err := gw.QueryFillStatus(context.Background(), "SOL/USDT", tpOrderId); err == nil {
		t.Fatal("exchange-side tp order must be canceled after tp1 fill")
	}
	if !(got.StopLoss > pos.Entry*0.95) || got.StopLoss <= pos.StopLoss {
		t.Fatalf("stop-loss must tighten toward break-even: %v -> %v", pos.StopLoss, got.StopLoss)
	}
	// tick幂等：同价位重复tick不再平仓
	qtyAfter := got.Quantity
	if err := m.Tick(context.Background(), "SOL/USDT", p); err != nil {
		t.Fatalf("repeat tick: %v", err)
	}
	got, _ = m.Get("SOL/USDT")
	if got.Quantity != qtyAfter {
		t.Fatal("repeated tick must be idempotent")
	}

	// 继续上行，移动止损只收紧
	gw.SetPrice("SOL/USDT", got.Targets[0].Price*1.05)
	if err := m.Tick(context.Background(), "SOL/USDT", p); err != nil {
		t.Fatalf("tick run-up: %v", err)
	}
	after, _ := m.Get("SOL/USDT")
	if after.Trailing.TrailPrice <= got.Trailing.TrailPrice {
		t.Fatal("trail price must tighten on new extreme")
	}

	// 回撤跌破trail，剩余仓位退出
	gw.SetPrice("SOL/USDT", after.Trailing.TrailPrice*0.99)
	if err := m.Tick(context.Background(), "SOL/USDT", p); err != nil {
		t.Fatalf("tick trail exit: %v", err)
	}
	if m.HasOpen("SOL/USDT") {
		t.Fatal("position should be fully closed")
	}
	if sink.count() != 1 || sink.trades[0].ExitReason != consts.ExitReasonTrailing {
		t.Fatalf("expected trailing exit trade, got %+v", sink.trades)
	}
	if sink.trades[0].NetPnl <= 0 {
		t.Fatalf("trailing exit after run-up should be profitable, got %v", sink.trades[0].NetPnl)
	}
	// 成交记录里是开仓时的保证金，不是部分平仓后的残值
	if sink.trades[0].Notional != 5000 {
		t.Fatalf("trade record must carry the opening notional, got %v", sink.trades[0].Notional)
	}
	if st := store.Snapshot(); st.Committed != 0 || st.OpenCount != 0 {
		t.Fatalf("all margin must be released: %+v", st)
	}
}

// 场景：保护单重试耗尽后强制平仓兜底，资金退回，记录落盘
func TestProtectionFailureForceCloses(t *testing.T) {
	m, gw, store, sink := testSetup()
	gw.SetPrice("SOL/USDT", 100)
	gw.FailNext("PlaceStopLoss", 10) // 超过重试上限

	_, err := m.Open(context.Background(), testOrder(store), testParams())
	if err == nil {
		t.Fatal("open must fail when protection cannot be placed")
	}
	if m.HasOpen("SOL/USDT") {
		t.Fatal("failed position must not remain tracked")
	}
	st := store.Snapshot()
	if st.Committed != 0 || st.OpenCount != 0 {
		t.Fatalf("reservation must be released after force close: %+v", st)
	}
	if sink.count() != 1 || sink.trades[0].ExitReason != consts.ExitReasonForceClose {
		t.Fatalf("force close must be recorded, got %+v", sink.trades)
	}
}

func TestEntryFailureReleasesReservation(t *testing.T) {
	m, gw, store, _ := testSetup()
	gw.SetPrice("SOL/USDT", 100)
	gw.FailNext("PlaceEntry", 10)

	if _, err := m.Open(context.Background(), testOrder(store), testParams()); err == nil {
		t.Fatal("open must fail when entry cannot be placed")
	}
	if st := store.Snapshot(); st.Committed != 0 || st.OpenCount != 0 {
		t.Fatalf("reservation must be released: %+v", st)
	}
}

func TestForceCloseAll(t *testing.T) {
	m, gw, store, sink := testSetup()
	gw.SetPrice("SOL/USDT", 100)
	if _, err := m.Open(context.Background(), testOrder(store), testParams()); err != nil {
		t.Fatalf("open: %v", err)
	}

	m.ForceCloseAll(context.Background(), consts.ExitReasonEmergency)
	if m.HasOpen("SOL/USDT") {
		t.Fatal("all positions must close")
	}
	if sink.count() != 1 || sink.trades[0].ExitReason != consts.ExitReasonEmergency {
		t.Fatalf("expected emergency exit record, got %+v", sink.trades)
	}
	if st := store.Snapshot(); st.Committed != 0 {
		t.Fatalf("margin must be released: %+v", st)
	}
}

// 平仓反复失败时仓位冻结，引擎不崩，资金不释放
func TestCloseFailureMarksStuck(t *testing.T) {
	m, gw, store, _ := testSetup()
	gw.SetPrice("SOL/USDT", 100)
	pos, err := m.Open(context.Background(), testOrder(store), testParams())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	gw.FailNext("ClosePositionMarket", 10)
	gw.SetPrice("SOL/USDT", pos.StopLoss*0.99)
	if err := m.Tick(context.Background(), "SOL/USDT", testParams()); err == nil {
		t.Fatal("tick should surface the close failure")
	}
	stuck := m.ListStuck()
	if len(stuck) != 1 || stuck[0].Symbol != "SOL/USDT" {
		t.Fatalf("expected one stuck position, got %+v", stuck)
	}
	// 实际持仓状态未知，保证金保持占用等人工核对
	if st := store.Snapshot(); st.Committed != 5000 {
		t.Fatalf("stuck position must keep its reservation: %+v", st)
	}
	// 冻结仓位不再参与tick
	if err := m.Tick(context.Background(), "SOL/USDT", testParams()); err != nil {
		t.Fatalf("stuck position tick must be a no-op: %v", err)
	}
}
