package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"tradecap/conf"
	"tradecap/internal/account"
	"tradecap/internal/consts"
	"tradecap/internal/exchange"
	"tradecap/internal/model"
	"tradecap/pkg/logger"
	"tradecap/pkg/recorder"
)

// 仓位管理器：每个币种最多一个仓位，状态机
// Pending -> Open -> PartiallyClosed -> Closed，失败路径 Failed / Stuck。
// 同一币种的操作串行，不同币种互不阻塞。

var ErrNoPosition = errors.New("no position for symbol")

type Manager struct {
	gw    exchange.Gateway
	retry *exchange.RetryPolicy
	store *account.Store
	sink  recorder.TradeSink
	node  *snowflake.Node

	mu        sync.Mutex
	positions map[string]*model.Position
	symLocks  map[string]*sync.Mutex

	// 入场成交确认的轮询节奏
	fillTimeout time.Duration
	fillPoll    time.Duration
}

func NewManager(gw exchange.Gateway, retry *exchange.RetryPolicy, store *account.Store, sink recorder.TradeSink) *Manager {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return &Manager{
		gw:          gw,
		retry:       retry,
		store:       store,
		sink:        sink,
		node:        node,
		positions:   make(map[string]*model.Position),
		symLocks:    make(map[string]*sync.Mutex),
		fillTimeout: 10 * time.Second,
		fillPoll:    time.Second,
	}
}

func (m *Manager) symLock(symbol string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.symLocks[symbol]
	if !ok {
		l = &sync.Mutex{}
		m.symLocks[symbol] = l
	}
	return l
}

// HasOpen 某币种是否已有仓位（含pending和stuck）
func (m *Manager) HasOpen(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.positions[symbol]
	return ok
}

// Get 返回仓位副本
func (m *Manager) Get(symbol string) (model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[symbol]
	if !ok {
		return model.Position{}, ErrNoPosition
	}
	return *p, nil
}

// List 所有仓位的副本
func (m *Manager) List() []model.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}

// ListStuck 冻结待人工处理的仓位
func (m *Manager) ListStuck() []model.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Position
	for _, p := range m.positions {
		if p.Status == model.PositionStuck {
			out = append(out, *p)
		}
	}
	return out
}

// Symbols 当前有仓位的币种
func (m *Manager) Symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.positions))
	for s := range m.positions {
		out = append(out, s)
	}
	return out
}

// Open 执行一条放行指令：入场、确认成交、挂保护单。
// 保证金已由风控占用，这里负责失败路径的释放。
func (m *Manager) Open(ctx context.Context, order *model.SizedOrder, p conf.Params) (*model.Position, error) {
	lock := m.symLock(order.Symbol)
	lock.Lock()
	defer lock.Unlock()

	if m.HasOpen(order.Symbol) {
		m.store.Release(order.Notional)
		return nil, fmt.Errorf("position already open for %s", order.Symbol)
	}

	pos := &model.Position{
		Id:           m.node.Generate().Int64(),
		Symbol:       order.Symbol,
		Side:         order.Side,
		Status:       model.PositionPending,
		Leverage:     order.Leverage,
		Notional:     order.Notional,
		InitNotional: order.Notional,
		Confidence:   order.Confidence,
		Rationale:    order.Rationale,
	}
	m.mu.Lock()
	m.positions[order.Symbol] = pos
	m.mu.Unlock()

	// 1. 入场单
	var result *model.OrderResult
	err := m.retry.Do(ctx, func() error {
		var err error
		result, err = m.gw.PlaceEntry(ctx, order)
		return err
	})
	if err != nil {
		m.fail(pos, order.Notional, "entry failed: "+err.Error())
		return nil, err
	}
	pos.EntryId = result.OrderId

	// 2. 成交确认，超时走对账
	filled, err := m.confirmFill(ctx, pos, result)
	if err != nil {
		// 对账确认一张都没成交，撤单后放弃
		_ = m.gw.CancelOrder(ctx, pos.Symbol, pos.EntryId)
		m.fail(pos, order.Notional, "fill not confirmed: "+err.Error())
		return nil, err
	}

	if filled.State != model.FillFilled {
		// 部分成交：撤掉剩余挂单，已成交的部分照常接管挂保护，
		// 保证金按实际成交比例缩减，不能把裸仓丢在交易所
		_ = m.gw.CancelOrder(ctx, pos.Symbol, pos.EntryId)
		adopted := order.Notional
		if order.Quantity > 0 {
			adopted = order.Notional * (filled.FilledQty / order.Quantity)
		}
		if unfilled := order.Notional - adopted; unfilled > 0 {
			m.store.ReleasePartial(unfilled)
		}
		pos.Notional = adopted
		pos.InitNotional = adopted
		logger.Warn("partial entry fill adopted",
			logger.Pair("symbol", pos.Symbol),
			logger.Pair("filled", filled.FilledQty),
			logger.Pair("requested", order.Quantity))
	}

	pos.Entry = filled.AvgPrice
	pos.Quantity = filled.FilledQty
	pos.InitQty = filled.FilledQty
	pos.Fees = filled.Fee
	pos.OpenedAt = time.Now()

	// 3. 止损价：ATR换算后夹在固定区间内
	pos.StopLoss = StopLossFromAtr(pos.Side, pos.Entry, order.Atr, p)
	pos.Targets = takeProfitTargets(pos.Side, pos.Entry, p)

	// 4. 保护单齐备才算Open，失败则兜底市价平掉
	if err := m.protect(ctx, pos, p); err != nil {
		return nil, err
	}

	pos.Status = model.PositionOpen
	logger.Info("position open",
		logger.Pair("symbol", pos.Symbol),
		logger.Pair("side", pos.Side),
		logger.Pair("entry", pos.Entry),
		logger.Pair("qty", pos.Quantity),
		logger.Pair("stop_loss", pos.StopLoss))
	return pos, nil
}

func (m *Manager) confirmFill(ctx context.Context, pos *model.Position, result *model.OrderResult) (*model.OrderResult, error) {
	if result.State == model.FillFilled {
		return result, nil
	}
	deadline := time.Now().Add(m.fillTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.fillPoll):
		}
		q, err := m.gw.QueryFillStatus(ctx, pos.Symbol, pos.EntryId)
		if err != nil {
			continue
		}
		switch q.State {
		case model.FillFilled:
			return q, nil
		case model.FillCanceled:
			if q.FilledQty > 0 {
				// 撤单前已经部分成交，这部分必须接管
				return q, nil
			}
			return nil, errors.New("entry order canceled by exchange")
		}
	}
	// 超时后最后一次对账，有成交量就接管，不能只认全部成交
	q, err := m.gw.QueryFillStatus(ctx, pos.Symbol, pos.EntryId)
	if err == nil && (q.State == model.FillFilled || q.FilledQty > 0) {
		return q, nil
	}
	return nil, errors.New("entry fill timeout")
}

// protect 挂止损和第一档止盈，重试耗尽后强制平仓兜底
func (m *Manager) protect(ctx context.Context, pos *model.Position, p conf.Params) error {
	err := m.retry.Do(ctx, func() error {
		id, err := m.gw.PlaceStopLoss(ctx, pos.Symbol, pos.Side, pos.Quantity, pos.StopLoss)
		if err == nil {
			pos.StopId = id
		}
		return err
	})
	if err == nil && len(pos.Targets) > 0 {
		err = m.retry.Do(ctx, func() error {
			id, err := m.gw.PlaceTakeProfit(ctx, pos.Symbol, pos.Side,
				pos.InitQty*pos.Targets[0].Fraction, pos.Targets[0].Price)
			if err == nil {
				pos.TpId = id
			}
			return err
		})
	}
	if err == nil {
		return nil
	}

	// 裸仓不过夜：保护单挂不上就立即市价退出
	logger.Error("protective orders failed, force closing",
		logger.Pair("symbol", pos.Symbol), logger.Pair("err", err.Error()))
	if closeErr := m.closeRemaining(ctx, pos, consts.ExitReasonForceClose); closeErr != nil {
		return fmt.Errorf("protection failed and force close failed: %v / %v", err, closeErr)
	}
	return fmt.Errorf("protection failed, position force closed: %w", err)
}

func (m *Manager) fail(pos *model.Position, notional float64, note string) {
	pos.Status = model.PositionFailed
	pos.StuckNote = note
	m.store.Release(notional)
	m.remove(pos.Symbol)
	logger.Warn("position entry failed",
		logger.Pair("symbol", pos.Symbol), logger.Pair("note", note))
}

func (m *Manager) remove(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, symbol)
}

func (m *Manager) markStuck(pos *model.Position, note string) {
	pos.Status = model.PositionStuck
	pos.StuckNote = note
	// 保证金不释放，实际持仓状态未知，等人工核对
	logger.Error("position stuck",
		logger.Pair("symbol", pos.Symbol), logger.Pair("note", note))
}
