package position

import (
	"context"
	"time"

	"tradecap/conf"
	"tradecap/internal/consts"
	"tradecap/internal/model"
	"tradecap/pkg/logger"
)

// 监控tick：止损 -> 阶梯止盈 -> 移动止损，顺序固定。
// tick幂等，已触发的目标带Filled标记，重复执行不会二次平仓。

// Tick 检查单个仓位。同币种串行，调度器保证不并发重入。
func (m *Manager) Tick(ctx context.Context, symbol string, p conf.Params) error {
	lock := m.symLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	pos, ok := m.positions[symbol]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if !pos.Live() {
		// pending/stuck仓位不参与监控
		return nil
	}

	// 不变量：活跃仓位必须有止损。破坏则冻结该币种，其余币种继续
	if pos.StopLoss <= 0 {
		m.markStuck(pos, "invariant violated: live position without stop-loss")
		return nil
	}

	last, err := m.gw.LastPrice(symbol)
	if err != nil || last <= 0 {
		// 拿不到价格跳过本轮，下一轮重试
		return err
	}

	// 1. 止损
	if crossedStop(pos.Side, last, pos.StopLoss) {
		return m.closeRemaining(ctx, pos, consts.ExitReasonStopLoss)
	}

	// 2. 阶梯止盈，按顺序只触发未成交的目标
	for i := range pos.Targets {
		t := &pos.Targets[i]
		if t.Filled || !crossedTarget(pos.Side, last, t.Price) {
			continue
		}
		qty := pos.InitQty * t.Fraction
		if qty >= pos.Quantity {
			// 最后一档直接全平
			return m.closeRemaining(ctx, pos, consts.ExitReasonTakeProfit)
		}
		if err := m.closePartial(ctx, pos, qty, t.Fraction); err != nil {
			return err
		}
		t.Filled = true
		pos.Status = model.PositionPartiallyClosed

		if i == 0 {
			// 交易所侧的第一档止盈单已经没有对应仓位，撤掉防止重复触发
			if pos.TpId != "" {
				if err := m.gw.CancelOrder(ctx, pos.Symbol, pos.TpId); err != nil {
					logger.Warn("cancel take-profit order failed",
						logger.Pair("symbol", pos.Symbol), logger.Pair("err", err.Error()))
				}
				pos.TpId = ""
			}
			// 第一档成交后锁定部分浮盈并启动移动止损
			if newSL := calcTighterSL(pos.Side, pos.Entry, last, 0.5); newSL > 0 && tighter(pos.Side, newSL, pos.StopLoss) {
				pos.StopLoss = newSL
			}
			pos.Trailing.Armed = true
			pos.Trailing.ExtremePx = last
			pos.Trailing.TrailPrice = trailPrice(pos.Side, pos.Entry, last, p.TrailingBuffer)
		}
	}

	// 3. 移动止损，只收紧
	if pos.Trailing.Armed {
		if favourable(pos.Side, last, pos.Trailing.ExtremePx) {
			pos.Trailing.ExtremePx = last
			if np := trailPrice(pos.Side, pos.Entry, last, p.TrailingBuffer); tighter(pos.Side, np, pos.Trailing.TrailPrice) {
				pos.Trailing.TrailPrice = np
			}
		}
		if pos.Trailing.TrailPrice > 0 && crossedStop(pos.Side, last, pos.Trailing.TrailPrice) {
			return m.closeRemaining(ctx, pos, consts.ExitReasonTrailing)
		}
	}
	return nil
}

// TickAll 对所有币种各跑一次tick
func (m *Manager) TickAll(ctx context.Context, p conf.Params) {
	for _, symbol := range m.Symbols() {
		if err := m.Tick(ctx, symbol, p); err != nil {
			logger.Warn("position tick failed",
				logger.Pair("symbol", symbol), logger.Pair("err", err.Error()))
		}
	}
}

// ForceCloseAll 市价平掉所有活跃仓位（紧急停止）
func (m *Manager) ForceCloseAll(ctx context.Context, reason string) {
	for _, symbol := range m.Symbols() {
		lock := m.symLock(symbol)
		lock.Lock()
		m.mu.Lock()
		pos, ok := m.positions[symbol]
		m.mu.Unlock()
		if ok && pos.Live() {
			if err := m.closeRemaining(ctx, pos, reason); err != nil {
				logger.Error("force close failed",
					logger.Pair("symbol", symbol), logger.Pair("err", err.Error()))
			}
		}
		lock.Unlock()
	}
}

// closePartial 平掉一部分，已实现盈亏立即入账
func (m *Manager) closePartial(ctx context.Context, pos *model.Position, qty, fraction float64) error {
	var result *model.OrderResult
	err := m.retry.Do(ctx, func() error {
		var err error
		result, err = m.gw.ClosePositionMarket(ctx, pos.Symbol, pos.Side, qty)
		return err
	})
	if err != nil {
		return err
	}

	gross := grossPnl(pos.Side, pos.Entry, result.AvgPrice, qty)
	net := gross - result.Fee
	pos.Quantity -= qty
	pos.Realized += gross
	pos.Fees += result.Fee

	released := pos.Notional * fraction
	pos.Notional -= released
	m.store.ReleasePartial(released)
	m.store.ApplyRealized(net)

	logger.Info("partial close",
		logger.Pair("symbol", pos.Symbol),
		logger.Pair("qty", qty),
		logger.Pair("price", result.AvgPrice),
		logger.Pair("net_pnl", net))
	return nil
}

// closeRemaining 平掉剩余全部，生成成交记录。
// 平仓反复失败时冻结仓位而不是让引擎崩溃。
func (m *Manager) closeRemaining(ctx context.Context, pos *model.Position, reason string) error {
	var result *model.OrderResult
	err := m.retry.Do(ctx, func() error {
		var err error
		result, err = m.gw.ClosePositionMarket(ctx, pos.Symbol, pos.Side, pos.Quantity)
		return err
	})
	if err != nil {
		m.markStuck(pos, "close failed: "+err.Error())
		return err
	}

	// 撤掉交易所侧的保护单（止损+止盈），留着会在平仓后再触发，
	// 凭空开出反向敞口。撤单失败只记日志
	for _, oid := range []string{pos.StopId, pos.TpId} {
		if oid == "" {
			continue
		}
		if err := m.gw.CancelOrder(ctx, pos.Symbol, oid); err != nil {
			logger.Warn("cancel protective order failed",
				logger.Pair("symbol", pos.Symbol), logger.Pair("order_id", oid), logger.Pair("err", err.Error()))
		}
	}

	gross := grossPnl(pos.Side, pos.Entry, result.AvgPrice, pos.Quantity)
	pos.Realized += gross
	pos.Fees += result.Fee
	net := gross - result.Fee

	m.store.Release(pos.Notional)
	m.store.ApplyRealized(net)

	pos.Status = model.PositionClosed
	pos.ExitPrice = result.AvgPrice
	pos.ExitReason = reason
	pos.ClosedAt = time.Now()

	trade := &model.CompletedTrade{
		TradeId:    pos.Id,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		Entry:      pos.Entry,
		Exit:       result.AvgPrice,
		Quantity:   pos.InitQty,
		Notional:   pos.InitNotional,
		Leverage:   pos.Leverage,
		GrossPnl:   pos.Realized,
		Fees:       pos.Fees,
		NetPnl:     pos.Realized - pos.Fees,
		ExitReason: reason,
		Confidence: pos.Confidence,
		Rationale:  pos.Rationale,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   pos.ClosedAt,
		Duration:   pos.ClosedAt.Sub(pos.OpenedAt),
	}
	if m.sink != nil {
		if err := m.sink.Record(ctx, trade); err != nil {
			logger.Warn("trade record failed",
				logger.Pair("symbol", pos.Symbol), logger.Pair("err", err.Error()))
		}
	}

	m.remove(pos.Symbol)
	logger.Info("position closed",
		logger.Pair("symbol", pos.Symbol),
		logger.Pair("reason", reason),
		logger.Pair("net_pnl", trade.NetPnl))
	return nil
}
