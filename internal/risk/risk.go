package risk

import (
	"context"
	"fmt"
	"time"

	"tradecap/conf"
	"tradecap/internal/account"
	"tradecap/internal/model"
	"tradecap/pkg/logger"
)

// 风控引擎：信号准入 + 仓位规模。
// 准入检查按序执行，任何一条失败立即返回拒绝；
// 拒绝是预期结果，记一条日志后丢弃，不属于故障。

// HasOpenPosition 查询某币种是否已有在持仓位
type HasOpenPosition func(symbol string) bool

type Engine struct {
	store    *account.Store
	cooldown CooldownStore
	hasOpen  HasOpenPosition
}

func NewEngine(store *account.Store, cooldown CooldownStore, hasOpen HasOpenPosition) *Engine {
	return &Engine{store: store, cooldown: cooldown, hasOpen: hasOpen}
}

func reject(symbol, format string, args ...any) *model.Rejection {
	return &model.Rejection{Symbol: symbol, Reason: fmt.Sprintf(format, args...)}
}

// Admit 对信号做准入与定size。放行时已原子占用保证金并写入冷却；
// 返回*model.Rejection表示拒绝。
func (e *Engine) Admit(ctx context.Context, sig *model.Signal, snap *model.Snapshot, p conf.Params) (*model.SizedOrder, error) {
	// 1. 置信度硬门槛，先于一切
	threshold := p.MinConfidenceLong
	if sig.Side == model.SideShort {
		threshold = p.MinConfidenceShort
	}
	if sig.Confidence < threshold {
		return nil, reject(sig.Symbol, "confidence %.2f below threshold %.2f", sig.Confidence, threshold)
	}

	// 2. 单币种唯一仓位
	if e.hasOpen != nil && e.hasOpen(sig.Symbol) {
		return nil, reject(sig.Symbol, "position already open")
	}

	// 3. 冷却期
	if e.cooldown != nil {
		active, err := e.cooldown.Active(ctx, sig.Symbol)
		if err != nil {
			// 冷却查询失败按保守处理，当次拒绝
			return nil, reject(sig.Symbol, "cooldown check failed: %v", err)
		}
		if active {
			return nil, reject(sig.Symbol, "cooldown active")
		}
	}

	st := e.store.Snapshot()

	// 4. 日/周亏损限额，只看已实现盈亏
	if st.RealizedDay <= -p.DailyLossLimit*st.Capital {
		return nil, reject(sig.Symbol, "daily loss limit reached: %.2f", st.RealizedDay)
	}
	if st.RealizedWeek <= -p.WeeklyLossLimit*st.Capital {
		return nil, reject(sig.Symbol, "weekly loss limit reached: %.2f", st.RealizedWeek)
	}

	// 5. 仓位数上限
	if st.OpenCount >= p.MaxOpenPositions {
		return nil, reject(sig.Symbol, "max open positions %d reached", p.MaxOpenPositions)
	}

	// 6. 定size后检查总敞口
	fraction := e.sizeFraction(sig, snap, p)
	notional := fraction * st.Capital
	if st.Committed+notional > p.MaxTotalExposure*st.Capital {
		return nil, reject(sig.Symbol, "exposure cap: committed %.0f + %.0f > %.0f",
			st.Committed, notional, p.MaxTotalExposure*st.Capital)
	}

	leverage := e.leverage(sig, snap, p)

	// 7. 原子占用保证金，并发信号不会超占
	if err := e.store.Reserve(notional); err != nil {
		return nil, reject(sig.Symbol, "reserve failed: %v", err)
	}
	if e.cooldown != nil {
		if err := e.cooldown.Start(ctx, sig.Symbol, p.Cooldown); err != nil {
			logger.Warn("cooldown start failed", logger.Pair("symbol", sig.Symbol), logger.Pair("err", err.Error()))
		}
	}

	qty := notional * float64(leverage) / sig.Price

	logger.Info("signal admitted",
		logger.Pair("symbol", sig.Symbol),
		logger.Pair("side", sig.Side),
		logger.Pair("confidence", sig.Confidence),
		logger.Pair("fraction", fraction),
		logger.Pair("leverage", leverage))

	var atr float64
	if snap != nil {
		atr = snap.Atr
	}
	return &model.SizedOrder{
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Price:      sig.Price,
		Quantity:   qty,
		Notional:   notional,
		Leverage:   leverage,
		Fraction:   fraction,
		Atr:        atr,
		Confidence: sig.Confidence,
		Rationale:  sig.Rationale,
		CreatedAt:  time.Now(),
	}, nil
}

// sizeFraction 基础比例随置信度线性增长，再做折减，最后夹到[min,max]
func (e *Engine) sizeFraction(sig *model.Signal, snap *model.Snapshot, p conf.Params) float64 {
	var fraction float64
	if sig.Side == model.SideLong {
		fraction = 0.08 + 0.04*sig.Confidence
	} else {
		fraction = (0.05 + 0.03*sig.Confidence) * p.Short.SizeMultiplier
	}

	if snap != nil {
		// 小市值折减
		if snap.MarketCap > 0 && snap.MarketCap < 5*p.Long.MarketCapMin {
			fraction -= 0.02
		}
		// 低流动性折减
		if snap.Volume24h < 5*p.Long.Volume24hMin {
			fraction -= 0.02
		}
		// 涨幅勉强达标折减
		if g := snap.PriceGain24h(); g >= 0 && g < p.Long.PriceGain24hMin*1.5 {
			fraction -= 0.01
		}
	}

	if fraction < p.MinPositionFraction {
		fraction = p.MinPositionFraction
	}
	if fraction > p.MaxPositionFraction {
		fraction = p.MaxPositionFraction
	}
	return fraction
}

// leverage 波动越大杠杆越低，空头另设上限
func (e *Engine) leverage(sig *model.Signal, snap *model.Snapshot, p conf.Params) int {
	lev := 4
	if snap != nil && snap.Price > 0 && snap.Atr > 0 {
		// 小时ATR占价格的比例作为波动代理
		volPct := snap.Atr / snap.Price * 100
		switch {
		case volPct > 5:
			lev = 2
		case volPct > 3:
			lev = 3
		}
	}
	max := p.MaxLeverage
	if sig.Side == model.SideShort {
		max = p.MaxLeverageShort
	}
	if lev > max {
		lev = max
	}
	if lev < 1 {
		lev = 1
	}
	return lev
}
