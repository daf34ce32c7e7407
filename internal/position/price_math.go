package position

import (
	"tradecap/conf"
	"tradecap/internal/model"
)

// 价格计算的纯函数，方向相关的比较都集中在这里

// StopLossFromAtr ATR驱动的止损幅度，夹在[min,max]
func StopLossFromAtr(side model.Side, entry, atr float64, p conf.Params) float64 {
	pct := p.StopLossMin
	if entry > 0 && atr > 0 {
		pct = atr / entry * p.AtrStopMultiple
		if pct < p.StopLossMin {
			pct = p.StopLossMin
		}
		if pct > p.StopLossMax {
			pct = p.StopLossMax
		}
	}
	if side == model.SideLong {
		return entry * (1 - pct)
	}
	return entry * (1 + pct)
}

func takeProfitTargets(side model.Side, entry float64, p conf.Params) []model.TakeProfitTarget {
	targets := make([]model.TakeProfitTarget, 0, len(p.TakeProfits))
	for _, tp := range p.TakeProfits {
		price := entry * (1 + tp.GainPct/100)
		if side == model.SideShort {
			price = entry * (1 - tp.GainPct/100)
		}
		targets = append(targets, model.TakeProfitTarget{Price: price, Fraction: tp.Fraction})
	}
	return targets
}

// calcTighterSL 根据最新价格动态计算收紧止损
// lockProfitRatio: 锁定的最低盈利比例（例如 0.5 = 锁住至少一半浮盈）
func calcTighterSL(side model.Side, entry, lastPrice, lockProfitRatio float64) float64 {
	if entry <= 0 || lastPrice <= 0 {
		return 0
	}
	switch side {
	case model.SideLong:
		profit := lastPrice - entry
		if profit <= 0 {
			// 没有盈利，不移动止损
			return 0
		}
		return entry + profit*lockProfitRatio
	case model.SideShort:
		profit := entry - lastPrice
		if profit <= 0 {
			return 0
		}
		return entry - profit*lockProfitRatio
	}
	return 0
}

// trailPrice 允许回吐buffer比例的浮盈后触发
func trailPrice(side model.Side, entry, extreme, buffer float64) float64 {
	if side == model.SideLong {
		gained := extreme - entry
		if gained <= 0 {
			return 0
		}
		return extreme - gained*buffer
	}
	gained := entry - extreme
	if gained <= 0 {
		return 0
	}
	return extreme + gained*buffer
}

// crossedStop 价格是否触发止损/移动止损
func crossedStop(side model.Side, last, stop float64) bool {
	if side == model.SideLong {
		return last <= stop
	}
	return last >= stop
}

// crossedTarget 价格是否触达止盈目标
func crossedTarget(side model.Side, last, target float64) bool {
	if side == model.SideLong {
		return last >= target
	}
	return last <= target
}

// tighter 新止损是否比旧的更紧
func tighter(side model.Side, candidate, current float64) bool {
	if candidate <= 0 {
		return false
	}
	if current <= 0 {
		return true
	}
	if side == model.SideLong {
		return candidate > current
	}
	return candidate < current
}

// favourable 价格相对极值是否更有利
func favourable(side model.Side, last, extreme float64) bool {
	if side == model.SideLong {
		return last > extreme
	}
	return last < extreme
}

func grossPnl(side model.Side, entry, exit, qty float64) float64 {
	if side == model.SideLong {
		return (exit - entry) * qty
	}
	return (entry - exit) * qty
}
