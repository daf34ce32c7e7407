package signal

import (
	"time"

	"tradecap/conf"
	"tradecap/internal/model"
	"tradecap/pkg/logger"
)

// 信号评估器：对单币种快照依次跑两套规则集。
// 无状态，冷却等准入控制在风控层。

type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate 评估一个快照，两套规则都命中时趋势多头优先。
// 快照过期返回nil，本轮跳过该币种，不算错误。
func (e *Evaluator) Evaluate(snap *model.Snapshot, mctx *model.MarketContext, p conf.Params) *model.Signal {
	now := time.Now()
	if snap.IsStale(p.StaleAfter, now) {
		logger.Debug("snapshot stale, skip", logger.Pair("symbol", snap.Symbol))
		return nil
	}

	if sig := e.evaluateLong(snap, mctx, p, now); sig != nil {
		return sig
	}
	return e.evaluateShort(snap, mctx, p, now)
}

// 趋势多头：有量的温和上涨 + 健康回调
func (e *Evaluator) evaluateLong(snap *model.Snapshot, mctx *model.MarketContext, p conf.Params, now time.Time) *model.Signal {
	c := p.Long
	gain24 := snap.PriceGain24h()
	gain1 := snap.PriceGain1h()
	pullback := snap.PullbackPct()

	// 过滤条件按代价从低到高排列，任何一条不满足立即出局
	if snap.MarketCap > 0 && snap.MarketCap < c.MarketCapMin {
		return nil
	}
	if snap.Volume24h < c.Volume24hMin {
		return nil
	}
	if gain24 < c.PriceGain24hMin || gain24 > c.PriceGain24hMax {
		return nil
	}
	if gain1 < c.PriceGain1hMin || gain1 > c.PriceGain1hMax {
		return nil
	}
	if snap.VolumeRatio < c.VolumeRatioMin {
		return nil
	}
	if snap.Rsi14 < c.RsiMin || snap.Rsi14 > c.RsiMax {
		return nil
	}
	if pullback < c.PullbackMin || pullback > c.PullbackMax {
		return nil
	}

	// 置信度：各依据加权累计，封顶1.0
	var confidence float64
	var rationale []model.RationaleEntry
	add := func(metric string, weight float64) {
		confidence += weight
		rationale = append(rationale, model.RationaleEntry{Metric: metric, Weight: weight})
	}

	if gain24 >= 10 {
		add("strong_24h_gain", 0.25)
	} else {
		add("moderate_24h_gain", 0.15)
	}
	if snap.Rsi14 >= 45 && snap.Rsi14 <= 65 {
		add("rsi_sweet_band", 0.20)
	} else {
		add("rsi_acceptable", 0.10)
	}
	if snap.VolumeRatio >= 2 {
		add("volume_surge", 0.20)
	} else {
		add("volume_elevated", 0.15)
	}
	if snap.MacdTrend == model.MacdBullish {
		add("macd_bullish", 0.15)
	}
	if snap.Ema20 > 0 && snap.Price > snap.Ema20 {
		add("above_ema20", 0.10)
	}
	if pullback >= 3 && pullback <= 15 {
		add("healthy_pullback", 0.15)
	}
	// 支撑位在5%以内
	if snap.Support > 0 && (snap.Price-snap.Support)/snap.Price <= 0.05 {
		add("near_support", 0.10)
	}
	if mctx != nil && mctx.Trend == model.BenchmarkBullish {
		add("benchmark_bullish", 0.05)
	}

	if confidence > 1 {
		confidence = 1
	}
	return &model.Signal{
		Symbol:     snap.Symbol,
		Side:       model.SideLong,
		Confidence: confidence,
		Price:      snap.Price,
		Rationale:  rationale,
		CreatedAt:  now,
	}
}

// 均值回归空头：只做极端超买的衰竭行情
func (e *Evaluator) evaluateShort(snap *model.Snapshot, mctx *model.MarketContext, p conf.Params, now time.Time) *model.Signal {
	c := p.Short
	gain24 := snap.PriceGain24h()

	if gain24 < c.PriceGain24hMin {
		return nil
	}
	if snap.Rsi14 < c.RsiMin {
		return nil
	}
	// 量能还在放大说明买盘未衰竭，不做空
	if snap.VolumeRatio >= c.VolumeRatioMax {
		return nil
	}

	var confidence float64
	var rationale []model.RationaleEntry
	add := func(metric string, weight float64) {
		confidence += weight
		rationale = append(rationale, model.RationaleEntry{Metric: metric, Weight: weight})
	}

	if gain24 >= 100 {
		add("parabolic_24h_gain", 0.30)
	} else {
		add("excessive_24h_gain", 0.20)
	}
	if snap.Rsi14 >= 90 {
		add("rsi_extreme", 0.25)
	} else {
		add("rsi_overbought", 0.15)
	}
	add("volume_fading", 0.20)
	if snap.MacdTrend == model.MacdBearish {
		add("macd_bearish", 0.15)
	}
	// 下方没有近支撑，回落空间大
	if snap.Support == 0 || (snap.Price-snap.Support)/snap.Price > 0.10 {
		add("no_near_support", 0.10)
	}
	if mctx != nil && mctx.Trend == model.BenchmarkBearish {
		add("benchmark_bearish", 0.05)
	}

	if confidence > 1 {
		confidence = 1
	}
	return &model.Signal{
		Symbol:     snap.Symbol,
		Side:       model.SideShort,
		Confidence: confidence,
		Price:      snap.Price,
		Rationale:  rationale,
		CreatedAt:  now,
	}
}
