package market

import (
	"errors"

	"github.com/markcheno/go-talib"

	"tradecap/internal/model"
)

// 指标计算，输入按时间升序的K线序列

type Bar struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
	Vol   float64
}

const minBars = 40

// BuildIndicators 从K线序列计算快照所需的全部指标
func BuildIndicators(bars []Bar) (rsi14, ema20, atr float64, macdTrend model.MacdTrend, err error) {
	if len(bars) < minBars {
		return 0, 0, 0, model.MacdNeutral, errors.New("not enough bars for indicators")
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	rsiArr := talib.Rsi(closes, 14)
	rsi14 = rsiArr[len(rsiArr)-1]

	emaArr := talib.Ema(closes, 20)
	ema20 = emaArr[len(emaArr)-1]

	atrArr := talib.Atr(highs, lows, closes, 14)
	atr = atrArr[len(atrArr)-1]

	_, _, hist := talib.Macd(closes, 12, 26, 9)
	macdTrend = model.MacdNeutral
	if h := hist[len(hist)-1]; h > 0 {
		macdTrend = model.MacdBullish
	} else if h < 0 {
		macdTrend = model.MacdBearish
	}
	return
}

// VolumeRatio 最新量相对近n根均量的倍数
func VolumeRatio(bars []Bar, n int) float64 {
	if len(bars) < n+1 || n <= 0 {
		return 1
	}
	var sum float64
	for _, b := range bars[len(bars)-1-n : len(bars)-1] {
		sum += b.Vol
	}
	avg := sum / float64(n)
	if avg <= 0 {
		return 1
	}
	return bars[len(bars)-1].Vol / avg
}

// RecentHigh 近n根K线的最高价
func RecentHigh(bars []Bar, n int) float64 {
	if len(bars) == 0 {
		return 0
	}
	if n > len(bars) {
		n = len(bars)
	}
	high := 0.0
	for _, b := range bars[len(bars)-n:] {
		if b.High > high {
			high = b.High
		}
	}
	return high
}

// SupportResistance 用近n根的低点/高点粗略估计支撑与阻力
func SupportResistance(bars []Bar, n int, lastPrice float64) (support, resistance float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	if n > len(bars) {
		n = len(bars)
	}
	for _, b := range bars[len(bars)-n:] {
		if b.Low < lastPrice && b.Low > support {
			support = b.Low
		}
		if b.High > lastPrice && (resistance == 0 || b.High < resistance) {
			resistance = b.High
		}
	}
	return
}
