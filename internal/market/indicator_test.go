package market

import (
	"math"
	"testing"

	"tradecap/internal/model"
)

func risingBars(n int) []Bar {
	bars := make([]Bar, n)
	price := 100.0
	for i := range bars {
		price *= 1.01
		bars[i] = Bar{
			Open:  price * 0.995,
			High:  price * 1.005,
			Low:   price * 0.99,
			Close: price,
			Vol:   1000,
		}
	}
	return bars
}

func TestBuildIndicatorsRising(t *testing.T) {
	bars := risingBars(60)
	rsi, ema, atr, macd, err := BuildIndicators(bars)
	if err != nil {
		t.Fatalf("build indicators: %v", err)
	}
	// 持续上涨，RSI应偏高，MACD应为多头
	if rsi < 60 {
		t.Fatalf("expected high rsi on rising series, got %v", rsi)
	}
	if macd != model.MacdBullish {
		t.Fatalf("expected bullish macd, got %v", macd)
	}
	if ema <= 0 || atr <= 0 {
		t.Fatalf("ema/atr must be positive, got %v %v", ema, atr)
	}
}

func TestBuildIndicatorsTooFewBars(t *testing.T) {
	if _, _, _, _, err := BuildIndicators(risingBars(10)); err == nil {
		t.Fatal("expected error on short series")
	}
}

func TestVolumeRatio(t *testing.T) {
	bars := risingBars(30)
	bars[len(bars)-1].Vol = 3000 // 最新量是均量3倍
	ratio := VolumeRatio(bars, 20)
	if math.Abs(ratio-3.0) > 0.01 {
		t.Fatalf("expected ratio ~3, got %v", ratio)
	}
}

func TestRecentHighAndPullback(t *testing.T) {
	bars := risingBars(30)
	peak := bars[len(bars)-1].High
	if high := RecentHigh(bars, 24); math.Abs(high-peak) > 1e-9 {
		t.Fatalf("expected recent high %v, got %v", peak, high)
	}
}

func TestSupportResistance(t *testing.T) {
	bars := risingBars(30)
	last := bars[len(bars)-1].Close
	support, resistance := SupportResistance(bars, 24, last)
	if support <= 0 || support >= last {
		t.Fatalf("support should be below price, got %v (price %v)", support, last)
	}
	// 上涨序列里最后的high可能是唯一高于price的
	if resistance != 0 && resistance <= last {
		t.Fatalf("resistance should be above price, got %v", resistance)
	}
}

func TestClassifyBenchmark(t *testing.T) {
	cases := []struct {
		move float64
		want model.BenchmarkTrend
	}{
		{0.03, model.BenchmarkBullish},
		{0.01, model.BenchmarkNeutral},
		{-0.03, model.BenchmarkNeutral},
		{-0.06, model.BenchmarkBearish},
	}
	for _, c := range cases {
		if got := ClassifyBenchmark(c.move); got != c.want {
			t.Fatalf("move %v: expected %v, got %v", c.move, c.want, got)
		}
	}
}
