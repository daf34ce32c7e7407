package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	gm "github.com/nntaoli-project/goex/v2/model"

	"tradecap/internal/exchange"
	"tradecap/internal/model"
)

var ErrNoData = errors.New("no market data for symbol")

// OkxFeed 基于OKX永续K线构建快照，1小时周期
type OkxFeed struct {
	gw        *exchange.OkxGateway
	benchmark string
	// 市值没有行情接口，由外部喂入，0表示未知
	marketCaps map[string]float64
}

func NewOkxFeed(gw *exchange.OkxGateway, benchmark string) *OkxFeed {
	return &OkxFeed{
		gw:         gw,
		benchmark:  benchmark,
		marketCaps: make(map[string]float64),
	}
}

// SetMarketCap 设置币种市值（来自外部数据源）
func (f *OkxFeed) SetMarketCap(symbol string, cap float64) {
	f.marketCaps[symbol] = cap
}

func (f *OkxFeed) bars(ctx context.Context, symbol string, size int) ([]Bar, error) {
	klines, err := f.gw.GetKlineRecords(ctx, symbol, gm.Kline_1h, size)
	if err != nil {
		return nil, err
	}
	bars := make([]Bar, 0, len(klines))
	// goex返回时间降序，翻转为升序
	for i := len(klines) - 1; i >= 0; i-- {
		k := klines[i]
		bars = append(bars, Bar{Open: k.Open, High: k.High, Low: k.Low, Close: k.Close, Vol: k.Vol})
	}
	return bars, nil
}

func (f *OkxFeed) Snapshot(ctx context.Context, symbol string) (*model.Snapshot, error) {
	bars, err := f.bars(ctx, symbol, 100)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoData, err)
	}
	if len(bars) < minBars {
		return nil, ErrNoData
	}

	rsi14, ema20, atr, macdTrend, err := BuildIndicators(bars)
	if err != nil {
		return nil, err
	}

	last := bars[len(bars)-1]
	price := last.Close
	var price1h, price24h float64
	if len(bars) >= 2 {
		price1h = bars[len(bars)-2].Close
	}
	if len(bars) >= 25 {
		price24h = bars[len(bars)-25].Close
	}

	var volume24h float64
	n := 24
	if n > len(bars) {
		n = len(bars)
	}
	for _, b := range bars[len(bars)-n:] {
		volume24h += b.Vol * b.Close
	}

	recentHigh := RecentHigh(bars, 24)
	support, resistance := SupportResistance(bars, 48, price)

	return &model.Snapshot{
		Symbol:      symbol,
		Price:       price,
		Price1hAgo:  price1h,
		Price24hAgo: price24h,
		Volume24h:   volume24h,
		VolumeRatio: VolumeRatio(bars, 20),
		Rsi14:       rsi14,
		MacdTrend:   macdTrend,
		Ema20:       ema20,
		Atr:         atr,
		RecentHigh:  recentHigh,
		Support:     support,
		Resistance:  resistance,
		MarketCap:   f.marketCaps[symbol],
		Timestamp:   time.Now(),
	}, nil
}

func (f *OkxFeed) Context(ctx context.Context) (*model.MarketContext, error) {
	bars, err := f.bars(ctx, f.benchmark, 30)
	if err != nil {
		return nil, err
	}
	if len(bars) < 25 {
		return nil, ErrNoData
	}
	last := bars[len(bars)-1].Close
	ago := bars[len(bars)-25].Close
	move := 0.0
	if ago > 0 {
		move = (last - ago) / ago
	}
	return &model.MarketContext{
		Trend:         ClassifyBenchmark(move),
		BenchmarkMove: move,
		Timestamp:     time.Now(),
	}, nil
}
