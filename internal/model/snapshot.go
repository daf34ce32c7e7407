package model

import "time"

// MacdTrend MACD 方向
type MacdTrend string

const (
	MacdBullish MacdTrend = "bullish"
	MacdBearish MacdTrend = "bearish"
	MacdNeutral MacdTrend = "neutral"
)

// Snapshot 单币种的行情快照，评估时只读
type Snapshot struct {
	Symbol       string    `json:"symbol"`
	Price        float64   `json:"price"`
	Price1hAgo   float64   `json:"price_1h_ago"`
	Price24hAgo  float64   `json:"price_24h_ago"`
	Volume24h    float64   `json:"volume_24h"`    // 24小时成交额(USDT)
	VolumeRatio  float64   `json:"volume_ratio"`  // 当前量相对均量的倍数
	Rsi14        float64   `json:"rsi_14"`
	MacdTrend    MacdTrend `json:"macd_trend"`
	Ema20        float64   `json:"ema_20"`
	Atr          float64   `json:"atr"`
	RecentHigh   float64   `json:"recent_high"`
	Support      float64   `json:"support"`    // 最近支撑位，0表示未识别
	Resistance   float64   `json:"resistance"` // 最近阻力位，0表示未识别
	MarketCap    float64   `json:"market_cap"`
	Timestamp    time.Time `json:"timestamp"`
}

// PriceGain24h 24小时涨跌幅(%)
func (s *Snapshot) PriceGain24h() float64 {
	if s.Price24hAgo <= 0 {
		return 0
	}
	return (s.Price - s.Price24hAgo) / s.Price24hAgo * 100
}

// PriceGain1h 1小时涨跌幅(%)
func (s *Snapshot) PriceGain1h() float64 {
	if s.Price1hAgo <= 0 {
		return 0
	}
	return (s.Price - s.Price1hAgo) / s.Price1hAgo * 100
}

// PullbackPct 距离近期高点的回撤幅度(%)
func (s *Snapshot) PullbackPct() float64 {
	if s.RecentHigh <= 0 {
		return 0
	}
	return (s.RecentHigh - s.Price) / s.RecentHigh * 100
}

// IsStale 快照是否超龄
func (s *Snapshot) IsStale(maxAge time.Duration, now time.Time) bool {
	return now.Sub(s.Timestamp) > maxAge
}

// BenchmarkTrend 大盘基准趋势
type BenchmarkTrend string

const (
	BenchmarkBullish BenchmarkTrend = "bullish"
	BenchmarkNeutral BenchmarkTrend = "neutral"
	BenchmarkBearish BenchmarkTrend = "bearish"
)

// MarketContext 大盘上下文，一轮扫描内共享
type MarketContext struct {
	Trend          BenchmarkTrend `json:"trend"`
	BenchmarkMove  float64        `json:"benchmark_move"` // 基准币种24小时涨跌(小数，-0.1=-10%)
	Timestamp      time.Time      `json:"timestamp"`
}
