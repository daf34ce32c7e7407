package conf

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"time"
)

// 配置加载（API密钥、风控参数等）

type Okx struct {
	ApiKey    string `yaml:"apiKey"`
	SecretKey string `yaml:"secretKey"`
	Password  string `yaml:"password"`
	Simulated bool   `yaml:"simulated"`
}

type Db struct {
	DbName   string `yaml:"dbname"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	TimeFormat string `yaml:"time-format"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local-time"`
	Console    bool   `yaml:"console"`
}

// RedisConfig is used to configure redis
type RedisConfig struct {
	Addr         string `yaml:"address"`
	Password     string `yaml:"password"`
	Db           int    `yaml:"db"`
	PoolSize     int    `yaml:"pool-size"`
	MinIdleConns int    `yaml:"min-idle-conns"`
	IdleTimeout  int    `yaml:"idle-timeout"`
}

type KafkaConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

// 趋势多头规则集的过滤条件
type LongCriteria struct {
	PriceGain24hMin float64 `yaml:"price-gain-24h-min"` // 24小时最小涨幅(%)
	PriceGain24hMax float64 `yaml:"price-gain-24h-max"` // 超过视为追高
	PriceGain1hMin  float64 `yaml:"price-gain-1h-min"`
	PriceGain1hMax  float64 `yaml:"price-gain-1h-max"`
	VolumeRatioMin  float64 `yaml:"volume-ratio-min"` // 相对均量的最小倍数
	RsiMin          float64 `yaml:"rsi-min"`
	RsiMax          float64 `yaml:"rsi-max"`
	MarketCapMin    float64 `yaml:"market-cap-min"`
	Volume24hMin    float64 `yaml:"volume-24h-min"`
	PullbackMin     float64 `yaml:"pullback-min"` // 距离近期高点的回撤区间(%)
	PullbackMax     float64 `yaml:"pullback-max"`
}

// 均值回归空头规则集，只在极端超买时触发
type ShortCriteria struct {
	PriceGain24hMin float64 `yaml:"price-gain-24h-min"` // 过度拉升门槛
	RsiMin          float64 `yaml:"rsi-min"`            // 极端超买
	VolumeRatioMax  float64 `yaml:"volume-ratio-max"`   // 买盘衰竭
	SizeMultiplier  float64 `yaml:"size-multiplier"`    // 空单缩小仓位
}

type TakeProfitConf struct {
	GainPct  float64 `yaml:"gain-pct"` // 相对开仓价的盈利幅度(%)
	Fraction float64 `yaml:"fraction"` // 触发时平掉的比例(0~1)
}

type RetryConf struct {
	MaxAttempts int           `yaml:"max-attempts"`
	BaseDelay   time.Duration `yaml:"base-delay"`
	MaxDelay    time.Duration `yaml:"max-delay"`
}

// Params 风控与调度参数快照。
// 调用方按值持有，不允许原地修改；热更新时整体替换。
type Params struct {
	Symbols   []string `yaml:"symbols"`
	Benchmark string   `yaml:"benchmark"` // 大盘基准币种

	// ---- 信号准入 ----
	MinConfidenceLong  float64       `yaml:"min-confidence-long"`
	MinConfidenceShort float64       `yaml:"min-confidence-short"`
	Cooldown           time.Duration `yaml:"cooldown"` // 同币种重复开仓冷却

	// ---- 仓位规模 ----
	MaxPositionFraction float64 `yaml:"max-position-fraction"`
	MinPositionFraction float64 `yaml:"min-position-fraction"`
	MaxTotalExposure    float64 `yaml:"max-total-exposure"`
	MaxOpenPositions    int     `yaml:"max-open-positions"`
	MaxLeverage         int     `yaml:"max-leverage"`
	MaxLeverageShort    int     `yaml:"max-leverage-short"`

	// ---- 亏损限额（占本金比例，只看已实现盈亏） ----
	DailyLossLimit  float64 `yaml:"daily-loss-limit"`
	WeeklyLossLimit float64 `yaml:"weekly-loss-limit"`

	// ---- 保护单 ----
	StopLossMin     float64          `yaml:"stop-loss-min"` // 止损区间 0.06=6%
	StopLossMax     float64          `yaml:"stop-loss-max"`
	AtrStopMultiple float64          `yaml:"atr-stop-multiple"`
	TakeProfits     []TakeProfitConf `yaml:"take-profits"`
	TrailingBuffer  float64          `yaml:"trailing-buffer"` // 允许回吐的浮盈比例

	// ---- 过滤规则集 ----
	Long  LongCriteria  `yaml:"long"`
	Short ShortCriteria `yaml:"short"`

	// ---- 调度节奏 ----
	ScanInterval      time.Duration `yaml:"scan-interval"`
	MonitorInterval   time.Duration `yaml:"monitor-interval"`
	RiskCheckInterval time.Duration `yaml:"risk-check-interval"`
	StaleAfter        time.Duration `yaml:"stale-after"` // 快照超龄视为过期

	// ---- 熔断 ----
	CrashThreshold float64 `yaml:"crash-threshold"` // 基准币种跌幅阈值 -0.10=-10%

	// ---- 网关重试 ----
	Retry RetryConf `yaml:"retry"`

	// ---- 资金 ----
	StartingCapital float64 `yaml:"starting-capital"`
}

type Config struct {
	AppName      string `yaml:"app_name"`
	Listen       string `yaml:"listen"`
	Mode         string `yaml:"mode"`
	Language     string `yaml:"language"`
	MaxPingCount int    `yaml:"max-ping-count"` // 启动健康检查最长等待秒数

	Okx     `yaml:"okx"`
	Db      `yaml:"database"`
	Log     LogConfig   `yaml:"log"`
	Redis   RedisConfig `yaml:"redis"`
	Kafka   KafkaConfig `yaml:"kafka"`
	Trading Params      `yaml:"trading"`
}

var AppConfig Config

func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Read config file error %w", err)
	}
	if err := yaml.Unmarshal(data, &AppConfig); err != nil {
		return fmt.Errorf("Unmarshal config yaml error: %w", err)
	}
	AppConfig.Trading.FillDefaults()
	return nil
}

// FillDefaults 为未配置的参数补默认值
func (p *Params) FillDefaults() {
	if len(p.Symbols) == 0 {
		p.Symbols = []string{"BTC/USDT", "ETH/USDT", "SOL/USDT", "DOGE/USDT", "LTC/USDT"}
	}
	if p.Benchmark == "" {
		p.Benchmark = "BTC/USDT"
	}
	if p.MinConfidenceLong == 0 {
		p.MinConfidenceLong = 0.60
	}
	if p.MinConfidenceShort == 0 {
		p.MinConfidenceShort = 0.75
	}
	if p.Cooldown == 0 {
		p.Cooldown = 30 * time.Minute
	}
	if p.MaxPositionFraction == 0 {
		p.MaxPositionFraction = 0.12
	}
	if p.MinPositionFraction == 0 {
		p.MinPositionFraction = 0.02
	}
	if p.MaxTotalExposure == 0 {
		p.MaxTotalExposure = 0.60
	}
	if p.MaxOpenPositions == 0 {
		p.MaxOpenPositions = 6
	}
	if p.MaxLeverage == 0 {
		p.MaxLeverage = 5
	}
	if p.MaxLeverageShort == 0 {
		p.MaxLeverageShort = 3
	}
	if p.DailyLossLimit == 0 {
		p.DailyLossLimit = 0.05
	}
	if p.WeeklyLossLimit == 0 {
		p.WeeklyLossLimit = 0.15
	}
	if p.StopLossMin == 0 {
		p.StopLossMin = 0.06
	}
	if p.StopLossMax == 0 {
		p.StopLossMax = 0.08
	}
	if p.AtrStopMultiple == 0 {
		p.AtrStopMultiple = 2.0
	}
	if len(p.TakeProfits) == 0 {
		p.TakeProfits = []TakeProfitConf{
			{GainPct: 8, Fraction: 0.5},
			{GainPct: 20, Fraction: 0.5},
		}
	}
	if p.TrailingBuffer == 0 {
		p.TrailingBuffer = 0.15
	}
	if p.Long == (LongCriteria{}) {
		p.Long = LongCriteria{
			PriceGain24hMin: 3,
			PriceGain24hMax: 50,
			PriceGain1hMin:  0.5,
			PriceGain1hMax:  12,
			VolumeRatioMin:  1.5,
			RsiMin:          30,
			RsiMax:          80,
			MarketCapMin:    10_000_000,
			Volume24hMin:    1_000_000,
			PullbackMin:     1,
			PullbackMax:     25,
		}
	}
	if p.Short == (ShortCriteria{}) {
		p.Short = ShortCriteria{
			PriceGain24hMin: 80,
			RsiMin:          85,
			VolumeRatioMax:  2,
			SizeMultiplier:  0.7,
		}
	}
	if p.ScanInterval == 0 {
		p.ScanInterval = 2 * time.Minute
	}
	if p.MonitorInterval == 0 {
		p.MonitorInterval = 30 * time.Second
	}
	if p.RiskCheckInterval == 0 {
		p.RiskCheckInterval = 10 * time.Second
	}
	if p.StaleAfter == 0 {
		p.StaleAfter = p.ScanInterval
	}
	if p.CrashThreshold == 0 {
		p.CrashThreshold = -0.10
	}
	if p.Retry.MaxAttempts == 0 {
		p.Retry = RetryConf{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
	}
	if p.StartingCapital == 0 {
		p.StartingCapital = 50000
	}
}
