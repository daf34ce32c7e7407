package api

import (
	"time"

	"gorm.io/gorm"

	"tradecap/conf"
	"tradecap/internal/account"
	"tradecap/internal/dao"
	"tradecap/internal/exchange"
	"tradecap/internal/handler/engine"
	"tradecap/internal/handler/monitor"
	"tradecap/internal/market"
	"tradecap/internal/position"
	"tradecap/internal/risk"
	"tradecap/internal/router"
	"tradecap/internal/signal"
	"tradecap/internal/strategy"
	"tradecap/pkg/cache"
	"tradecap/pkg/kafka"
	"tradecap/pkg/logger"
	"tradecap/pkg/recorder"
)

type App struct {
	Engine *strategy.Engine
	Router Router
	// shutdown时依次调用
	Closers []func()
}

// InitApp 组装整条链路：行情 -> 信号 -> 风控 -> 仓位 -> 记录
func InitApp(db *gorm.DB) (*App, error) {
	appCfg := conf.AppConfig
	p := appCfg.Trading

	retry := exchange.NewRetryPolicy(p.Retry)

	// 行情始终走OKX公共接口，不需要鉴权
	okxGw, err := exchange.NewOkxGateway(appCfg.Okx, retry)
	if err != nil {
		return nil, err
	}
	feed := market.NewOkxFeed(okxGw, p.Benchmark)

	// 纸面模式下单走内存撮合，价格从OKX行情同步
	var gw exchange.Gateway = okxGw
	closers := []func(){}
	if appCfg.Okx.Simulated || appCfg.Okx.ApiKey == "" {
		sim := exchange.NewSimulatedGateway()
		gw = sim
		go syncPaperPrices(sim, okxGw, p.Symbols, p.MonitorInterval)
		logger.Info("paper trading mode, orders are simulated")
	}

	store := account.NewStore(p.StartingCapital)

	// 成交记录多路落地：本地文件兜底，数据库和kafka按配置启用
	sinks := []recorder.TradeSink{recorder.NewJSONFileRecorder("logs/trades.json")}
	var tradeDao *dao.TradeDao
	if db != nil {
		tradeDao = dao.NewTradeDao(db)
		sinks = append(sinks, recorder.NewDBRecorder(tradeDao))
	}
	if appCfg.Kafka.Broker != "" {
		producer := kafka.NewKafkaProducer(appCfg.Kafka.Broker, appCfg.Kafka.Topic)
		sinks = append(sinks, recorder.NewKafkaRecorder(producer))
		closers = append(closers, producer.Close)
	}
	sink := recorder.NewMultiSink(sinks...)

	pm := position.NewManager(gw, retry, store, sink)

	// 冷却记录优先放redis，重启后仍然生效
	var cd risk.CooldownStore = risk.NewMemoryCooldown()
	if appCfg.Redis.Addr != "" {
		cd = risk.NewRedisCooldown(cache.GetRedisClient())
	}
	riskEngine := risk.NewEngine(store, cd, pm.HasOpen)

	e := strategy.NewEngine(feed, signal.NewEvaluator(), riskEngine, pm, p)

	engineHandler := engine.NewHandler(e, pm, store, tradeDao)
	monitorHandler := monitor.NewHandler(e, pm, store)
	// 开始向websocket客户端广播状态
	go monitorHandler.Broadcast()

	return &App{
		Engine:  e,
		Router:  router.NewApiRouter(engineHandler, monitorHandler),
		Closers: closers,
	}, nil
}

// 纸面模式把OKX最新价同步进内存撮合器，监控tick才有价格可用
func syncPaperPrices(sim *exchange.SimulatedGateway, src *exchange.OkxGateway, symbols []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		for _, symbol := range symbols {
			px, err := src.LastPrice(symbol)
			if err != nil || px <= 0 {
				continue
			}
			sim.SetPrice(symbol, px)
		}
	}
}
