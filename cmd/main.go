package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/nntaoli-project/goex/v2"
	"gorm.io/gorm"

	api "tradecap/cmd/tradecap"
	"tradecap/conf"
	"tradecap/internal/middleware"
	"tradecap/pkg/cache"
	"tradecap/pkg/db"
	"tradecap/pkg/logger"
)

// 启动交易引擎和控制接口
//
// 状态查询:
//   curl http://localhost:8085/api/v1/engine/status
// 紧急停止并全部平仓:
//   curl -X POST http://localhost:8085/api/v1/engine/emergency-stop \
//     -H "Content-Type: application/json" \
//     -d '{"confirm":"EMERGENCY","close_all":true}'

func main() {

	// 加载配置文件
	err := conf.LoadConfig("conf/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appCfg := conf.AppConfig
	logger.Setup(appCfg.Log)
	defer logger.Sync()

	if appCfg.Okx.Simulated {
		// 设置为模拟环境
		goex.DefaultHttpCli.SetHeaders("x-simulated-trading", "1")
	}

	dbUser := os.Getenv("DB_USER")
	dbPass := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")
	if dbUser == "" || dbPass == "" || dbHost == "" {
		dbUser = appCfg.Username
		dbPass = appCfg.Db.Password
		dbHost = appCfg.Host
		dbPort = appCfg.Port
		dbName = appCfg.DbName
	}

	// 初始化数据库，没配就只落本地文件
	var datasource *gorm.DB
	if dbHost != "" {
		datasource = db.Init(db.Config{
			User:      dbUser,
			Password:  dbPass,
			Host:      dbHost,
			Port:      dbPort,
			DBName:    dbName,
			ParseTime: true,
		})
	}

	redisHost := os.Getenv("REDIS_HOST")
	redisPort := os.Getenv("REDIS_PORT")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisAddr := fmt.Sprintf("%s:%s", redisHost, redisPort)
	if redisHost == "" || redisPort == "" {
		redisAddr = appCfg.Redis.Addr
	}
	if redisPassword != "" {
		appCfg.Redis.Password = redisPassword
	}
	appCfg.Redis.Addr = redisAddr

	// 初始化redis缓存
	if appCfg.Redis.Addr != "" {
		cache.InitRedis(appCfg.Redis)
	}

	app, err := api.InitApp(datasource)
	if err != nil {
		logger.Fatal("init app failed", logger.Pair("err", err.Error()))
	}

	// 引擎在后台跑，http只负责控制面
	engineCtx, engineStop := context.WithCancel(context.Background())
	go app.Engine.Run(engineCtx)

	// 创建并启动服务
	srv := api.NewServer(&appCfg)
	srv.RegisterOnShutdown(func() {
		// 先停引擎再清理资源，在持仓位保持原样等待重启接管
		engineStop()
		for _, c := range app.Closers {
			c()
		}
		if datasource != nil {
			// 关闭主库链接
			m, err := datasource.DB()
			if err == nil {
				_ = m.Close()
			}
		}
		cache.CloseRedis()
	})

	srv.Run(middleware.NewMiddleware(), app.Router)
}
