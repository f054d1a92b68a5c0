package main

import (
	"log"

	"go.uber.org/zap"
	"market-mirror/pkg/config"
	"market-mirror/pkg/logger"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志
	appLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal("初始化日志失败:", err)
	}
	defer func() { _ = appLogger.Sync() }()

	app, err := NewApp(cfg)
	if err != nil {
		zap.L().Fatal("❌ 初始化失败", zap.Error(err))
	}

	app.Start()
	app.WaitForShutdown()
	app.Stop()
}
