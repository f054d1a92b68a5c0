package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"market-mirror/internal/clock"
	"market-mirror/internal/fetcher"
	"market-mirror/internal/notifier"
	"market-mirror/internal/scheduler"
	"market-mirror/internal/server"
	"market-mirror/internal/session"
	"market-mirror/internal/storage"
	"market-mirror/internal/synthetic"
	"market-mirror/pkg/types"
)

// App 应用程序管理器
type App struct {
	config *types.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cache     *storage.BatchCache
	scheduler *scheduler.Scheduler
	server    *server.Server
}

// NewApp 创建应用程序实例并组装各模块
func NewApp(config *types.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	clk := clock.Real{}
	app.cache = storage.NewBatchCacheWithRedis(config.Cache.TTL, clk, config.Redis)
	normalizer := app.buildNormalizer(clk)

	initial := types.Selection{
		Market:    types.MarketType(config.Dashboard.Market),
		Symbols:   config.Dashboard.Symbols,
		TimeRange: types.TimeRange(config.Dashboard.TimeRange),
		Threshold: config.Alert.Threshold,
	}
	sess, err := session.New(initial, app.cache, normalizer, notifier.New(config), clk)
	if err != nil {
		cancel()
		_ = app.cache.Close()
		return nil, err
	}

	hub := server.NewHub()
	app.scheduler = scheduler.NewScheduler(sess, config.Fetch.Interval)
	app.scheduler.AddListener(hub.Broadcast)
	app.server = server.NewServer(config.Server.Addr, sess, normalizer, app.scheduler, hub)
	return app, nil
}

// buildNormalizer 根据fetch.mode选择真实数据源或mock模式
func (app *App) buildNormalizer(clk clock.Clock) *fetcher.Normalizer {
	generator := synthetic.NewGenerator(nil, clk)

	if app.config.Fetch.Mode == "mock" {
		zap.L().Info("🧪 Mock模式：所有市场使用模拟数据", zap.Duration("delay", app.config.Fetch.MockDelay))
		return fetcher.NewNormalizer(generator, fetcher.WithMockMode(app.config.Fetch.MockDelay))
	}

	httpClient := fetcher.NewHTTPClient(app.config.Network)
	opts := fetcher.Options{
		MaxAttempts:    app.config.Fetch.MaxAttempts,
		RequestSpacing: app.config.Fetch.RequestSpacing,
	}
	return fetcher.NewNormalizer(generator,
		fetcher.WithProvider(types.MarketCrypto, fetcher.NewCryptoProvider(app.config.Provider.CryptoBaseURL, httpClient, opts)),
		fetcher.WithProvider(types.MarketStocks, fetcher.NewEquityProvider(app.config.Provider.EquityBaseURL, httpClient, opts)),
	)
}

// Start 启动调度器与HTTP服务
func (app *App) Start() {
	zap.L().Info("🚀 Market Mirror 启动中...")

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.scheduler.Start(app.ctx)
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		if err := app.server.Start(); err != nil {
			zap.L().Error("❌ HTTP服务异常退出", zap.Error(err))
			app.cancel()
		}
	}()

	zap.L().Info("✅ Market Mirror 已启动")
}

// Stop 停止应用程序
func (app *App) Stop() {
	zap.L().Info("🛑 收到停止信号，正在优雅关闭...")
	app.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("⚠️ HTTP服务关闭失败", zap.Error(err))
	}

	// 等待所有goroutine结束，最多等待30秒
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("✅ Market Mirror 已安全关闭")
	case <-shutdownCtx.Done():
		zap.L().Warn("⚠️ 强制关闭超时")
	}

	if err := app.cache.Close(); err != nil {
		zap.L().Warn("⚠️ 关闭Redis连接失败", zap.Error(err))
	}
}

// WaitForShutdown 等待关闭信号或内部致命错误
func (app *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-app.ctx.Done():
	}
}
