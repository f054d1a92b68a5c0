package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"market-mirror/pkg/types"
)

// Load 加载配置
func Load() (*types.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// 设置默认值
	setDefaults(v)

	// 读取环境变量，如 FETCH_INTERVAL、REDIS_URL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 优先尝试读取本地配置文件
	v.SetConfigName("config.local")
	if err := v.ReadInConfig(); err != nil {
		// 如果本地配置文件不存在，尝试读取默认配置文件
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, err
			}
		}
	}

	var config types.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_path", "logs")
	v.SetDefault("log.max_size", 200)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.compress", false)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("dingtalk.webhook_url", "")
	v.SetDefault("dingtalk.secret", "")
	v.SetDefault("pushplus.user_token", "")
	v.SetDefault("pushplus.to", "")
	v.SetDefault("alert.threshold", 5.0)
	v.SetDefault("fetch.interval", 30*time.Second)
	v.SetDefault("fetch.mode", "live")
	v.SetDefault("fetch.mock_delay", 500*time.Millisecond)
	v.SetDefault("fetch.request_spacing", 200*time.Millisecond)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("cache.ttl", time.Minute)
	v.SetDefault("network.proxy", "")
	v.SetDefault("network.timeout", 15*time.Second)
	v.SetDefault("provider.crypto_base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("provider.equity_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("dashboard.market", "crypto")
	v.SetDefault("dashboard.symbols", []string{"BTC", "ETH", "SOL"})
	v.SetDefault("dashboard.time_range", "1m")
	v.SetDefault("server.addr", ":8080")
}

// Validate 校验配置
func Validate(cfg *types.Config) error {
	if _, err := types.ParseMarketType(cfg.Dashboard.Market); err != nil {
		return fmt.Errorf("dashboard.market: %w", err)
	}
	if _, err := types.ParseTimeRange(cfg.Dashboard.TimeRange); err != nil {
		return fmt.Errorf("dashboard.time_range: %w", err)
	}
	if len(types.NormalizeSymbols(cfg.Dashboard.Symbols)) == 0 {
		return errors.New("dashboard.symbols: at least one symbol is required")
	}
	if cfg.Alert.Threshold < 0 {
		return fmt.Errorf("alert.threshold: must be non-negative, got %v", cfg.Alert.Threshold)
	}
	if cfg.Fetch.Interval <= 0 {
		return fmt.Errorf("fetch.interval: must be positive, got %v", cfg.Fetch.Interval)
	}
	switch cfg.Fetch.Mode {
	case "live", "mock":
	default:
		return fmt.Errorf("fetch.mode: unsupported mode %q", cfg.Fetch.Mode)
	}
	if cfg.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("fetch.max_attempts: must be at least 1, got %d", cfg.Fetch.MaxAttempts)
	}
	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl: must be positive, got %v", cfg.Cache.TTL)
	}
	return nil
}
