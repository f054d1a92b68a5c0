package config

import (
	"strings"
	"testing"
	"time"

	"market-mirror/pkg/types"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Fetch.Interval != 30*time.Second {
		t.Errorf("fetch.interval = %v, want 30s", cfg.Fetch.Interval)
	}
	if cfg.Cache.TTL != time.Minute {
		t.Errorf("cache.ttl = %v, want 1m", cfg.Cache.TTL)
	}
	if cfg.Alert.Threshold != 5.0 {
		t.Errorf("alert.threshold = %v, want 5", cfg.Alert.Threshold)
	}
	if cfg.Dashboard.Market != "crypto" {
		t.Errorf("dashboard.market = %q, want crypto", cfg.Dashboard.Market)
	}
	if cfg.Fetch.MaxAttempts != 3 {
		t.Errorf("fetch.max_attempts = %d, want 3", cfg.Fetch.MaxAttempts)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ALERT_THRESHOLD", "8.5")
	t.Setenv("FETCH_MODE", "mock")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Alert.Threshold != 8.5 {
		t.Errorf("alert.threshold = %v, want 8.5", cfg.Alert.Threshold)
	}
	if cfg.Fetch.Mode != "mock" {
		t.Errorf("fetch.mode = %q, want mock", cfg.Fetch.Mode)
	}
}

func validConfig() *types.Config {
	return &types.Config{
		Alert: types.AlertConfig{Threshold: 5},
		Fetch: types.FetchConfig{Interval: 30 * time.Second, Mode: "live", MaxAttempts: 3},
		Cache: types.CacheConfig{TTL: time.Minute},
		Dashboard: types.DashboardConfig{
			Market:    "stocks",
			Symbols:   []string{"AAPL"},
			TimeRange: "7d",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*types.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*types.Config) {}},
		{name: "unknown market", mutate: func(c *types.Config) { c.Dashboard.Market = "forex" }, wantErr: "dashboard.market"},
		{name: "bad time range", mutate: func(c *types.Config) { c.Dashboard.TimeRange = "2y" }, wantErr: "dashboard.time_range"},
		{name: "blank symbols", mutate: func(c *types.Config) { c.Dashboard.Symbols = []string{" ", ""} }, wantErr: "dashboard.symbols"},
		{name: "negative threshold", mutate: func(c *types.Config) { c.Alert.Threshold = -1 }, wantErr: "alert.threshold"},
		{name: "zero interval", mutate: func(c *types.Config) { c.Fetch.Interval = 0 }, wantErr: "fetch.interval"},
		{name: "bad mode", mutate: func(c *types.Config) { c.Fetch.Mode = "replay" }, wantErr: "fetch.mode"},
		{name: "zero attempts", mutate: func(c *types.Config) { c.Fetch.MaxAttempts = 0 }, wantErr: "fetch.max_attempts"},
		{name: "zero ttl", mutate: func(c *types.Config) { c.Cache.TTL = 0 }, wantErr: "cache.ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
