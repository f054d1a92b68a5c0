package fetcher

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"market-mirror/pkg/types"
)

// ErrUpstreamUnavailable 上游网络错误、非200响应或格式错误
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Provider 行情数据源，返回的记录顺序与symbols一致
type Provider interface {
	FetchRecords(ctx context.Context, symbols []string, timeRange types.TimeRange) ([]types.MarketRecord, error)
}

// Options 上游请求选项
type Options struct {
	MaxAttempts    int
	RequestSpacing time.Duration
	RetryDelay     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	return o
}

// NewHTTPClient 根据网络配置创建HTTP客户端（支持代理）
func NewHTTPClient(networkConfig types.NetworkConfig) *http.Client {
	timeout := networkConfig.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: false,
		},
	}

	// 如果配置了代理，则使用代理
	if networkConfig.Proxy != "" {
		proxyURL, err := url.Parse(networkConfig.Proxy)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
			zap.L().Info("✅ 已配置HTTP代理", zap.String("proxy", networkConfig.Proxy))
		} else {
			zap.L().Warn("⚠️ 代理地址格式错误", zap.Error(err))
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// client 带重试的JSON GET客户端
type client struct {
	httpClient *http.Client
	opts       Options
}

// getJSON 请求并解析JSON，失败时最多重试MaxAttempts次
func (c *client) getJSON(ctx context.Context, requestURL string, out interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			zap.L().Debug("🔄 重试上游请求", zap.String("url", requestURL), zap.Int("attempt", attempt))
			if err := sleepCtx(ctx, time.Duration(attempt-1)*c.opts.RetryDelay); err != nil {
				return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
			}
		}

		lastErr = c.doGet(ctx, requestURL, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, lastErr)
}

func (c *client) doGet(ctx context.Context, requestURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Market-Mirror/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// pace 连续请求之间的限速
func (c *client) pace(ctx context.Context, index int) error {
	if index == 0 || c.opts.RequestSpacing <= 0 {
		return nil
	}
	return sleepCtx(ctx, c.opts.RequestSpacing)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// dayStart 将时间截断到UTC零点
func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
