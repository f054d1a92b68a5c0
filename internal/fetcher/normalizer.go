package fetcher

import (
	"context"
	"time"

	"go.uber.org/zap"
	"market-mirror/internal/synthetic"
	"market-mirror/pkg/types"
)

// Normalizer 统一的行情入口：真实数据源失败或处于mock模式时降级为模拟数据
type Normalizer struct {
	providers map[types.MarketType]Provider
	generator *synthetic.Generator
	mock      bool
	mockDelay time.Duration
}

// NormalizerOption 可选配置
type NormalizerOption func(*Normalizer)

// WithProvider 注册某个市场的数据源
func WithProvider(market types.MarketType, provider Provider) NormalizerOption {
	return func(n *Normalizer) {
		n.providers[market] = provider
	}
}

// WithMockMode 所有市场都使用模拟数据，并模拟网络延迟
func WithMockMode(delay time.Duration) NormalizerOption {
	return func(n *Normalizer) {
		n.mock = true
		n.mockDelay = delay
	}
}

// NewNormalizer 创建Normalizer
func NewNormalizer(generator *synthetic.Generator, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		providers: make(map[types.MarketType]Provider),
		generator: generator,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Fetch 按输入顺序返回每个交易对的行情，始终成功
//
// 上游任意错误都会让整个批次改用模拟数据，错误只记录日志。
func (n *Normalizer) Fetch(ctx context.Context, market types.MarketType, symbols []string, timeRange types.TimeRange) ([]types.MarketRecord, types.DataSource) {
	if n.mock {
		if err := sleepCtx(ctx, n.mockDelay); err != nil {
			zap.L().Debug("mock延迟被取消", zap.Error(err))
		}
		return n.generator.Batch(market, symbols), types.SourceFallback
	}

	provider, ok := n.providers[market]
	if !ok {
		// 电商没有真实数据源，直接使用参考价格表
		return n.generator.Batch(market, symbols), types.SourceFallback
	}

	records, err := provider.FetchRecords(ctx, symbols, timeRange)
	if err != nil {
		zap.L().Warn("⚠️ 上游行情获取失败，使用模拟数据",
			zap.String("market", string(market)),
			zap.Strings("symbols", symbols),
			zap.Error(err))
		return n.generator.Batch(market, symbols), types.SourceFallback
	}
	return records, types.SourceLive
}

// SupportedSymbols 某个市场的参考交易对
func (n *Normalizer) SupportedSymbols(market types.MarketType) []string {
	return synthetic.SupportedSymbols(market)
}
