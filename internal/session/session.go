package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"market-mirror/internal/analyzer"
	"market-mirror/internal/clock"
	"market-mirror/internal/notifier"
	"market-mirror/internal/storage"
	"market-mirror/pkg/types"
)

var (
	// ErrRefreshInFlight 已有刷新在进行
	ErrRefreshInFlight = errors.New("session: refresh already in flight")
	// ErrStaleRefresh 刷新期间选择已变化，结果被丢弃
	ErrStaleRefresh = errors.New("session: selection changed during refresh")
	// ErrNoSymbols 规范化后没有任何交易对
	ErrNoSymbols = errors.New("session: at least one symbol is required")
)

// Source 行情批次来源，始终按输入顺序返回结果
type Source interface {
	Fetch(ctx context.Context, market types.MarketType, symbols []string, timeRange types.TimeRange) ([]types.MarketRecord, types.DataSource)
}

// Session 单个看板会话：当前选择、预警流与最近一次快照
type Session struct {
	mutex      sync.RWMutex
	selection  types.Selection
	generation uint64
	feed       []types.AlertEvent
	last       *types.Snapshot

	refreshing atomic.Bool
	ids        analyzer.IDSequence

	cache  *storage.BatchCache
	source Source
	notify notifier.Interface
	clock  clock.Clock
}

// New 创建会话，初始选择必须合法
func New(initial types.Selection, cache *storage.BatchCache, source Source, notify notifier.Interface, clk clock.Clock) (*Session, error) {
	sel, err := validate(initial)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Session{
		selection: sel,
		cache:     cache,
		source:    source,
		notify:    notify,
		clock:     clk,
	}, nil
}

// validate 规范化并校验选择
func validate(sel types.Selection) (types.Selection, error) {
	market, err := types.ParseMarketType(string(sel.Market))
	if err != nil {
		return types.Selection{}, err
	}
	timeRange, err := types.ParseTimeRange(string(sel.TimeRange))
	if err != nil {
		return types.Selection{}, err
	}
	symbols := types.NormalizeSymbols(sel.Symbols)
	if len(symbols) == 0 {
		return types.Selection{}, ErrNoSymbols
	}
	if err := analyzer.ValidateThreshold(sel.Threshold); err != nil {
		return types.Selection{}, err
	}
	return types.Selection{
		Market:    market,
		Symbols:   symbols,
		TimeRange: timeRange,
		Threshold: sel.Threshold,
	}, nil
}

// Selection 当前选择
func (s *Session) Selection() types.Selection {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return cloneSelection(s.selection)
}

// SetSelection 校验并替换当前选择，正在进行的刷新结果将被丢弃
func (s *Session) SetSelection(sel types.Selection) (types.Selection, error) {
	normalized, err := validate(sel)
	if err != nil {
		return types.Selection{}, err
	}

	s.mutex.Lock()
	s.selection = normalized
	s.generation++
	s.mutex.Unlock()

	zap.L().Info("🔧 选择已更新",
		zap.String("market", string(normalized.Market)),
		zap.Strings("symbols", normalized.Symbols),
		zap.String("time_range", string(normalized.TimeRange)),
		zap.Float64("threshold", normalized.Threshold))
	return cloneSelection(normalized), nil
}

// Refresh 执行一次刷新周期：缓存 → 数据源 → 写缓存 → 洞察 → 预警 → 通知
func (s *Session) Refresh(ctx context.Context) (*types.Snapshot, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return nil, ErrRefreshInFlight
	}
	defer s.refreshing.Store(false)

	s.mutex.RLock()
	sel := cloneSelection(s.selection)
	generation := s.generation
	s.mutex.RUnlock()

	cycleID := uuid.NewString()
	key := storage.Key(sel.Market, sel.Symbols, sel.TimeRange)

	// 缓存键与交易对顺序无关，命中后按当前选择重排
	records, hit := s.cache.Get(ctx, key)
	if hit {
		records, hit = alignToSymbols(records, sel.Symbols)
	}
	source := types.SourceCache
	if !hit {
		records, source = s.source.Fetch(ctx, sel.Market, sel.Symbols, sel.TimeRange)
		s.cache.Put(ctx, key, records)
	}

	insight, err := analyzer.Aggregate(records)
	if err != nil {
		return nil, fmt.Errorf("aggregate cycle %s: %w", cycleID, err)
	}

	now := s.clock.Now()

	s.mutex.Lock()
	if generation != s.generation {
		s.mutex.Unlock()
		zap.L().Debug("⏭️ 丢弃过期的刷新结果", zap.String("cycle_id", cycleID))
		return nil, ErrStaleRefresh
	}
	feed, fired := analyzer.DetectAlerts(s.feed, records, sel.Threshold, &s.ids, now)
	s.feed = feed
	snapshot := &types.Snapshot{
		CycleID:     cycleID,
		Selection:   sel,
		Records:     records,
		Insight:     insight,
		Alerts:      append([]types.AlertEvent(nil), feed...),
		Source:      source,
		GeneratedAt: now,
	}
	s.last = snapshot
	s.mutex.Unlock()

	zap.L().Info("✅ 刷新完成",
		zap.String("cycle_id", cycleID),
		zap.String("source", string(source)),
		zap.Int("records", len(records)),
		zap.Int("alerts_fired", len(fired)),
		zap.String("trend", string(insight.Trend)))

	if len(fired) > 0 && s.notify != nil {
		alerts := make([]*types.AlertEvent, len(fired))
		for i := range fired {
			alerts[i] = &fired[i]
		}
		if err := s.notify.SendBatchAlerts(alerts); err != nil {
			zap.L().Warn("⚠️ 预警通知发送失败", zap.Error(err))
		}
	}

	return snapshot, nil
}

// Snapshot 最近一次成功刷新的快照，尚未刷新时为nil
func (s *Session) Snapshot() *types.Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.last
}

// Alerts 当前预警流，旧的在前
func (s *Session) Alerts() []types.AlertEvent {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]types.AlertEvent(nil), s.feed...)
}

// ClearCache 清空行情缓存，下次刷新将重新请求数据源
func (s *Session) ClearCache(ctx context.Context) {
	s.cache.Clear(ctx)
	zap.L().Info("🧹 行情缓存已清空")
}

// CacheStats 缓存统计信息
func (s *Session) CacheStats() map[string]interface{} {
	return s.cache.Stats()
}

// alignToSymbols 按symbols的顺序重排批次，大小写不敏感；缺少任一交易对时返回false
func alignToSymbols(records []types.MarketRecord, symbols []string) ([]types.MarketRecord, bool) {
	bySymbol := make(map[string]types.MarketRecord, len(records))
	for _, r := range records {
		bySymbol[strings.ToUpper(r.Symbol)] = r
	}

	aligned := make([]types.MarketRecord, 0, len(symbols))
	for _, symbol := range symbols {
		r, ok := bySymbol[strings.ToUpper(symbol)]
		if !ok {
			return nil, false
		}
		aligned = append(aligned, r)
	}
	return aligned, true
}

func cloneSelection(sel types.Selection) types.Selection {
	sel.Symbols = append([]string(nil), sel.Symbols...)
	return sel
}
