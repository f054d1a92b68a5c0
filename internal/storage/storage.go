package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"market-mirror/internal/clock"
	"market-mirror/pkg/types"
)

// DefaultTTL 缓存有效期
const DefaultTTL = 60 * time.Second

const redisKeyPrefix = "mirror:batch:"

// CacheEntry 缓存项：一个批次及其采集时间
type CacheEntry struct {
	Records    []types.MarketRecord `json:"records"`
	CapturedAt time.Time            `json:"captured_at"`
}

// Key 生成缓存键：市场类型 + 规范化后的交易对列表 + 时间范围
func Key(market types.MarketType, symbols []string, timeRange types.TimeRange) string {
	normalized := types.NormalizeSymbols(symbols)
	for i, s := range normalized {
		normalized[i] = strings.ToUpper(s)
	}
	sort.Strings(normalized)
	return fmt.Sprintf("%s:%s:%s", market, strings.Join(normalized, ","), timeRange)
}

// BatchCache 按查询键缓存最近一次的行情批次，读取时惰性判断过期
type BatchCache struct {
	entries     map[string]CacheEntry
	mutex       sync.RWMutex
	ttl         time.Duration
	clock       clock.Clock
	redisClient *redis.Client
	useRedis    bool
}

// NewBatchCache 创建纯内存缓存
func NewBatchCache(ttl time.Duration, clk clock.Clock) *BatchCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &BatchCache{
		entries: make(map[string]CacheEntry),
		ttl:     ttl,
		clock:   clk,
	}
}

// NewBatchCacheWithRedis 创建带Redis共享层的缓存，连接失败时退回纯内存模式
func NewBatchCacheWithRedis(ttl time.Duration, clk clock.Clock, redisConfig types.RedisConfig) *BatchCache {
	bc := NewBatchCache(ttl, clk)

	if redisConfig.URL == "" {
		zap.L().Info("🔧 未配置Redis，使用纯内存缓存")
		return bc
	}

	bc.redisClient = redis.NewClient(&redis.Options{
		Addr:     redisConfig.URL,
		Password: redisConfig.Password,
		DB:       redisConfig.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := bc.redisClient.Ping(ctx).Err(); err != nil {
		zap.L().Warn("⚠️ Redis连接失败，使用纯内存缓存", zap.Error(err))
		_ = bc.redisClient.Close()
		bc.redisClient = nil
		return bc
	}

	zap.L().Info("✅ Redis连接成功", zap.String("addr", redisConfig.URL))
	bc.useRedis = true
	return bc
}

// TTL 缓存有效期
func (bc *BatchCache) TTL() time.Duration {
	return bc.ttl
}

// Get 返回未过期的批次，否则视为未命中
func (bc *BatchCache) Get(ctx context.Context, key string) ([]types.MarketRecord, bool) {
	bc.mutex.RLock()
	entry, ok := bc.entries[key]
	bc.mutex.RUnlock()

	if ok && bc.fresh(entry) {
		return entry.Records, true
	}

	if !bc.useRedis {
		return nil, false
	}

	entry, err := bc.loadFromRedis(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("⚠️ 读取Redis缓存失败", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if !bc.fresh(entry) {
		return nil, false
	}

	bc.mutex.Lock()
	bc.entries[key] = entry
	bc.mutex.Unlock()
	return entry.Records, true
}

// Put 无条件覆盖该键下的批次
func (bc *BatchCache) Put(ctx context.Context, key string, records []types.MarketRecord) {
	entry := CacheEntry{
		Records:    records,
		CapturedAt: bc.clock.Now(),
	}

	bc.mutex.Lock()
	bc.entries[key] = entry
	bc.mutex.Unlock()

	if bc.useRedis {
		if err := bc.storeToRedis(ctx, key, entry); err != nil {
			zap.L().Warn("⚠️ 写入Redis缓存失败", zap.String("key", key), zap.Error(err))
		}
	}
}

// Clear 清空所有缓存
func (bc *BatchCache) Clear(ctx context.Context) {
	bc.mutex.Lock()
	bc.entries = make(map[string]CacheEntry)
	bc.mutex.Unlock()

	if !bc.useRedis {
		return
	}

	keys, err := bc.redisClient.Keys(ctx, redisKeyPrefix+"*").Result()
	if err != nil {
		zap.L().Warn("⚠️ 获取Redis缓存键失败", zap.Error(err))
		return
	}
	if len(keys) > 0 {
		if err := bc.redisClient.Del(ctx, keys...).Err(); err != nil {
			zap.L().Warn("⚠️ 清理Redis缓存失败", zap.Error(err))
		}
	}
}

// Stats 获取缓存统计信息
func (bc *BatchCache) Stats() map[string]interface{} {
	bc.mutex.RLock()
	total := len(bc.entries)
	valid := 0
	for _, entry := range bc.entries {
		if bc.fresh(entry) {
			valid++
		}
	}
	bc.mutex.RUnlock()

	return map[string]interface{}{
		"redis_enabled":  bc.useRedis,
		"memory_entries": total,
		"valid_entries":  valid,
		"ttl_seconds":    bc.ttl.Seconds(),
	}
}

// Close 关闭Redis连接
func (bc *BatchCache) Close() error {
	if bc.redisClient == nil {
		return nil
	}
	return bc.redisClient.Close()
}

func (bc *BatchCache) fresh(entry CacheEntry) bool {
	return bc.clock.Now().Sub(entry.CapturedAt) < bc.ttl
}

func (bc *BatchCache) storeToRedis(ctx context.Context, key string, entry CacheEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("serialize cache entry: %w", err)
	}
	return bc.redisClient.Set(ctx, redisKeyPrefix+key, value, bc.ttl).Err()
}

func (bc *BatchCache) loadFromRedis(ctx context.Context, key string) (CacheEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var entry CacheEntry
	raw, err := bc.redisClient.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return entry, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, nil
}
