package types

import (
	"fmt"
	"strings"
	"time"
)

// MarketType 市场类型
type MarketType string

const (
	MarketCrypto    MarketType = "crypto"
	MarketStocks    MarketType = "stocks"
	MarketEcommerce MarketType = "ecommerce"
)

// ParseMarketType 解析市场类型，大小写不敏感
func ParseMarketType(s string) (MarketType, error) {
	switch mt := MarketType(strings.ToLower(strings.TrimSpace(s))); mt {
	case MarketCrypto, MarketStocks, MarketEcommerce:
		return mt, nil
	default:
		return "", fmt.Errorf("unsupported market type %q", s)
	}
}

// TimeRange 时间范围
type TimeRange string

const (
	Range1D TimeRange = "1d"
	Range7D TimeRange = "7d"
	Range1M TimeRange = "1m"
	Range3M TimeRange = "3m"
)

// ParseTimeRange 解析时间范围，空字符串使用默认值1m
func ParseTimeRange(s string) (TimeRange, error) {
	switch tr := TimeRange(strings.ToLower(strings.TrimSpace(s))); tr {
	case "":
		return Range1M, nil
	case Range1D, Range7D, Range1M, Range3M:
		return tr, nil
	default:
		return "", fmt.Errorf("unsupported time range %q", s)
	}
}

// Days 时间范围对应的天数
func (tr TimeRange) Days() int {
	switch tr {
	case Range1D:
		return 1
	case Range7D:
		return 7
	case Range3M:
		return 90
	default:
		return 30
	}
}

// HistoryPoint 历史数据点
type HistoryPoint struct {
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
}

// MarketRecord 单个资产的行情快照
//
// History按日期非递减排列；High24h >= Price >= Low24h 只是软约束。
type MarketRecord struct {
	Symbol        string         `json:"symbol"`
	Name          string         `json:"name"`
	Price         float64        `json:"price"`
	Change        float64        `json:"change"`
	ChangePercent float64        `json:"change_percent"`
	Volume        float64        `json:"volume"`
	High24h       float64        `json:"high_24h"`
	Low24h        float64        `json:"low_24h"`
	MarketCap     *float64       `json:"market_cap,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	History       []HistoryPoint `json:"history"`
}

// Selection 当前跟踪的市场、交易对与预警阈值
type Selection struct {
	Market    MarketType `json:"market"`
	Symbols   []string   `json:"symbols"`
	TimeRange TimeRange  `json:"time_range"`
	Threshold float64    `json:"threshold"`
}

// NormalizeSymbols 去除空白与重复项，保留首次出现的顺序
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := strings.ToUpper(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

// DataSource 批次数据来源
type DataSource string

const (
	SourceLive     DataSource = "live"
	SourceCache    DataSource = "cache"
	SourceFallback DataSource = "fallback"
)

// Snapshot 一次刷新周期的完整输出
type Snapshot struct {
	CycleID     string         `json:"cycle_id"`
	Selection   Selection      `json:"selection"`
	Records     []MarketRecord `json:"records"`
	Insight     *Insight       `json:"insight"`
	Alerts      []AlertEvent   `json:"alerts"`
	Source      DataSource     `json:"source"`
	GeneratedAt time.Time      `json:"generated_at"`
}
