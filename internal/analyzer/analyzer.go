package analyzer

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"market-mirror/pkg/types"
)

// FeedLimit 预警流保留的最大条数
const FeedLimit = 10

// ErrInvalidThreshold 阈值不是有限的非负数
var ErrInvalidThreshold = errors.New("analyzer: threshold must be a finite non-negative number")

// ValidateThreshold 校验用户输入的预警阈值
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return nil
}

// IDSequence 预警ID生成器：交易对 + 毫秒时间戳 + 单调计数，同一时刻也不会冲突
type IDSequence struct {
	counter atomic.Uint64
}

// defaultIDs 调用方未提供ids时使用的进程级序列
var defaultIDs IDSequence

// Next 生成下一个预警ID
func (s *IDSequence) Next(symbol string, at time.Time) string {
	return fmt.Sprintf("%s-%d-%d", strings.ToUpper(symbol), at.UnixMilli(), s.counter.Add(1))
}

// DetectAlerts 扫描批次，对涨跌幅绝对值超过阈值的资产生成预警
//
// 新预警按批次顺序追加到feed末尾，随后只保留最近FeedLimit条。
// 返回新的预警流与本次触发的预警；不修改传入的feed。ids为nil时使用进程级序列。
func DetectAlerts(feed []types.AlertEvent, batch []types.MarketRecord, threshold float64, ids *IDSequence, now time.Time) ([]types.AlertEvent, []types.AlertEvent) {
	if ids == nil {
		ids = &defaultIDs
	}
	fired := make([]types.AlertEvent, 0)

	for _, r := range batch {
		if math.Abs(r.ChangePercent) <= threshold {
			continue
		}

		severity := types.SeveritySuccess
		verb := "surged"
		if r.ChangePercent < 0 {
			severity = types.SeverityWarning
			verb = "dropped"
		}

		fired = append(fired, types.AlertEvent{
			ID:       ids.Next(r.Symbol, now),
			Symbol:   r.Symbol,
			Severity: severity,
			Message: fmt.Sprintf("%s %s %.2f%% to $%s (threshold %.1f%%)",
				r.Symbol, verb, math.Abs(r.ChangePercent), FormatPrice(r.Price), threshold),
			ChangePercent: r.ChangePercent,
			Price:         r.Price,
			CreatedAt:     now,
			DisplayTime:   now.Format("15:04:05"),
		})
	}

	next := make([]types.AlertEvent, 0, len(feed)+len(fired))
	next = append(next, feed...)
	next = append(next, fired...)
	if len(next) > FeedLimit {
		next = next[len(next)-FeedLimit:]
	}

	return next, fired
}

// FormatPrice 价格展示：大于等于1时保留2位小数，否则保留6位
func FormatPrice(price float64) string {
	d := decimal.NewFromFloat(price)
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		return d.StringFixed(6)
	}
	return d.StringFixed(2)
}
