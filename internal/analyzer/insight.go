package analyzer

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"market-mirror/pkg/types"
)

// ErrEmptyBatch 对空批次做分析
var ErrEmptyBatch = errors.New("analyzer: empty batch")

// 趋势与波动率阈值（百分比）
const (
	trendThreshold        = 2.0
	profitTakingThreshold = 5.0
	cautionThreshold      = 10.0
	highVolatility        = 15.0
	moderateVolatility    = 8.0
	strongSentiment       = 5.0
)

const (
	recProfitTaking = "Consider taking partial profits on assets with strong gains."
	recHold         = "Hold current positions and wait for clearer trend confirmation."
	recCaution      = "Volatility is elevated: use tighter stop-losses and smaller position sizes."
	recStableEntry  = "Price action is stable: consider gradual entries into quality assets."
	recBuyDips      = "Momentum is positive: look for buying opportunities on short-term dips."
	recDefensive    = "Favor defensive positioning until momentum improves."
)

var trendClauses = map[types.Trend]string{
	types.TrendBullish: "Overall sentiment is bullish with broad upward momentum.",
	types.TrendBearish: "Overall sentiment is bearish with sustained selling pressure.",
	types.TrendNeutral: "Overall sentiment is neutral with mixed signals across assets.",
}

// ClassifyTrend 平均涨跌幅 > 2 为看涨，< -2 为看跌，边界值为中性
func ClassifyTrend(avgChangePercent float64) types.Trend {
	switch {
	case avgChangePercent > trendThreshold:
		return types.TrendBullish
	case avgChangePercent < -trendThreshold:
		return types.TrendBearish
	default:
		return types.TrendNeutral
	}
}

// ClassifyVolatility 按平均绝对涨跌幅划分波动率等级
func ClassifyVolatility(avgAbsChangePercent float64) types.VolatilityLevel {
	switch {
	case avgAbsChangePercent > highVolatility:
		return types.VolatilityHigh
	case avgAbsChangePercent > moderateVolatility:
		return types.VolatilityModerate
	default:
		return types.VolatilityLow
	}
}

// Aggregate 根据当前批次生成分析结论
func Aggregate(batch []types.MarketRecord) (*types.Insight, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}

	var sum, absSum float64
	for _, r := range batch {
		sum += r.ChangePercent
		absSum += math.Abs(r.ChangePercent)
	}
	n := float64(len(batch))
	avg := sum / n
	avgAbs := absSum / n

	trend := ClassifyTrend(avg)
	volatility := ClassifyVolatility(avgAbs)

	insight := &types.Insight{
		Summary: fmt.Sprintf("Tracking %d assets with an average change of %.2f%%. %s",
			len(batch), avg, trendClauses[trend]),
		Volatility:          volatility,
		VolatilityAnalysis:  fmt.Sprintf("%s volatility: assets moved %.1f%% on average.", volatility, avgAbs),
		Trend:               trend,
		AvgChangePercent:    avg,
		AvgAbsChangePercent: avgAbs,
		Overview:            overview(batch, avg),
		Assets:              make([]types.AssetAnalysis, 0, len(batch)),
		Anomalies:           []types.Anomaly{},
	}
	for _, r := range batch {
		insight.Assets = append(insight.Assets, AnalyzeAsset(r))
		insight.Anomalies = append(insight.Anomalies, DetectAnomalies(r)...)
	}
	insight.Risk = marketRisk(batch, insight.Assets)

	insight.Recommendations[0] = recHold
	if avg > profitTakingThreshold {
		insight.Recommendations[0] = recProfitTaking
	}
	insight.Recommendations[1] = recStableEntry
	if avgAbs > cautionThreshold {
		insight.Recommendations[1] = recCaution
	}
	insight.Recommendations[2] = recDefensive
	if trend == types.TrendBullish {
		insight.Recommendations[2] = recBuyDips
	}

	return insight, nil
}

// overview 统计涨跌家数、中位数、标准差与最佳/最差表现
func overview(batch []types.MarketRecord, avg float64) types.MarketOverview {
	ov := types.MarketOverview{TotalAssets: len(batch)}

	changes := make([]float64, 0, len(batch))
	best, worst := batch[0], batch[0]
	for _, r := range batch {
		changes = append(changes, r.ChangePercent)
		switch {
		case r.ChangePercent > 0:
			ov.Gainers++
		case r.ChangePercent < 0:
			ov.Losers++
		default:
			ov.Unchanged++
		}
		if r.ChangePercent > best.ChangePercent {
			best = r
		}
		if r.ChangePercent < worst.ChangePercent {
			worst = r
		}
	}
	ov.BestPerformer = types.Performer{Symbol: best.Symbol, ChangePercent: best.ChangePercent}
	ov.WorstPerformer = types.Performer{Symbol: worst.Symbol, ChangePercent: worst.ChangePercent}

	sort.Float64s(changes)
	mid := len(changes) / 2
	if len(changes)%2 == 0 {
		ov.MedianChange = (changes[mid-1] + changes[mid]) / 2
	} else {
		ov.MedianChange = changes[mid]
	}

	// 单个资产时为0
	ov.StdDevChange = sampleStdDev(changes)

	switch {
	case math.Abs(avg) > strongSentiment:
		ov.SentimentStrength = "strong"
	case math.Abs(avg) > trendThreshold:
		ov.SentimentStrength = "moderate"
	default:
		ov.SentimentStrength = "weak"
	}

	return ov
}
