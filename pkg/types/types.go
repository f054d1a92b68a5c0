package types

import "time"

// Trend 趋势方向
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// VolatilityLevel 波动率等级
type VolatilityLevel string

const (
	VolatilityHigh     VolatilityLevel = "High"
	VolatilityModerate VolatilityLevel = "Moderate"
	VolatilityLow      VolatilityLevel = "Low"
)

// Performer 单个资产的表现
type Performer struct {
	Symbol        string  `json:"symbol"`
	ChangePercent float64 `json:"change_percent"`
}

// MarketOverview 市场总览
type MarketOverview struct {
	TotalAssets       int       `json:"total_assets"`
	Gainers           int       `json:"gainers"`
	Losers            int       `json:"losers"`
	Unchanged         int       `json:"unchanged"`
	MedianChange      float64   `json:"median_change"`
	StdDevChange      float64   `json:"stddev_change"`
	BestPerformer     Performer `json:"best_performer"`
	WorstPerformer    Performer `json:"worst_performer"`
	SentimentStrength string    `json:"sentiment_strength"` // strong, moderate, weak
}

// Insight 基于当前批次推导出的分析结论，每个周期重新计算
type Insight struct {
	Summary             string          `json:"summary"`
	Recommendations     [3]string       `json:"recommendations"`
	Volatility          VolatilityLevel `json:"volatility"`
	VolatilityAnalysis  string          `json:"volatility_analysis"`
	Trend               Trend           `json:"trend"`
	AvgChangePercent    float64         `json:"avg_change_percent"`
	AvgAbsChangePercent float64         `json:"avg_abs_change_percent"`
	Overview            MarketOverview  `json:"overview"`
	Assets              []AssetAnalysis `json:"assets"`
	Anomalies           []Anomaly       `json:"anomalies"`
	Risk                MarketRisk      `json:"risk"`
}

// Severity 预警级别
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

// AlertEvent 预警事件，创建后不再修改
type AlertEvent struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Message       string    `json:"message"`
	Severity      Severity  `json:"severity"`
	ChangePercent float64   `json:"change_percent"`
	Price         float64   `json:"price"`
	CreatedAt     time.Time `json:"created_at"`
	DisplayTime   string    `json:"display_time"`
}
