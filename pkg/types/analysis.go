package types

import "time"

// TrendDirection 单个资产的趋势方向
type TrendDirection string

const (
	DirectionStrongBullish TrendDirection = "strong_bullish"
	DirectionBullish       TrendDirection = "bullish"
	DirectionNeutral       TrendDirection = "neutral"
	DirectionBearish       TrendDirection = "bearish"
	DirectionStrongBearish TrendDirection = "strong_bearish"
)

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// TechnicalIndicators 基于历史价格的技术指标，数据点不足的指标为nil
type TechnicalIndicators struct {
	SMA5            *float64 `json:"sma_5,omitempty"`
	SMA10           *float64 `json:"sma_10,omitempty"`
	SMA20           *float64 `json:"sma_20,omitempty"`
	Volatility      *float64 `json:"volatility,omitempty"` // 最近10个价格的变异系数（百分比）
	Momentum5d      *float64 `json:"momentum_5d,omitempty"`
	RSI             *float64 `json:"rsi,omitempty"`
	BollingerUpper  *float64 `json:"bollinger_upper,omitempty"`
	BollingerMiddle *float64 `json:"bollinger_middle,omitempty"`
	BollingerLower  *float64 `json:"bollinger_lower,omitempty"`
}

// SupportResistance 最近20个价格中的支撑位与阻力位
type SupportResistance struct {
	NearestSupport    float64 `json:"nearest_support"`
	NearestResistance float64 `json:"nearest_resistance"`
	RecentHigh        float64 `json:"recent_high"`
	RecentLow         float64 `json:"recent_low"`
}

// AssetAnalysis 单个资产的分析结果
type AssetAnalysis struct {
	Symbol        string              `json:"symbol"`
	Name          string              `json:"name"`
	Price         float64             `json:"price"`
	ChangePercent float64             `json:"change_percent"`
	Direction     TrendDirection      `json:"direction"`
	Strength      string              `json:"strength"` // strong, moderate, weak, very_weak
	Levels        *SupportResistance  `json:"levels,omitempty"`
	Risk          RiskLevel           `json:"risk"`
	Indicators    TechnicalIndicators `json:"indicators"`
}

// Anomaly 历史走势中日涨跌幅偏离均值超过2个标准差的点
type Anomaly struct {
	Symbol        string    `json:"symbol"`
	Date          time.Time `json:"date"`
	Price         float64   `json:"price"`
	ChangePercent float64   `json:"change_percent"`
	ZScore        float64   `json:"z_score"`
	Severity      string    `json:"severity"` // medium, high
	Kind          string    `json:"kind"`     // spike, drop
}

// MarketRisk 整体市场风险
type MarketRisk struct {
	Level             RiskLevel `json:"level"`
	AverageVolatility float64   `json:"average_volatility"`
	PriceDispersion   float64   `json:"price_dispersion"`
	Factors           []string  `json:"factors"`
}
