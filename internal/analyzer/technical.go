package analyzer

import (
	"math"

	"market-mirror/pkg/types"
)

// 技术指标窗口
const (
	rsiPeriod        = 14
	volatilityWindow = 10
	momentumWindow   = 5
	bollingerWindow  = 20
	levelsWindow     = 20
	minLevelPoints   = 10
	minAnomalyPoints = 10
	anomalyZScore    = 2.0
	severeZScore     = 3.0
)

// historyPrices 取出历史价格序列
func historyPrices(r types.MarketRecord) []float64 {
	prices := make([]float64, 0, len(r.History))
	for _, p := range r.History {
		prices = append(prices, p.Price)
	}
	return prices
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdDev 样本标准差，少于2个数据点时为0
func sampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		sq += (x - m) * (x - m)
	}
	return math.Sqrt(sq / float64(len(xs)-1))
}

func ptr(v float64) *float64 { return &v }

func tail(xs []float64, n int) []float64 {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

// Indicators 根据历史价格计算SMA、波动率、动量、RSI与布林带
func Indicators(prices []float64) types.TechnicalIndicators {
	var ind types.TechnicalIndicators
	n := len(prices)

	if n >= 5 {
		ind.SMA5 = ptr(mean(tail(prices, 5)))
	}
	if n >= 10 {
		ind.SMA10 = ptr(mean(tail(prices, 10)))
	}
	if n >= bollingerWindow {
		window := tail(prices, bollingerWindow)
		mid := mean(window)
		sd := sampleStdDev(window)
		ind.SMA20 = ptr(mid)
		ind.BollingerMiddle = ptr(mid)
		ind.BollingerUpper = ptr(mid + 2*sd)
		ind.BollingerLower = ptr(mid - 2*sd)
	}
	if n >= volatilityWindow {
		window := tail(prices, volatilityWindow)
		if m := mean(window); m != 0 {
			ind.Volatility = ptr(sampleStdDev(window) / m * 100)
		}
	}
	if n >= momentumWindow {
		base := prices[n-momentumWindow]
		if base != 0 {
			ind.Momentum5d = ptr((prices[n-1] - base) / base * 100)
		}
	}
	if n >= rsiPeriod {
		ind.RSI = ptr(RSI(tail(prices, rsiPeriod)))
	}
	return ind
}

// RSI 相对强弱指数，没有下跌时为100，结果保留两位小数
func RSI(prices []float64) float64 {
	if len(prices) < 2 {
		return 50
	}
	var gains, losses float64
	steps := float64(len(prices) - 1)
	for i := 1; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	avgGain, avgLoss := gains/steps, losses/steps
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return math.Round((100-100/(1+rs))*100) / 100
}

// Levels 最近20个价格中高于现价2%的最低点为阻力位，低于现价2%的最高点为支撑位
//
// 历史少于10个点时返回nil。
func Levels(prices []float64, current float64) *types.SupportResistance {
	if len(prices) < minLevelPoints {
		return nil
	}
	window := tail(prices, levelsWindow)
	high, low := window[0], window[0]
	for _, p := range window {
		high = math.Max(high, p)
		low = math.Min(low, p)
	}

	lv := &types.SupportResistance{
		NearestSupport:    low,
		NearestResistance: high,
		RecentHigh:        high,
		RecentLow:         low,
	}
	foundRes, foundSup := false, false
	for _, p := range window {
		if p > current*1.02 && (!foundRes || p < lv.NearestResistance) {
			lv.NearestResistance = p
			foundRes = true
		}
		if p < current*0.98 && (!foundSup || p > lv.NearestSupport) {
			lv.NearestSupport = p
			foundSup = true
		}
	}
	return lv
}

// DetectAnomalies 日涨跌幅的z分数超过2视为异常，超过3为严重
func DetectAnomalies(r types.MarketRecord) []types.Anomaly {
	if len(r.History) < minAnomalyPoints {
		return nil
	}
	changes := make([]float64, 0, len(r.History)-1)
	for i := 1; i < len(r.History); i++ {
		prev := r.History[i-1].Price
		if prev == 0 {
			changes = append(changes, 0)
			continue
		}
		changes = append(changes, (r.History[i].Price-prev)/prev*100)
	}
	if len(changes) < 5 {
		return nil
	}

	m := mean(changes)
	sd := sampleStdDev(changes)
	if sd == 0 {
		return nil
	}

	var out []types.Anomaly
	for i, c := range changes {
		z := math.Abs(c-m) / sd
		if z <= anomalyZScore {
			continue
		}
		a := types.Anomaly{
			Symbol:        r.Symbol,
			Date:          r.History[i+1].Date,
			Price:         r.History[i+1].Price,
			ChangePercent: c,
			ZScore:        z,
			Severity:      "medium",
			Kind:          "drop",
		}
		if z > severeZScore {
			a.Severity = "high"
		}
		if c > 0 {
			a.Kind = "spike"
		}
		out = append(out, a)
	}
	return out
}

// AnalyzeAsset 单个资产的趋势方向、强度、支撑阻力与风险
func AnalyzeAsset(r types.MarketRecord) types.AssetAnalysis {
	prices := historyPrices(r)
	ind := Indicators(prices)
	return types.AssetAnalysis{
		Symbol:        r.Symbol,
		Name:          r.Name,
		Price:         r.Price,
		ChangePercent: r.ChangePercent,
		Direction:     direction(r.ChangePercent, ind, len(prices) >= 2),
		Strength:      strength(r.ChangePercent, ind),
		Levels:        Levels(prices, r.Price),
		Risk:          assetRisk(r.ChangePercent, ind),
		Indicators:    ind,
	}
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// direction 有历史时结合动量与RSI，否则只看涨跌幅
func direction(change float64, ind types.TechnicalIndicators, hasHistory bool) types.TrendDirection {
	if hasHistory {
		mom := valueOr(ind.Momentum5d, 0)
		rsi := valueOr(ind.RSI, 50)
		switch {
		case change > 3 && mom > 5 && rsi > 60:
			return types.DirectionStrongBullish
		case change > 1 || (mom > 2 && rsi > 55):
			return types.DirectionBullish
		case change < -3 && mom < -5 && rsi < 40:
			return types.DirectionStrongBearish
		case change < -1 || (mom < -2 && rsi < 45):
			return types.DirectionBearish
		}
	}
	switch {
	case change > trendThreshold:
		return types.DirectionBullish
	case change < -trendThreshold:
		return types.DirectionBearish
	default:
		return types.DirectionNeutral
	}
}

func strength(change float64, ind types.TechnicalIndicators) string {
	abs := math.Abs(change)
	if ind.Volatility != nil {
		vol := *ind.Volatility
		mom := math.Abs(valueOr(ind.Momentum5d, 0))
		switch {
		case abs > 5 && vol < 10 && mom > 5:
			return "strong"
		case abs > 2 && vol < 15:
			return "moderate"
		}
	}
	if abs > 1 {
		return "weak"
	}
	return "very_weak"
}

// assetRisk 高波动直接判为高风险，两个及以上风险因素也为高风险
func assetRisk(change float64, ind types.TechnicalIndicators) types.RiskLevel {
	factors := 0
	highVol := false
	if ind.Volatility != nil {
		switch vol := *ind.Volatility; {
		case vol > 20:
			factors++
			highVol = true
		case vol > 10:
			factors++
		}
	}
	if math.Abs(change) > 10 {
		factors++
	}
	switch {
	case highVol || factors >= 2:
		return types.RiskHigh
	case factors == 1:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// marketRisk 综合平均波动率与涨跌幅离散度
func marketRisk(batch []types.MarketRecord, assets []types.AssetAnalysis) types.MarketRisk {
	var vols []float64
	highVolCount := 0
	for _, a := range assets {
		if a.Indicators.Volatility == nil {
			continue
		}
		vols = append(vols, *a.Indicators.Volatility)
		if *a.Indicators.Volatility > highVolatility {
			highVolCount++
		}
	}

	changes := make([]float64, 0, len(batch))
	allUp, allDown := true, true
	for _, r := range batch {
		changes = append(changes, r.ChangePercent)
		if r.ChangePercent <= profitTakingThreshold {
			allUp = false
		}
		if r.ChangePercent >= -profitTakingThreshold {
			allDown = false
		}
	}

	risk := types.MarketRisk{
		Level:             types.RiskLow,
		AverageVolatility: mean(vols),
		PriceDispersion:   sampleStdDev(changes),
		Factors:           []string{},
	}
	switch {
	case risk.AverageVolatility > 15 || risk.PriceDispersion > 10:
		risk.Level = types.RiskHigh
	case risk.AverageVolatility > 8 || risk.PriceDispersion > 5:
		risk.Level = types.RiskMedium
	}

	if highVolCount*2 > len(assets) {
		risk.Factors = append(risk.Factors, "widespread_high_volatility")
	}
	if allUp {
		risk.Factors = append(risk.Factors, "overheating_market")
	}
	if allDown {
		risk.Factors = append(risk.Factors, "market_selloff")
	}
	return risk
}
