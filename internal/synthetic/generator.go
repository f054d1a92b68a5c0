// Package synthetic 在上游数据不可用时生成模拟行情与历史走势
package synthetic

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"market-mirror/internal/clock"
	"market-mirror/pkg/types"
)

// HistoryDays 模拟历史的天数
const HistoryDays = 30

// Random 随机数源，*rand.Rand 满足该接口
type Random interface {
	Float64() float64
}

// profile 各市场的波动参数
type profile struct {
	currentSwing float64 // 当前价格相对基准的最大偏移
	dailySwing   float64 // 每日最大波动
	promotions   bool    // 是否模拟促销
	minVolume    float64
	volumeSpan   float64
	capMultiple  float64 // 市值 = 价格 * capMultiple，为0表示无市值
}

var profiles = map[types.MarketType]profile{
	types.MarketStocks:    {currentSwing: 0.03, dailySwing: 0.02, minVolume: 1e6, volumeSpan: 1e7, capMultiple: 1e9},
	types.MarketCrypto:    {currentSwing: 0.075, dailySwing: 0.04, minVolume: 1e7, volumeSpan: 1e9, capMultiple: 21e6},
	types.MarketEcommerce: {currentSwing: 0.05, dailySwing: 0.01, promotions: true, minVolume: 50, volumeSpan: 1000},
}

const (
	promotionChance  = 0.05
	markdownBias     = 0.70
	priceFloorFactor = 0.70
)

// Generator 模拟数据生成器
type Generator struct {
	mu    sync.Mutex
	rnd   Random
	clock clock.Clock
}

// NewGenerator 创建生成器，rnd为nil时使用以当前时间为种子的随机源
func NewGenerator(rnd Random, clk clock.Clock) *Generator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Generator{rnd: rnd, clock: clk}
}

// Batch 为一组交易对生成模拟行情，顺序与输入一致
func (g *Generator) Batch(market types.MarketType, symbols []string) []types.MarketRecord {
	records := make([]types.MarketRecord, 0, len(symbols))
	for _, symbol := range symbols {
		records = append(records, g.Record(market, symbol, nil))
	}
	return records
}

// Record 生成单个资产的模拟行情；ref为nil时先查参考表，再使用兜底估价
func (g *Generator) Record(market types.MarketType, symbol string, ref *Reference) types.MarketRecord {
	var base Reference
	switch {
	case ref != nil && ref.Baseline > 0:
		base = *ref
		if base.Symbol == "" {
			base.Symbol = symbol
		}
		if base.Name == "" {
			base.Name = guessReference(market, symbol).Name
		}
	default:
		var ok bool
		if base, ok = LookupReference(market, symbol); !ok {
			base = guessReference(market, symbol)
		}
	}

	p, ok := profiles[market]
	if !ok {
		p = profiles[types.MarketStocks]
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	move := g.swing(p.currentSwing)
	price := base.Baseline * (1 + move)

	record := types.MarketRecord{
		Symbol:        base.Symbol,
		Name:          base.Name,
		Price:         price,
		Change:        price - base.Baseline,
		ChangePercent: move * 100,
		Volume:        g.volume(p),
		High24h:       base.Baseline * (1 + p.currentSwing),
		Low24h:        base.Baseline * (1 - p.currentSwing),
		Timestamp:     now,
		History:       g.history(base.Baseline, p, now),
	}
	if p.capMultiple > 0 {
		marketCap := price * p.capMultiple
		record.MarketCap = &marketCap
	}
	return record
}

// history 以基准价格做乘性随机游走，生成截至今天的日线
func (g *Generator) history(baseline float64, p profile, now time.Time) []types.HistoryPoint {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	points := make([]types.HistoryPoint, 0, HistoryDays)

	price := baseline
	for i := HistoryDays - 1; i >= 0; i-- {
		price *= 1 + g.swing(p.dailySwing)

		if p.promotions {
			if g.rnd.Float64() < promotionChance {
				if g.rnd.Float64() < markdownBias {
					price *= 1 - (0.10 + g.rnd.Float64()*0.10)
				} else {
					price *= 1 + (0.05 + g.rnd.Float64()*0.05)
				}
			}
			price = math.Max(price, baseline*priceFloorFactor)
		}

		points = append(points, types.HistoryPoint{
			Date:   today.AddDate(0, 0, -i),
			Price:  price,
			Volume: g.volume(p),
		})
	}
	return points
}

// swing 返回 [-x, +x] 区间的随机偏移
func (g *Generator) swing(x float64) float64 {
	return (g.rnd.Float64()*2 - 1) * x
}

func (g *Generator) volume(p profile) float64 {
	return math.Round(p.minVolume + g.rnd.Float64()*p.volumeSpan)
}
