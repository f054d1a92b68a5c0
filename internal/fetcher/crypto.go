package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"market-mirror/pkg/types"
)

// 常用币种的CoinGecko ID，未收录的使用小写交易对
var coinIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"ADA":  "cardano",
	"DOT":  "polkadot",
	"LINK": "chainlink",
	"UNI":  "uniswap",
	"AVAX": "avalanche-2",
}

// CoinID 交易对对应的数据源ID
func CoinID(symbol string) string {
	if id, ok := coinIDs[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// coinMarket /coins/markets 返回的单个币种
type coinMarket struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	CurrentPrice             float64  `json:"current_price"`
	PriceChange24h           float64  `json:"price_change_24h"`
	PriceChangePercentage24h float64  `json:"price_change_percentage_24h"`
	MarketCap                *float64 `json:"market_cap"`
	TotalVolume              float64  `json:"total_volume"`
	High24h                  float64  `json:"high_24h"`
	Low24h                   float64  `json:"low_24h"`
}

// coinChart /coins/{id}/market_chart 的返回
type coinChart struct {
	Prices       [][]float64 `json:"prices"`
	TotalVolumes [][]float64 `json:"total_volumes"`
}

// CryptoProvider 加密货币行情数据源
type CryptoProvider struct {
	client
	baseURL string
	now     func() time.Time
}

// NewCryptoProvider 创建加密货币数据源
func NewCryptoProvider(baseURL string, httpClient *http.Client, opts Options) *CryptoProvider {
	return &CryptoProvider{
		client:  client{httpClient: httpClient, opts: opts.withDefaults()},
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// FetchRecords 获取行情与历史，任意币种失败则整个批次失败
func (p *CryptoProvider) FetchRecords(ctx context.Context, symbols []string, timeRange types.TimeRange) ([]types.MarketRecord, error) {
	ids := make([]string, 0, len(symbols))
	for _, s := range symbols {
		ids = append(ids, CoinID(s))
	}

	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("ids", strings.Join(ids, ","))
	var markets []coinMarket
	if err := p.getJSON(ctx, p.baseURL+"/coins/markets?"+query.Encode(), &markets); err != nil {
		return nil, fmt.Errorf("fetch crypto markets: %w", err)
	}

	byID := make(map[string]coinMarket, len(markets))
	for _, m := range markets {
		byID[m.ID] = m
	}

	now := p.now()
	records := make([]types.MarketRecord, 0, len(symbols))
	for i, symbol := range symbols {
		market, ok := byID[ids[i]]
		if !ok {
			return nil, fmt.Errorf("%w: no market data for %s (id %s)", ErrUpstreamUnavailable, symbol, ids[i])
		}

		if err := p.pace(ctx, i); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		history, err := p.fetchHistory(ctx, ids[i], timeRange)
		if err != nil {
			return nil, fmt.Errorf("fetch history for %s: %w", symbol, err)
		}

		records = append(records, types.MarketRecord{
			Symbol:        strings.ToUpper(symbol),
			Name:          market.Name,
			Price:         market.CurrentPrice,
			Change:        market.PriceChange24h,
			ChangePercent: market.PriceChangePercentage24h,
			Volume:        market.TotalVolume,
			High24h:       market.High24h,
			Low24h:        market.Low24h,
			MarketCap:     market.MarketCap,
			Timestamp:     now,
			History:       history,
		})
	}

	zap.L().Debug("✅ 获取加密货币行情完成", zap.Strings("ids", ids))
	return records, nil
}

func (p *CryptoProvider) fetchHistory(ctx context.Context, id string, timeRange types.TimeRange) ([]types.HistoryPoint, error) {
	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("days", fmt.Sprintf("%d", timeRange.Days()))
	query.Set("interval", "daily")

	var chart coinChart
	if err := p.getJSON(ctx, fmt.Sprintf("%s/coins/%s/market_chart?%s", p.baseURL, url.PathEscape(id), query.Encode()), &chart); err != nil {
		return nil, err
	}
	return parseCoinChart(chart)
}

// parseCoinChart 按日期合并价格与成交量，同一天保留最后一个价格
func parseCoinChart(chart coinChart) ([]types.HistoryPoint, error) {
	volumes := make(map[int64]float64, len(chart.TotalVolumes))
	for _, v := range chart.TotalVolumes {
		if len(v) < 2 {
			return nil, fmt.Errorf("%w: malformed volume point", ErrUpstreamUnavailable)
		}
		volumes[dayStart(time.UnixMilli(int64(v[0]))).Unix()] = v[1]
	}

	byDay := make(map[int64]types.HistoryPoint, len(chart.Prices))
	for _, pt := range chart.Prices {
		if len(pt) < 2 {
			return nil, fmt.Errorf("%w: malformed price point", ErrUpstreamUnavailable)
		}
		day := dayStart(time.UnixMilli(int64(pt[0])))
		byDay[day.Unix()] = types.HistoryPoint{Date: day, Price: pt[1], Volume: volumes[day.Unix()]}
	}

	history := make([]types.HistoryPoint, 0, len(byDay))
	for _, hp := range byDay {
		history = append(history, hp)
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Date.Before(history[j].Date) })
	return history, nil
}
