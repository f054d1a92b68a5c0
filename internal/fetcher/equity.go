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

// chartResponse 股票K线接口的返回结构
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string   `json:"symbol"`
				RegularMarketPrice   float64  `json:"regularMarketPrice"`
				PreviousClose        float64  `json:"previousClose"`
				ChartPreviousClose   float64  `json:"chartPreviousClose"`
				RegularMarketVolume  float64  `json:"regularMarketVolume"`
				RegularMarketDayHigh float64  `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64  `json:"regularMarketDayLow"`
				LongName             string   `json:"longName"`
				ShortName            string   `json:"shortName"`
				MarketCap            *float64 `json:"marketCap"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// EquityProvider 股票行情数据源
type EquityProvider struct {
	client
	baseURL string
	now     func() time.Time
}

// NewEquityProvider 创建股票数据源
func NewEquityProvider(baseURL string, httpClient *http.Client, opts Options) *EquityProvider {
	return &EquityProvider{
		client:  client{httpClient: httpClient, opts: opts.withDefaults()},
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// chartRange 时间范围对应的接口参数
func chartRange(tr types.TimeRange) string {
	switch tr {
	case types.Range1D:
		return "5d" // 日线至少需要几个交易日才能计算涨跌
	case types.Range7D:
		return "7d"
	case types.Range3M:
		return "3mo"
	default:
		return "1mo"
	}
}

// FetchRecords 逐个请求交易对，任意一个失败则整个批次失败
func (p *EquityProvider) FetchRecords(ctx context.Context, symbols []string, timeRange types.TimeRange) ([]types.MarketRecord, error) {
	records := make([]types.MarketRecord, 0, len(symbols))
	for i, symbol := range symbols {
		if err := p.pace(ctx, i); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}

		query := url.Values{}
		query.Set("range", chartRange(timeRange))
		query.Set("interval", "1d")
		requestURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(strings.ToUpper(symbol)), query.Encode())

		var resp chartResponse
		if err := p.getJSON(ctx, requestURL, &resp); err != nil {
			return nil, fmt.Errorf("fetch chart for %s: %w", symbol, err)
		}

		record, err := parseChart(symbol, &resp, p.now())
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	zap.L().Debug("✅ 获取股票行情完成", zap.Strings("symbols", symbols))
	return records, nil
}

// parseChart 将接口返回映射为MarketRecord
func parseChart(symbol string, resp *chartResponse, now time.Time) (types.MarketRecord, error) {
	if resp.Chart.Error != nil {
		return types.MarketRecord{}, fmt.Errorf("%w: %s: %s", ErrUpstreamUnavailable, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return types.MarketRecord{}, fmt.Errorf("%w: empty chart result for %s", ErrUpstreamUnavailable, symbol)
	}

	result := resp.Chart.Result[0]
	meta := result.Meta
	if meta.RegularMarketPrice <= 0 {
		return types.MarketRecord{}, fmt.Errorf("%w: missing price for %s", ErrUpstreamUnavailable, symbol)
	}

	previousClose := meta.PreviousClose
	if previousClose == 0 {
		previousClose = meta.ChartPreviousClose
	}
	change := 0.0
	changePercent := 0.0
	if previousClose > 0 {
		change = meta.RegularMarketPrice - previousClose
		changePercent = change / previousClose * 100
	}

	name := meta.LongName
	if name == "" {
		name = meta.ShortName
	}
	if name == "" {
		name = strings.ToUpper(symbol)
	}

	var history []types.HistoryPoint
	if len(result.Indicators.Quote) > 0 {
		quote := result.Indicators.Quote[0]
		for i, ts := range result.Timestamp {
			if i >= len(quote.Close) || quote.Close[i] == nil {
				continue
			}
			point := types.HistoryPoint{
				Date:  dayStart(time.Unix(ts, 0)),
				Price: *quote.Close[i],
			}
			if i < len(quote.Volume) && quote.Volume[i] != nil {
				point.Volume = *quote.Volume[i]
			}
			history = append(history, point)
		}
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].Date.Before(history[j].Date) })

	return types.MarketRecord{
		Symbol:        strings.ToUpper(symbol),
		Name:          name,
		Price:         meta.RegularMarketPrice,
		Change:        change,
		ChangePercent: changePercent,
		Volume:        meta.RegularMarketVolume,
		High24h:       meta.RegularMarketDayHigh,
		Low24h:        meta.RegularMarketDayLow,
		MarketCap:     meta.MarketCap,
		Timestamp:     now,
		History:       history,
	}, nil
}
