package synthetic

import (
	"strings"

	"market-mirror/pkg/types"
)

// Reference 资产参考信息：展示名称与基准价格
type Reference struct {
	Symbol   string
	Name     string
	Baseline float64
}

// 各市场的参考价格表，顺序即为支持的交易对列表顺序
var referenceTables = map[types.MarketType][]Reference{
	types.MarketStocks: {
		{Symbol: "AAPL", Name: "Apple Inc.", Baseline: 190.50},
		{Symbol: "GOOGL", Name: "Alphabet Inc.", Baseline: 140.30},
		{Symbol: "MSFT", Name: "Microsoft Corporation", Baseline: 350.75},
		{Symbol: "TSLA", Name: "Tesla, Inc.", Baseline: 245.80},
		{Symbol: "AMZN", Name: "Amazon.com, Inc.", Baseline: 180.25},
		{Symbol: "NVDA", Name: "NVIDIA Corporation", Baseline: 875.00},
		{Symbol: "META", Name: "Meta Platforms, Inc.", Baseline: 485.00},
		{Symbol: "NFLX", Name: "Netflix, Inc.", Baseline: 610.00},
	},
	types.MarketCrypto: {
		{Symbol: "BTC", Name: "Bitcoin", Baseline: 65000.0},
		{Symbol: "ETH", Name: "Ethereum", Baseline: 3200.0},
		{Symbol: "SOL", Name: "Solana", Baseline: 180.0},
		{Symbol: "ADA", Name: "Cardano", Baseline: 0.45},
		{Symbol: "DOT", Name: "Polkadot", Baseline: 7.50},
		{Symbol: "LINK", Name: "Chainlink", Baseline: 18.0},
		{Symbol: "UNI", Name: "Uniswap", Baseline: 10.0},
		{Symbol: "AVAX", Name: "Avalanche", Baseline: 38.0},
	},
	types.MarketEcommerce: {
		{Symbol: "iPhone15", Name: "iPhone 15 Pro", Baseline: 999.0},
		{Symbol: "AirPods", Name: "AirPods Pro", Baseline: 249.0},
		{Symbol: "MacBook", Name: "MacBook Air M2", Baseline: 1199.0},
		{Symbol: "iPad", Name: "iPad Pro", Baseline: 799.0},
		{Symbol: "Watch", Name: "Apple Watch Ultra", Baseline: 799.0},
		{Symbol: "PS5", Name: "PlayStation 5", Baseline: 499.0},
		{Symbol: "Switch", Name: "Nintendo Switch OLED", Baseline: 349.0},
		{Symbol: "XBox", Name: "Xbox Series X", Baseline: 499.0},
	},
}

// LookupReference 按交易对查找参考信息，大小写不敏感
func LookupReference(market types.MarketType, symbol string) (Reference, bool) {
	for _, ref := range referenceTables[market] {
		if strings.EqualFold(ref.Symbol, symbol) {
			return ref, true
		}
	}
	return Reference{}, false
}

// SupportedSymbols 返回某个市场的参考交易对
func SupportedSymbols(market types.MarketType) []string {
	table := referenceTables[market]
	symbols := make([]string, 0, len(table))
	for _, ref := range table {
		symbols = append(symbols, ref.Symbol)
	}
	return symbols
}

// guessReference 未收录交易对的兜底参考
func guessReference(market types.MarketType, symbol string) Reference {
	switch market {
	case types.MarketStocks:
		sym := strings.ToUpper(symbol)
		return Reference{Symbol: sym, Name: sym + " Inc.", Baseline: 100.0}
	case types.MarketCrypto:
		sym := strings.ToUpper(symbol)
		return Reference{Symbol: sym, Name: sym + " Token", Baseline: 1.0}
	default:
		return Reference{Symbol: symbol, Name: "Product " + symbol, Baseline: 99.0}
	}
}
