package assets

import (
	"sort"
	"strings"
	"sync"
)

type Asset struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	CoinGeckoID string `json:"coingecko_id"`
}

var (
	mu     sync.RWMutex
	assets = make(map[string]Asset)
)

func init() {
	for _, a := range []Asset{
		{Symbol: "BTC", Name: "Bitcoin", CoinGeckoID: "bitcoin"},
		{Symbol: "ETH", Name: "Ethereum", CoinGeckoID: "ethereum"},
		{Symbol: "USDT", Name: "Tether", CoinGeckoID: "tether"},
		{Symbol: "BNB", Name: "Binance Coin", CoinGeckoID: "binancecoin"},
		{Symbol: "ADA", Name: "Cardano", CoinGeckoID: "cardano"},
		{Symbol: "DOT", Name: "Polkadot", CoinGeckoID: "polkadot"},
		{Symbol: "LINK", Name: "Chainlink", CoinGeckoID: "chainlink"},
	} {
		Register(a)
	}
}

func Register(a Asset) {
	mu.Lock()
	defer mu.Unlock()

	a.Symbol = strings.ToUpper(a.Symbol)
	assets[a.Symbol] = a
}

func Get(symbol string) (Asset, bool) {
	mu.RLock()
	defer mu.RUnlock()

	a, ok := assets[strings.ToUpper(symbol)]
	return a, ok
}

func Supported(symbol string) bool {
	_, ok := Get(symbol)
	return ok
}

// Name falls back to the symbol for assets nobody registered.
func Name(symbol string) string {
	if a, ok := Get(symbol); ok {
		return a.Name
	}
	return strings.ToUpper(symbol)
}

func Symbols() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(assets))
	for s := range assets {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
