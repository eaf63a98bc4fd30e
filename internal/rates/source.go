package rates

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"custody-wallet/internal/money"
)

// Source is the external price feed. Implementations return prices only for
// the symbols they know; unknown symbols are simply absent from the result.
type Source interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

type SourceFunc func(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)

func (f SourceFunc) FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	return f(ctx, symbols)
}

// StaticSource serves fixed prices. Used for local runs and tests.
type StaticSource map[string]decimal.Decimal

func (s StaticSource) FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(symbols))
	for _, sym := range symbols {
		if p, ok := s[money.NormalizeSymbol(sym)]; ok {
			out[sym] = p
		}
	}
	return out, nil
}

// ParseStatic reads "BTC=50000,ETH=2500".
func ParseStatic(raw string) (StaticSource, error) {
	out := make(StaticSource)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		sym, price, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("static rate %q: expected SYMBOL=PRICE", pair)
		}
		p, err := decimal.NewFromString(strings.TrimSpace(price))
		if err != nil {
			return nil, fmt.Errorf("static rate %q: %w", pair, err)
		}
		out[money.NormalizeSymbol(sym)] = p
	}
	return out, nil
}
