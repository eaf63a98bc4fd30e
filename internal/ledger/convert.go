package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"custody-wallet/internal/money"
)

// Convert prices amount of from in to, through USD. The USD value is rounded
// to cents and the result to asset precision, both half-up; the result is
// computed from the unrounded USD value.
func (e *Engine) Convert(ctx context.Context, from, to string, amount decimal.Decimal) (*Conversion, error) {
	defer observe("convert", time.Now())

	from = money.NormalizeSymbol(from)
	to = money.NormalizeSymbol(to)

	if err := validate(from, amount); err != nil {
		return nil, err
	}
	if to == "" {
		return nil, ErrInvalidSymbol
	}

	resolved, err := e.rates.Resolve(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRateUnavailable, err)
	}
	fromRate, ok := resolved[from]
	if !ok || !fromRate.USD.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrRateUnavailable, from)
	}
	toRate, ok := resolved[to]
	if !ok || !toRate.USD.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrRateUnavailable, to)
	}

	usd := amount.Mul(fromRate.USD)

	observed := fromRate.ObservedAt
	if toRate.ObservedAt.After(observed) {
		observed = toRate.ObservedAt
	}

	return &Conversion{
		From:       from,
		To:         to,
		Amount:     amount,
		Result:     usd.DivRound(toRate.USD, money.QuantityPlaces),
		USDValue:   money.USD(usd),
		FromRate:   fromRate.USD,
		ToRate:     toRate.USD,
		ObservedAt: observed,
	}, nil
}
