package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"custody-wallet/internal/rates"
)

// Valuation prices every holding of owner at the freshest available rate and
// returns the resulting total. Stale rates are refreshed first. Nothing is
// written; Revalue persists the same computation.
func (e *Engine) Valuation(ctx context.Context, owner string) (*Valuation, error) {
	defer observe("valuation", time.Now())

	wallet, err := e.directory.GetWallet(ctx, owner)
	if err != nil {
		return nil, err
	}
	balances, err := e.directory.ListBalances(ctx, owner)
	if err != nil {
		return nil, err
	}

	resolved, err := e.ratesFor(ctx, balances)
	if err != nil {
		return nil, err
	}

	v := &Valuation{
		Owner:      owner,
		Currency:   wallet.Currency,
		TotalUSD:   decimal.Zero,
		Assets:     make([]AssetBalance, 0, len(balances)),
		ComputedAt: e.now().UTC(),
	}
	for _, b := range balances {
		price(&b, resolved)
		v.TotalUSD = v.TotalUSD.Add(b.ValuationUSD)
		v.Assets = append(v.Assets, b)
	}
	return v, nil
}

// Revalue reprices owner's holdings like Valuation and stores the new
// valuations and wallet total.
func (e *Engine) Revalue(ctx context.Context, owner string) (*Valuation, error) {
	defer observe("revalue", time.Now())

	wallet, err := e.directory.GetWallet(ctx, owner)
	if err != nil {
		return nil, err
	}
	balances, err := e.directory.ListBalances(ctx, owner)
	if err != nil {
		return nil, err
	}

	resolved, err := e.ratesFor(ctx, balances)
	if err != nil {
		return nil, err
	}

	keys := []string{walletKey(owner)}
	for _, b := range balances {
		keys = append(keys, balanceKey(owner, b.Symbol))
	}

	v := &Valuation{Owner: owner, Currency: wallet.Currency}
	err = e.apply(ctx, keys, func(tx *sql.Tx) error {
		now := e.now().UTC()

		current, err := ListBalances(ctx, tx, owner)
		if err != nil {
			return err
		}
		for i := range current {
			if price(&current[i], resolved) {
				current[i].UpdatedAt = now
				if err := saveBalance(ctx, tx, current[i]); err != nil {
					return err
				}
			}
		}

		w, err := recomputeWallet(ctx, tx, owner, now)
		if err != nil {
			return err
		}
		v.TotalUSD = w.TotalUSD
		v.Assets = current
		v.ComputedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ratesFor resolves the rates of every symbol held in a positive quantity.
// Empty balances are worth zero whatever the rate.
func (e *Engine) ratesFor(ctx context.Context, balances []AssetBalance) (map[string]rates.Rate, error) {
	var symbols []string
	for _, b := range balances {
		if b.Quantity.IsPositive() {
			symbols = append(symbols, b.Symbol)
		}
	}
	if len(symbols) == 0 {
		return map[string]rates.Rate{}, nil
	}

	resolved, err := e.rates.Resolve(ctx, symbols...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRateUnavailable, err)
	}
	return resolved, nil
}

// price revalues b from resolved and reports whether b changed. A balance
// whose symbol was not resolved keeps its stored valuation unless it is empty.
func price(b *AssetBalance, resolved map[string]rates.Rate) bool {
	if r, ok := resolved[b.Symbol]; ok {
		b.revalue(r.USD)
		return true
	}
	if b.Quantity.IsZero() && !b.ValuationUSD.IsZero() {
		b.ValuationUSD = decimal.Zero
		return true
	}
	return false
}
