package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"custody-wallet/internal/money"
	"custody-wallet/internal/monitoring"
)

// Deposit credits amount of symbol to owner. externalRef identifies the
// deposit upstream (a chain transaction hash) and may be used only once; a
// reference held by a pending or completed deposit is rejected without
// touching any state.
func (e *Engine) Deposit(ctx context.Context, owner, symbol string, amount decimal.Decimal, externalRef string) (*Receipt, error) {
	defer observe(string(TypeDeposit), time.Now())

	symbol = money.NormalizeSymbol(symbol)
	externalRef = strings.TrimSpace(externalRef)

	if err := validate(symbol, amount); err != nil {
		return nil, err
	}
	if externalRef == "" {
		return nil, ErrInvalidReference
	}
	if _, err := e.directory.GetWallet(ctx, owner); err != nil {
		return nil, err
	}

	taken, err := referenceTaken(ctx, e.db, externalRef)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateReference, externalRef)
	}

	rec := &Transaction{
		Owner:       owner,
		Type:        TypeDeposit,
		Symbol:      symbol,
		Amount:      amount,
		ExternalRef: externalRef,
	}
	// a racing deposit with the same reference loses at the unique index
	if err := e.open(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateReference, externalRef)
		}
		return nil, err
	}

	rate, err := e.rateFor(ctx, symbol)
	if err != nil {
		return nil, e.fail(ctx, rec, err)
	}

	var receipt Receipt
	keys := []string{balanceKey(owner, symbol), walletKey(owner)}

	err = e.apply(ctx, keys, func(tx *sql.Tx) error {
		now := e.now().UTC()

		bal, _, err := getBalance(ctx, tx, owner, symbol)
		if err != nil {
			return err
		}
		bal.Quantity = money.Quantity(bal.Quantity.Add(amount))
		bal.revalue(rate.USD)
		bal.UpdatedAt = now

		if err := saveBalance(ctx, tx, bal); err != nil {
			return err
		}
		wallet, err := recomputeWallet(ctx, tx, owner, now)
		if err != nil {
			return err
		}
		if err := e.complete(ctx, tx, rec, money.Value(amount, rate.USD), now); err != nil {
			return err
		}

		receipt.Balance = bal
		receipt.Wallet = wallet
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, rec, err)
	}

	monitoring.WalletBalanceChanges.Inc()
	e.finished(*rec)

	receipt.Transaction = *rec
	return &receipt, nil
}
