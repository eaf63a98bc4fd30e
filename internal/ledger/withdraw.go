package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"custody-wallet/internal/money"
	"custody-wallet/internal/monitoring"
)

// Withdraw debits amount of symbol from owner towards destination. A balance
// that does not exist or does not cover amount leaves a failed record and
// unchanged balances.
func (e *Engine) Withdraw(ctx context.Context, owner, symbol string, amount decimal.Decimal, destination string) (*Receipt, error) {
	defer observe(string(TypeWithdrawal), time.Now())

	symbol = money.NormalizeSymbol(symbol)
	destination = strings.TrimSpace(destination)

	if err := validate(symbol, amount); err != nil {
		return nil, err
	}
	if destination == "" {
		return nil, ErrInvalidDestination
	}
	if _, err := e.directory.GetWallet(ctx, owner); err != nil {
		return nil, err
	}

	rec := &Transaction{
		Owner:       owner,
		Type:        TypeWithdrawal,
		Symbol:      symbol,
		Amount:      amount,
		Destination: destination,
	}
	if err := e.open(ctx, rec); err != nil {
		return nil, err
	}

	rate, err := e.rateFor(ctx, symbol)
	if err != nil {
		return nil, e.fail(ctx, rec, err)
	}

	var receipt Receipt
	keys := []string{balanceKey(owner, symbol), walletKey(owner)}

	err = e.apply(ctx, keys, func(tx *sql.Tx) error {
		bal, err := debitable(ctx, tx, owner, symbol, amount)
		if err != nil {
			return err
		}

		now := e.now().UTC()
		bal.Quantity = money.Quantity(bal.Quantity.Sub(amount))
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

// debitable loads the balance amount is taken from, failing when the owner
// never held symbol or holds less than amount.
func debitable(ctx context.Context, q DBTX, owner, symbol string, amount decimal.Decimal) (AssetBalance, error) {
	bal, found, err := getBalance(ctx, q, owner, symbol)
	if err != nil {
		return AssetBalance{}, err
	}
	if !found {
		return AssetBalance{}, fmt.Errorf("%w: %s", ErrAssetNotFound, symbol)
	}
	if bal.Quantity.LessThan(amount) {
		return AssetBalance{}, fmt.Errorf("%w: %s %s available, %s requested",
			ErrInsufficientBalance, bal.Quantity, symbol, amount)
	}
	return bal, nil
}
