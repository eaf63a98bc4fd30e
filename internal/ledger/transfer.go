package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"custody-wallet/internal/money"
	"custody-wallet/internal/monitoring"
)

// Transfer moves amount of symbol from sender to the owner behind
// recipientIdentity. Debit and credit commit together. A transfer to oneself
// is checked like any other and recorded, but leaves quantities unchanged.
func (e *Engine) Transfer(ctx context.Context, sender, recipientIdentity, symbol string, amount decimal.Decimal) (*Receipt, error) {
	defer observe(string(TypeTransfer), time.Now())

	symbol = money.NormalizeSymbol(symbol)

	if err := validate(symbol, amount); err != nil {
		return nil, err
	}
	if _, err := e.directory.GetWallet(ctx, sender); err != nil {
		return nil, err
	}

	recipient, err := e.directory.ResolveOwner(ctx, recipientIdentity)
	if err != nil {
		if errors.Is(err, ErrOwnerNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRecipientNotFound, recipientIdentity)
		}
		return nil, err
	}

	rec := &Transaction{
		Owner:        sender,
		Type:         TypeTransfer,
		Symbol:       symbol,
		Amount:       amount,
		Counterparty: recipient,
	}
	if err := e.open(ctx, rec); err != nil {
		return nil, err
	}

	rate, err := e.rateFor(ctx, symbol)
	if err != nil {
		return nil, e.fail(ctx, rec, err)
	}

	var receipt Receipt
	keys := []string{
		balanceKey(sender, symbol),
		balanceKey(recipient, symbol),
		walletKey(sender),
		walletKey(recipient),
	}

	err = e.apply(ctx, keys, func(tx *sql.Tx) error {
		from, err := debitable(ctx, tx, sender, symbol, amount)
		if err != nil {
			return err
		}
		now := e.now().UTC()

		if recipient == sender {
			from.revalue(rate.USD)
			from.UpdatedAt = now
			if err := saveBalance(ctx, tx, from); err != nil {
				return err
			}
			wallet, err := recomputeWallet(ctx, tx, sender, now)
			if err != nil {
				return err
			}
			if err := e.complete(ctx, tx, rec, money.Value(amount, rate.USD), now); err != nil {
				return err
			}
			receipt.Balance, receipt.Wallet = from, wallet
			receipt.RecipientBalance, receipt.RecipientWallet = &from, &wallet
			return nil
		}

		to, _, err := getBalance(ctx, tx, recipient, symbol)
		if err != nil {
			return err
		}

		from.Quantity = money.Quantity(from.Quantity.Sub(amount))
		to.Quantity = money.Quantity(to.Quantity.Add(amount))
		for _, b := range []*AssetBalance{&from, &to} {
			b.revalue(rate.USD)
			b.UpdatedAt = now
			if err := saveBalance(ctx, tx, *b); err != nil {
				return err
			}
		}

		fromWallet, err := recomputeWallet(ctx, tx, sender, now)
		if err != nil {
			return err
		}
		toWallet, err := recomputeWallet(ctx, tx, recipient, now)
		if err != nil {
			return err
		}
		if err := e.complete(ctx, tx, rec, money.Value(amount, rate.USD), now); err != nil {
			return err
		}

		receipt.Balance, receipt.Wallet = from, fromWallet
		receipt.RecipientBalance, receipt.RecipientWallet = &to, &toWallet
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, rec, err)
	}

	monitoring.WalletBalanceChanges.Add(2)
	e.finished(*rec)

	receipt.Transaction = *rec
	return &receipt, nil
}
