// Package ledger owns every balance mutation. Each deposit, withdrawal and
// transfer opens a pending transaction record, mutates balances under the
// per-key locks of the balances and wallets it touches, and commits the
// mutation together with the record's completion.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"custody-wallet/internal/event"
	"custody-wallet/internal/logger"
	"custody-wallet/internal/money"
	"custody-wallet/internal/monitoring"
	"custody-wallet/internal/rates"
)

type RateResolver interface {
	Resolve(ctx context.Context, symbols ...string) (map[string]rates.Rate, error)
}

// Directory resolves owners and reads their holdings. Implementations report
// unknown owners with errors wrapping ErrOwnerNotFound.
type Directory interface {
	ResolveOwner(ctx context.Context, identity string) (string, error)
	ListBalances(ctx context.Context, owner string) ([]AssetBalance, error)
	GetWallet(ctx context.Context, owner string) (Wallet, error)
}

type Publisher interface {
	Publish(event string, payload interface{})
}

type Engine struct {
	db        *sql.DB
	rates     RateResolver
	directory Directory
	bus       Publisher
	locks     *keyLock
	now       func() time.Time
}

type Option func(*Engine)

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.bus = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(db *sql.DB, rates RateResolver, directory Directory, opts ...Option) *Engine {
	e := &Engine{
		db:        db,
		rates:     rates,
		directory: directory,
		locks:     newKeyLock(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func validate(symbol string, amount decimal.Decimal) error {
	if symbol == "" {
		return ErrInvalidSymbol
	}
	if !money.ValidAmount(amount) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return nil
}

func (e *Engine) rateFor(ctx context.Context, symbol string) (rates.Rate, error) {
	resolved, err := e.rates.Resolve(ctx, symbol)
	if err != nil {
		return rates.Rate{}, fmt.Errorf("%w: %w", ErrRateUnavailable, err)
	}
	r, ok := resolved[symbol]
	if !ok || !r.USD.IsPositive() {
		return rates.Rate{}, fmt.Errorf("%w: %s", ErrRateUnavailable, symbol)
	}
	return r, nil
}

// open commits t as a pending record on its own so the attempt survives
// whatever happens to the mutation.
func (e *Engine) open(ctx context.Context, t *Transaction) error {
	t.ID = uuid.New().String()
	t.Status = StatusPending
	t.CreatedAt = e.now().UTC()

	return insertTransaction(ctx, e.db, *t)
}

// apply runs fn in one database transaction while holding keys.
func (e *Engine) apply(ctx context.Context, keys []string, fn func(tx *sql.Tx) error) error {
	release := e.locks.acquire(keys...)
	defer release()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr(err)
	}
	return nil
}

// complete finalizes t inside the mutation's transaction.
func (e *Engine) complete(ctx context.Context, tx *sql.Tx, t *Transaction, usd decimal.Decimal, at time.Time) error {
	done := *t
	done.Status = StatusCompleted
	done.USDValue = decimal.NewNullDecimal(usd)
	done.FinalizedAt = &at

	if err := finalizeTransaction(ctx, tx, done); err != nil {
		return err
	}
	*t = done
	return nil
}

// fail records t as failed and returns cause. The write is detached from ctx
// so a cancelled caller still leaves a terminal record behind.
func (e *Engine) fail(ctx context.Context, t *Transaction, cause error) error {
	at := e.now().UTC()
	t.Status = StatusFailed
	t.USDValue = decimal.NullDecimal{}
	t.Reason = cause.Error()
	t.FinalizedAt = &at

	if err := finalizeTransaction(context.WithoutCancel(ctx), e.db, *t); err != nil {
		// already finalized elsewhere; cause says so
		if errors.Is(err, ErrConcurrencyConflict) && errors.Is(cause, ErrConcurrencyConflict) {
			return cause
		}
		logger.Log.Error("failed to finalize transaction",
			zap.String("tx_id", t.ID),
			zap.String("type", string(t.Type)),
			zap.Error(err),
		)
		return errors.Join(cause, err)
	}

	e.finished(*t)
	return cause
}

func (e *Engine) finished(t Transaction) {
	monitoring.LedgerOperations.WithLabelValues(string(t.Type), string(t.Status)).Inc()

	fields := []zap.Field{
		zap.String("tx_id", t.ID),
		zap.String("type", string(t.Type)),
		zap.String("owner", t.Owner),
		zap.String("symbol", t.Symbol),
		zap.String("amount", t.Amount.String()),
	}

	name := event.EventTransactionCompleted
	if t.Status == StatusFailed {
		name = event.EventTransactionFailed
		logger.Log.Warn("transaction failed", append(fields, zap.String("reason", t.Reason))...)
	} else {
		logger.Log.Info("transaction completed", fields...)
	}

	if e.bus != nil {
		e.bus.Publish(name, t)
	}
}

func observe(op string, start time.Time) {
	monitoring.LedgerOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
