package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"custody-wallet/internal/logger"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

const abandonedReason = "abandoned before completion"

// Transactions lists the records owner sent or received, newest first.
func (e *Engine) Transactions(ctx context.Context, owner string, limit int) ([]Transaction, error) {
	if _, err := e.directory.GetWallet(ctx, owner); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return listTransactions(ctx, e.db, owner, limit)
}

func (e *Engine) Transaction(ctx context.Context, id string) (Transaction, error) {
	return getTransaction(ctx, e.db, id)
}

// ReconcilePending fails every record left pending for at least olderThan.
// Balances are never touched: a pending record means its mutation did not
// commit. With olderThan zero every pending record is failed, which is only
// safe while no operation is in flight, such as at startup.
func (e *Engine) ReconcilePending(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := e.now().UTC()

	n, err := failAbandoned(ctx, e.db, now.Add(-olderThan), now, abandonedReason)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Log.Warn("reconciled abandoned transactions", zap.Int64("count", n), zap.Duration("older_than", olderThan))
	}
	return n, nil
}
