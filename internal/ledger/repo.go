package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

const txColumns = `id, owner_id, type, symbol, amount, usd_value, status,
	external_ref, counterparty, destination, reason, created_at, finalized_at`

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func insertTransaction(ctx context.Context, q DBTX, t Transaction) error {
	_, err := q.ExecContext(ctx, `
	INSERT INTO transactions(`+txColumns+`)
	VALUES (?,?,?,?,?,?,?,?,?,?,?,?,NULL)
	`, t.ID, t.Owner, string(t.Type), t.Symbol, t.Amount, t.USDValue, string(t.Status),
		nullString(t.ExternalRef), nullString(t.Counterparty), nullString(t.Destination),
		nullString(t.Reason), t.CreatedAt.UnixNano())

	return storageErr(err)
}

// finalizeTransaction moves a pending record into a terminal status. A record
// that is no longer pending is left alone and reported as a conflict.
func finalizeTransaction(ctx context.Context, q DBTX, t Transaction) error {
	res, err := q.ExecContext(ctx, `
	UPDATE transactions
	SET status = ?, usd_value = ?, reason = ?, finalized_at = ?
	WHERE id = ? AND status = 'pending'
	`, string(t.Status), t.USDValue, nullString(t.Reason), t.FinalizedAt.UnixNano(), t.ID)
	if err != nil {
		return storageErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if n != 1 {
		return fmt.Errorf("%w: transaction %s is no longer pending", ErrConcurrencyConflict, t.ID)
	}
	return nil
}

func referenceTaken(ctx context.Context, q DBTX, ref string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `
	SELECT 1 FROM transactions
	WHERE type = 'deposit' AND external_ref = ? AND status != 'failed'
	LIMIT 1
	`, ref).Scan(&one)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr(err)
	}
	return true, nil
}

func scanTransaction(row scanner) (Transaction, error) {
	var (
		t                     Transaction
		ref, cp, dest, reason sql.NullString
		created               int64
		finalized             sql.NullInt64
	)

	err := row.Scan(&t.ID, &t.Owner, &t.Type, &t.Symbol, &t.Amount, &t.USDValue, &t.Status,
		&ref, &cp, &dest, &reason, &created, &finalized)
	if err != nil {
		return Transaction{}, err
	}

	t.ExternalRef = ref.String
	t.Counterparty = cp.String
	t.Destination = dest.String
	t.Reason = reason.String
	t.CreatedAt = time.Unix(0, created).UTC()
	if finalized.Valid {
		at := time.Unix(0, finalized.Int64).UTC()
		t.FinalizedAt = &at
	}
	return t, nil
}

func getTransaction(ctx context.Context, q DBTX, id string) (Transaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	if err != nil {
		return Transaction{}, storageErr(err)
	}
	return t, nil
}

// listTransactions returns the owner's records newest first, including
// transfers where the owner is the receiving counterparty.
func listTransactions(ctx context.Context, q DBTX, owner string, limit int) ([]Transaction, error) {
	rows, err := q.QueryContext(ctx, `
	SELECT `+txColumns+` FROM transactions
	WHERE owner_id = ? OR counterparty = ?
	ORDER BY created_at DESC, id
	LIMIT ?
	`, owner, owner, limit)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		out = append(out, t)
	}
	return out, storageErr(rows.Err())
}

// failAbandoned finalizes every record still pending that was opened at or
// before cutoff.
func failAbandoned(ctx context.Context, q DBTX, cutoff, at time.Time, reason string) (int64, error) {
	res, err := q.ExecContext(ctx, `
	UPDATE transactions
	SET status = 'failed', reason = ?, finalized_at = ?
	WHERE status = 'pending' AND created_at <= ?
	`, reason, at.UnixNano(), cutoff.UnixNano())
	if err != nil {
		return 0, storageErr(err)
	}

	n, err := res.RowsAffected()
	return n, storageErr(err)
}

func scanBalance(row scanner) (AssetBalance, error) {
	var (
		b       AssetBalance
		updated int64
	)
	if err := row.Scan(&b.Owner, &b.Symbol, &b.Quantity, &b.ValuationUSD, &b.RateUSD, &updated); err != nil {
		return AssetBalance{}, err
	}
	b.UpdatedAt = time.Unix(0, updated).UTC()
	return b, nil
}

// getBalance reports found=false with a zero balance when the owner has
// never held symbol.
func getBalance(ctx context.Context, q DBTX, owner, symbol string) (AssetBalance, bool, error) {
	row := q.QueryRowContext(ctx, `
	SELECT owner_id, symbol, quantity, valuation_usd, rate_usd, updated_at
	FROM asset_balances WHERE owner_id = ? AND symbol = ?
	`, owner, symbol)

	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return AssetBalance{Owner: owner, Symbol: symbol}, false, nil
	}
	if err != nil {
		return AssetBalance{}, false, storageErr(err)
	}
	return b, true, nil
}

func saveBalance(ctx context.Context, q DBTX, b AssetBalance) error {
	_, err := q.ExecContext(ctx, `
	INSERT INTO asset_balances(owner_id, symbol, quantity, valuation_usd, rate_usd, updated_at)
	VALUES (?,?,?,?,?,?)
	ON CONFLICT(owner_id, symbol) DO UPDATE SET
		quantity = excluded.quantity,
		valuation_usd = excluded.valuation_usd,
		rate_usd = excluded.rate_usd,
		updated_at = excluded.updated_at
	`, b.Owner, b.Symbol, b.Quantity, b.ValuationUSD, b.RateUSD, b.UpdatedAt.UnixNano())

	return storageErr(err)
}

// ListBalances returns every balance row of owner ordered by symbol. It is
// exported for the account directory, which shares the schema.
func ListBalances(ctx context.Context, q DBTX, owner string) ([]AssetBalance, error) {
	rows, err := q.QueryContext(ctx, `
	SELECT owner_id, symbol, quantity, valuation_usd, rate_usd, updated_at
	FROM asset_balances WHERE owner_id = ?
	ORDER BY symbol
	`, owner)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var out []AssetBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		out = append(out, b)
	}
	return out, storageErr(rows.Err())
}

// GetBalance loads one balance row, failing with ErrAssetNotFound when owner
// never held symbol.
func GetBalance(ctx context.Context, q DBTX, owner, symbol string) (AssetBalance, error) {
	b, found, err := getBalance(ctx, q, owner, symbol)
	if err != nil {
		return AssetBalance{}, err
	}
	if !found {
		return AssetBalance{}, fmt.Errorf("%w: %s", ErrAssetNotFound, symbol)
	}
	return b, nil
}

// GetWallet loads owner's wallet row, failing with ErrOwnerNotFound.
func GetWallet(ctx context.Context, q DBTX, owner string) (Wallet, error) {
	var (
		w       Wallet
		updated int64
	)
	err := q.QueryRowContext(ctx, `
	SELECT owner_id, total_usd, currency, updated_at FROM wallets WHERE owner_id = ?
	`, owner).Scan(&w.Owner, &w.TotalUSD, &w.Currency, &updated)

	if errors.Is(err, sql.ErrNoRows) {
		return Wallet{}, fmt.Errorf("%w: %s", ErrOwnerNotFound, owner)
	}
	if err != nil {
		return Wallet{}, storageErr(err)
	}
	w.UpdatedAt = time.Unix(0, updated).UTC()
	return w, nil
}

// recomputeWallet stores the sum of owner's stored valuations as the wallet
// total and returns the updated wallet.
func recomputeWallet(ctx context.Context, q DBTX, owner string, at time.Time) (Wallet, error) {
	rows, err := q.QueryContext(ctx, `SELECT valuation_usd FROM asset_balances WHERE owner_id = ?`, owner)
	if err != nil {
		return Wallet{}, storageErr(err)
	}

	total := decimal.Zero
	for rows.Next() {
		var v decimal.Decimal
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return Wallet{}, storageErr(err)
		}
		total = total.Add(v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Wallet{}, storageErr(err)
	}

	res, err := q.ExecContext(ctx, `
	UPDATE wallets SET total_usd = ?, updated_at = ? WHERE owner_id = ?
	`, total, at.UnixNano(), owner)
	if err != nil {
		return Wallet{}, storageErr(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Wallet{}, storageErr(err)
	} else if n == 0 {
		return Wallet{}, fmt.Errorf("%w: %s", ErrOwnerNotFound, owner)
	}

	return GetWallet(ctx, q, owner)
}
