// Package account keeps the owner directory: who exists, how callers name
// them, and read access to their wallets and balances.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"custody-wallet/internal/ledger"
	"custody-wallet/internal/money"
)

var (
	ErrInvalidIdentity = errors.New("identity must be non-empty and not an owner id")
	ErrIdentityTaken   = errors.New("identity already registered")
)

type Owner struct {
	ID        string    `json:"owner_id"`
	Identity  string    `json:"identity"`
	CreatedAt time.Time `json:"created_at"`
}

type Directory struct {
	db  *sql.DB
	now func() time.Time
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db, now: time.Now}
}

// Create registers identity as a new owner with an empty USD wallet.
func (d *Directory) Create(ctx context.Context, identity string) (Owner, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return Owner{}, ErrInvalidIdentity
	}
	// ids and identities share ResolveOwner's namespace
	if _, err := uuid.Parse(identity); err == nil {
		return Owner{}, fmt.Errorf("%w: %s", ErrInvalidIdentity, identity)
	}

	o := Owner{
		ID:        uuid.New().String(),
		Identity:  identity,
		CreatedAt: d.now().UTC(),
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return Owner{}, fmt.Errorf("%w: %w", ledger.ErrPersistence, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO owners(id, identity, created_at) VALUES (?,?,?)
	`, o.ID, o.Identity, o.CreatedAt.UnixNano())
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return Owner{}, fmt.Errorf("%w: %s", ErrIdentityTaken, identity)
		}
		return Owner{}, fmt.Errorf("%w: %w", ledger.ErrPersistence, err)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO wallets(owner_id, total_usd, currency, updated_at) VALUES (?,?,?,?)
	`, o.ID, "0", ledger.DisplayCurrency, o.CreatedAt.UnixNano())
	if err != nil {
		return Owner{}, fmt.Errorf("%w: %w", ledger.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return Owner{}, fmt.Errorf("%w: %w", ledger.ErrPersistence, err)
	}
	return o, nil
}

// ResolveOwner accepts either the owner id or the registered identity. An id
// match always wins.
func (d *Directory) ResolveOwner(ctx context.Context, identity string) (string, error) {
	identity = strings.TrimSpace(identity)

	for _, query := range []string{
		`SELECT id FROM owners WHERE id = ?`,
		`SELECT id FROM owners WHERE identity = ?`,
	} {
		var id string
		err := d.db.QueryRowContext(ctx, query, identity).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ledger.ErrPersistence, err)
		}
		return id, nil
	}
	return "", fmt.Errorf("%w: %s", ledger.ErrOwnerNotFound, identity)
}

func (d *Directory) Get(ctx context.Context, owner string) (Owner, error) {
	var (
		o       Owner
		created int64
	)
	err := d.db.QueryRowContext(ctx, `
	SELECT id, identity, created_at FROM owners WHERE id = ?
	`, owner).Scan(&o.ID, &o.Identity, &created)

	if errors.Is(err, sql.ErrNoRows) {
		return Owner{}, fmt.Errorf("%w: %s", ledger.ErrOwnerNotFound, owner)
	}
	if err != nil {
		return Owner{}, fmt.Errorf("%w: %w", ledger.ErrPersistence, err)
	}
	o.CreatedAt = time.Unix(0, created).UTC()
	return o, nil
}

func (d *Directory) GetWallet(ctx context.Context, owner string) (ledger.Wallet, error) {
	return ledger.GetWallet(ctx, d.db, owner)
}

func (d *Directory) ListBalances(ctx context.Context, owner string) ([]ledger.AssetBalance, error) {
	if _, err := d.GetWallet(ctx, owner); err != nil {
		return nil, err
	}
	return ledger.ListBalances(ctx, d.db, owner)
}

// GetBalance returns owner's holding of symbol.
func (d *Directory) GetBalance(ctx context.Context, owner, symbol string) (ledger.AssetBalance, error) {
	if _, err := d.GetWallet(ctx, owner); err != nil {
		return ledger.AssetBalance{}, err
	}
	return ledger.GetBalance(ctx, d.db, owner, money.NormalizeSymbol(symbol))
}
