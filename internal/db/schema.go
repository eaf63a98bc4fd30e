package db

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS owners (
		id TEXT PRIMARY KEY,
		identity TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS wallets (
		owner_id TEXT PRIMARY KEY REFERENCES owners(id),
		total_usd TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL DEFAULT 'USD',
		updated_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS asset_balances (
		owner_id TEXT NOT NULL REFERENCES owners(id),
		symbol TEXT NOT NULL,
		quantity TEXT NOT NULL DEFAULT '0',
		valuation_usd TEXT NOT NULL DEFAULT '0',
		rate_usd TEXT NOT NULL DEFAULT '0',
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (owner_id, symbol)
	);`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		type TEXT NOT NULL,
		symbol TEXT NOT NULL,
		amount TEXT NOT NULL,
		usd_value TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		external_ref TEXT,
		counterparty TEXT,
		destination TEXT,
		reason TEXT,
		created_at INTEGER NOT NULL,
		finalized_at INTEGER
	);`,

	// a failed deposit releases its reference; pending or completed ones hold it
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_deposit_ref
		ON transactions(external_ref)
		WHERE type = 'deposit' AND status != 'failed';`,

	`CREATE INDEX IF NOT EXISTS idx_transactions_owner ON transactions(owner_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status, created_at);`,

	`CREATE TABLE IF NOT EXISTS rates (
		symbol TEXT PRIMARY KEY,
		rate_usd TEXT NOT NULL,
		observed_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id TEXT NOT NULL,
		action TEXT NOT NULL,
		metadata TEXT,
		created_at INTEGER NOT NULL
	);`,
}

func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
