package rates

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store persists the latest observation per symbol so a restarted process
// can serve rates that are still inside the freshness window.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Save(ctx context.Context, rates []Rate) error {
	if len(rates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range rates {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rates(symbol, rate_usd, observed_at)
			VALUES (?, ?, ?)
			ON CONFLICT(symbol) DO UPDATE SET
				rate_usd = excluded.rate_usd,
				observed_at = excluded.observed_at
			WHERE excluded.observed_at >= rates.observed_at
		`, r.Symbol, r.USD.String(), r.ObservedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("save rate %s: %w", r.Symbol, err)
		}
	}

	return tx.Commit()
}

func (s *Store) Load(ctx context.Context) ([]Rate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, rate_usd, observed_at FROM rates ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rate
	for rows.Next() {
		var (
			r        Rate
			observed int64
		)
		if err := rows.Scan(&r.Symbol, &r.USD, &observed); err != nil {
			return nil, err
		}
		r.ObservedAt = time.Unix(0, observed)
		out = append(out, r)
	}
	return out, rows.Err()
}
