// Package audit keeps an append-only trail of finalized ledger transactions
// and operator actions in the audit_logs table.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"custody-wallet/internal/event"
	"custody-wallet/internal/ledger"
	"custody-wallet/internal/logger"
)

type Entry struct {
	ID        int64           `json:"id"`
	Owner     string          `json:"owner_id"`
	Action    string          `json:"action"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type Service struct {
	db *sql.DB
}

func New(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Log(ctx context.Context, owner, action string, metadata interface{}) error {
	var meta []byte
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
		meta = b
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO audit_logs(owner_id, action, metadata, created_at)
	VALUES (?, ?, ?, ?)
	`, owner, action, string(meta), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, owner string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, owner_id, action, metadata, created_at FROM audit_logs
	WHERE owner_id = ? ORDER BY id DESC LIMIT ?
	`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("read audit logs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			meta    sql.NullString
			created int64
		)
		if err := rows.Scan(&e.ID, &e.Owner, &e.Action, &meta, &created); err != nil {
			return nil, fmt.Errorf("read audit logs: %w", err)
		}
		if meta.String != "" {
			e.Metadata = json.RawMessage(meta.String)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// RegisterConsumers records every finalized transaction against its owner,
// and incoming transfers against the recipient as well.
func (s *Service) RegisterConsumers(bus *event.Bus) {
	for _, name := range []string{event.EventTransactionCompleted, event.EventTransactionFailed} {
		bus.Subscribe(name, func(payload interface{}) {
			t, ok := payload.(ledger.Transaction)
			if !ok {
				return
			}
			action := string(t.Type) + "." + string(t.Status)

			ctx := context.Background()
			if err := s.Log(ctx, t.Owner, action, t); err != nil {
				logger.Log.Error("audit write failed", zap.String("event", name), zap.String("tx_id", t.ID), zap.Error(err))
			}
			if t.Type == ledger.TypeTransfer && t.Status == ledger.StatusCompleted && t.Counterparty != t.Owner {
				if err := s.Log(ctx, t.Counterparty, "transfer.received", t); err != nil {
					logger.Log.Error("audit write failed", zap.String("event", name), zap.String("tx_id", t.ID), zap.Error(err))
				}
			}
		})
	}
}

func RegisterRoutes(app fiber.Router, s *Service) {

	app.Get("/audit/:owner", func(c *fiber.Ctx) error {
		entries, err := s.List(c.UserContext(), c.Params("owner"), c.QueryInt("limit", 100))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		if entries == nil {
			entries = []Entry{}
		}
		return c.JSON(fiber.Map{"entries": entries})
	})
}
