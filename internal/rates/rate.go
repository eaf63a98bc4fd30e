// Package rates supplies USD prices per asset symbol. Cache keeps the last
// observation per symbol under a freshness window and refreshes from a Source
// only when a caller needs a symbol that has gone stale.
package rates

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultMaxAge  = 5 * time.Minute
	DefaultTimeout = 10 * time.Second
)

var (
	ErrRateNotFound          = errors.New("rate not found")
	ErrRateSourceUnavailable = errors.New("rate source unavailable")
)

type Rate struct {
	Symbol     string          `json:"symbol"`
	USD        decimal.Decimal `json:"rate_usd"`
	ObservedAt time.Time       `json:"observed_at"`
}
