package rates

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"custody-wallet/internal/event"
	"custody-wallet/internal/logger"
	"custody-wallet/internal/money"
	"custody-wallet/internal/monitoring"
)

type Publisher interface {
	Publish(event string, payload interface{})
}

type Cache struct {
	source  Source
	store   *Store
	bus     Publisher
	maxAge  time.Duration
	timeout time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	rates map[string]Rate

	flight singleflight.Group
}

type Option func(*Cache)

func WithMaxAge(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.maxAge = d
		}
	}
}

// WithTimeout bounds a single call to the Source.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithStore(s *Store) Option {
	return func(c *Cache) { c.store = s }
}

func WithPublisher(p Publisher) Option {
	return func(c *Cache) { c.bus = p }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func NewCache(source Source, opts ...Option) *Cache {
	c := &Cache{
		source:  source,
		maxAge:  DefaultMaxAge,
		timeout: DefaultTimeout,
		now:     time.Now,
		rates:   make(map[string]Rate),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) MaxAge() time.Duration {
	return c.maxAge
}

func (c *Cache) Get(symbol string) (Rate, error) {
	symbol = money.NormalizeSymbol(symbol)

	c.mu.RLock()
	r, ok := c.rates[symbol]
	c.mu.RUnlock()

	if !ok {
		return Rate{}, fmt.Errorf("%w: %s", ErrRateNotFound, symbol)
	}
	return r, nil
}

func (c *Cache) IsFresh(symbol string, maxAge time.Duration) bool {
	r, err := c.Get(symbol)
	if err != nil {
		return false
	}
	return c.fresh(r, maxAge)
}

func (c *Cache) fresh(r Rate, maxAge time.Duration) bool {
	return c.now().Sub(r.ObservedAt) < maxAge
}

// Refresh fetches the given symbols and replaces their cached rates. Callers
// asking for the same symbol set at the same time share one fetch. On failure
// the previous values stay in place.
func (c *Cache) Refresh(ctx context.Context, symbols []string) error {
	symbols = normalize(symbols)
	if len(symbols) == 0 {
		return nil
	}

	ch := c.flight.DoChan(strings.Join(symbols, ","), func() (interface{}, error) {
		return nil, c.fetch(ctx, symbols)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrRateSourceUnavailable, ctx.Err())
	}
}

func (c *Cache) fetch(ctx context.Context, symbols []string) error {
	// the fetch is shared, so one caller giving up must not cancel it for the rest
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	start := time.Now()
	prices, err := c.source.FetchPrices(ctx, symbols)
	if err != nil {
		monitoring.RateRefreshes.WithLabelValues("error").Inc()
		logger.Log.Warn("rate refresh failed",
			zap.Strings("symbols", symbols),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrRateSourceUnavailable, err)
	}
	monitoring.RateRefreshes.WithLabelValues("ok").Inc()

	updated := c.apply(prices, c.now())

	if c.store != nil && len(updated) > 0 {
		if err := c.store.Save(ctx, updated); err != nil {
			logger.Log.Warn("persisting rates failed", zap.Error(err))
		}
	}
	if c.bus != nil && len(updated) > 0 {
		c.bus.Publish(event.EventRatesRefreshed, updated)
	}

	logger.Log.Debug("rates refreshed",
		zap.Strings("symbols", symbols),
		zap.Int("updated", len(updated)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (c *Cache) apply(prices map[string]decimal.Decimal, observed time.Time) []Rate {
	c.mu.Lock()
	defer c.mu.Unlock()

	updated := make([]Rate, 0, len(prices))
	for sym, price := range prices {
		r := Rate{
			Symbol:     money.NormalizeSymbol(sym),
			USD:        money.USD(price),
			ObservedAt: observed,
		}
		if !r.USD.IsPositive() {
			logger.Log.Warn("ignoring non-positive rate", zap.String("symbol", r.Symbol), zap.String("price", price.String()))
			continue
		}
		if c.putLocked(r) {
			updated = append(updated, r)
		}
	}

	sort.Slice(updated, func(i, j int) bool { return updated[i].Symbol < updated[j].Symbol })
	return updated
}

// putLocked keeps observations monotonic: an older fetch finishing late never
// overwrites a newer one.
func (c *Cache) putLocked(r Rate) bool {
	if cur, ok := c.rates[r.Symbol]; ok && cur.ObservedAt.After(r.ObservedAt) {
		return false
	}
	c.rates[r.Symbol] = r
	return true
}

// Resolve returns a rate for every symbol, refreshing the stale or missing
// ones in a single batch. If the refresh fails, rates still inside the
// freshness window are served and the rest fail with ErrRateSourceUnavailable.
func (c *Cache) Resolve(ctx context.Context, symbols ...string) (map[string]Rate, error) {
	symbols = normalize(symbols)

	var stale []string
	for _, s := range symbols {
		if !c.IsFresh(s, c.maxAge) {
			stale = append(stale, s)
		}
	}

	var refreshErr error
	if len(stale) > 0 {
		refreshErr = c.Refresh(ctx, stale)
	}

	out := make(map[string]Rate, len(symbols))
	for _, s := range symbols {
		r, err := c.Get(s)
		if err == nil && c.fresh(r, c.maxAge) {
			out[s] = r
			continue
		}
		if refreshErr != nil {
			return nil, fmt.Errorf("%s: %w", s, refreshErr)
		}
		return nil, fmt.Errorf("%w: %s", ErrRateNotFound, s)
	}
	return out, nil
}

// Load seeds the cache from the store. Stale entries are loaded too; Resolve
// refreshes them on first use.
func (c *Cache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	stored, err := c.store.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range stored {
		c.putLocked(r)
	}
	return nil
}

func (c *Cache) Snapshot() []Rate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Rate, 0, len(c.rates))
	for _, r := range c.rates {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func normalize(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = money.NormalizeSymbol(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
