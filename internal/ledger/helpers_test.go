package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"custody-wallet/internal/account"
	"custody-wallet/internal/db"
	"custody-wallet/internal/ledger"
	"custody-wallet/internal/rates"
)

var errFeedDown = errors.New("feed down")

// feed is a price source tests can reprice or take offline.
type feed struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	down   bool
}

func newFeed() *feed {
	return &feed{prices: map[string]decimal.Decimal{
		"BTC": dec("50000"),
		"ETH": dec("2500"),
	}}
}

func (f *feed) FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		return nil, errFeedDown
	}
	out := make(map[string]decimal.Decimal, len(symbols))
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func (f *feed) set(symbol, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = dec(price)
}

func (f *feed) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db     *sql.DB
	dir    *account.Directory
	feed   *feed
	clock  *clock
	engine *ledger.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.Init(filepath.Join(t.TempDir(), "wallet.db"))
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	f := &fixture{
		db:    database,
		dir:   account.NewDirectory(database),
		feed:  newFeed(),
		clock: &clock{now: time.Now()},
	}
	cache := rates.NewCache(f.feed, rates.WithClock(f.clock.Now))
	f.engine = ledger.New(database, cache, f.dir)
	return f
}

func (f *fixture) owner(t *testing.T, identity string) string {
	t.Helper()
	o, err := f.dir.Create(context.Background(), identity)
	if err != nil {
		t.Fatalf("Create(%s) failed: %v", identity, err)
	}
	return o.ID
}

func (f *fixture) deposit(t *testing.T, owner, symbol, amount, ref string) *ledger.Receipt {
	t.Helper()
	r, err := f.engine.Deposit(context.Background(), owner, symbol, dec(amount), ref)
	if err != nil {
		t.Fatalf("Deposit(%s %s) failed: %v", amount, symbol, err)
	}
	return r
}

func (f *fixture) quantity(t *testing.T, owner, symbol string) decimal.Decimal {
	t.Helper()
	balances, err := f.dir.ListBalances(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListBalances failed: %v", err)
	}
	for _, b := range balances {
		if b.Symbol == symbol {
			return b.Quantity
		}
	}
	return decimal.Zero
}

// assertWalletConsistent checks the stored wallet total against the sum of
// the stored valuations.
func (f *fixture) assertWalletConsistent(t *testing.T, owner string) {
	t.Helper()
	ctx := context.Background()

	w, err := f.dir.GetWallet(ctx, owner)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	balances, err := f.dir.ListBalances(ctx, owner)
	if err != nil {
		t.Fatalf("ListBalances failed: %v", err)
	}
	sum := decimal.Zero
	for _, b := range balances {
		if b.Quantity.IsNegative() {
			t.Errorf("%s balance went negative: %s", b.Symbol, b.Quantity)
		}
		sum = sum.Add(b.ValuationUSD)
	}
	if !w.TotalUSD.Equal(sum) {
		t.Errorf("wallet total %s != sum of valuations %s", w.TotalUSD, sum)
	}
}

func (f *fixture) countTransactions(t *testing.T) int {
	t.Helper()
	var n int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
