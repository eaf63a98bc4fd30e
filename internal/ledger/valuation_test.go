package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"custody-wallet/internal/ledger"
)

func TestValuation_RefreshesStaleRatesWithoutWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.owner(t, "alice")
	f.deposit(t, owner, "BTC", "0.5", "d1")
	f.deposit(t, owner, "ETH", "2", "d2")

	f.feed.set("BTC", "60000")
	f.clock.Advance(6 * time.Minute)

	v, err := f.engine.Valuation(ctx, owner)
	if err != nil {
		t.Fatalf("Valuation failed: %v", err)
	}
	if !v.TotalUSD.Equal(dec("35000")) {
		t.Errorf("total = %s, want 35000", v.TotalUSD)
	}
	if len(v.Assets) != 2 || v.Currency != "USD" {
		t.Errorf("unexpected valuation %+v", v)
	}

	w, _ := f.dir.GetWallet(ctx, owner)
	if !w.TotalUSD.Equal(dec("30000")) {
		t.Errorf("Valuation must not write: stored total = %s", w.TotalUSD)
	}

	rv, err := f.engine.Revalue(ctx, owner)
	if err != nil {
		t.Fatalf("Revalue failed: %v", err)
	}
	if !rv.TotalUSD.Equal(dec("35000")) {
		t.Errorf("revalued total = %s, want 35000", rv.TotalUSD)
	}
	w, _ = f.dir.GetWallet(ctx, owner)
	if !w.TotalUSD.Equal(dec("35000")) {
		t.Errorf("stored total = %s, want 35000", w.TotalUSD)
	}
	f.assertWalletConsistent(t, owner)
}

func TestValuation_DegradesWithinWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.owner(t, "alice")
	f.deposit(t, owner, "BTC", "1", "d1")

	f.feed.setDown(true)
	f.clock.Advance(time.Minute)

	v, err := f.engine.Valuation(ctx, owner)
	if err != nil {
		t.Fatalf("cached rate inside the window should be served: %v", err)
	}
	if !v.TotalUSD.Equal(dec("50000")) {
		t.Errorf("total = %s, want 50000", v.TotalUSD)
	}

	f.clock.Advance(10 * time.Minute)
	if _, err := f.engine.Valuation(ctx, owner); !errors.Is(err, ledger.ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable past the window, got %v", err)
	}
}

func TestValuation_EmptyBalancesNeedNoRate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.owner(t, "alice")
	f.deposit(t, owner, "BTC", "1", "d1")
	if _, err := f.engine.Withdraw(ctx, owner, "BTC", dec("1"), "dest"); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}

	f.feed.setDown(true)
	f.clock.Advance(time.Hour)

	v, err := f.engine.Valuation(ctx, owner)
	if err != nil {
		t.Fatalf("Valuation failed: %v", err)
	}
	if !v.TotalUSD.IsZero() {
		t.Errorf("total = %s, want 0", v.TotalUSD)
	}
}

func TestValuation_UnknownOwner(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Valuation(context.Background(), "ghost"); !errors.Is(err, ledger.ErrOwnerNotFound) {
		t.Fatalf("expected ErrOwnerNotFound, got %v", err)
	}
}
