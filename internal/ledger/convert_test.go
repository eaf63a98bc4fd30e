package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"custody-wallet/internal/ledger"
)

func TestConvert_BTCtoETH(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, amount := range []string{"1", "0.5", "0.00000001", "1.23456789"} {
		c, err := f.engine.Convert(ctx, "BTC", "eth", dec(amount))
		if err != nil {
			t.Fatalf("Convert(%s) failed: %v", amount, err)
		}
		want := dec(amount).Mul(dec("20"))
		if !c.Result.Equal(want) {
			t.Errorf("Convert(%s) = %s, want %s", amount, c.Result, want)
		}
		if !c.USDValue.Equal(dec(amount).Mul(dec("50000")).Round(2)) {
			t.Errorf("usd value = %s", c.USDValue)
		}

		back, err := f.engine.Convert(ctx, "ETH", "BTC", c.Result)
		if err != nil {
			t.Fatalf("Convert back failed: %v", err)
		}
		if diff := back.Result.Sub(dec(amount)).Abs(); diff.GreaterThan(dec("0.00000001")) {
			t.Errorf("round trip of %s drifted by %s", amount, diff)
		}
	}
}

func TestConvert_RoundsHalfUp(t *testing.T) {
	f := newFixture(t)
	f.feed.set("USDT", "3")
	f.feed.set("LINK", "1")

	// 2 USD / 3 = 0.666666666... -> 0.66666667
	c, err := f.engine.Convert(context.Background(), "LINK", "USDT", dec("2"))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !c.Result.Equal(dec("0.66666667")) {
		t.Errorf("result = %s, want 0.66666667", c.Result)
	}
}

func TestConvert_RateUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.engine.Convert(ctx, "BTC", "DOGE", dec("1")); !errors.Is(err, ledger.ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable for unknown symbol, got %v", err)
	}

	f.feed.setDown(true)
	if _, err := f.engine.Convert(ctx, "BTC", "ETH", dec("1")); !errors.Is(err, ledger.ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable with ETH never cached, got %v", err)
	}

	// warm, then go stale past the window
	f.feed.setDown(false)
	if _, err := f.engine.Convert(ctx, "BTC", "ETH", dec("1")); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	f.feed.setDown(true)
	f.clock.Advance(time.Hour)
	if _, err := f.engine.Convert(ctx, "BTC", "ETH", dec("1")); !errors.Is(err, ledger.ErrRateSourceUnavailable) {
		t.Fatalf("expected the source failure to surface, got %v", err)
	}
}

func TestConvert_InvalidAmount(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Convert(context.Background(), "BTC", "ETH", dec("0")); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
