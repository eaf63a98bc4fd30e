package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRoundingIsHalfUp(t *testing.T) {
	cases := []struct {
		in, qty, usd string
	}{
		{"0.000000005", "0.00000001", "0"},
		{"0.000000004", "0", "0"},
		{"1.005", "1.005", "1.01"},
		{"1.004999", "1.004999", "1"},
		{"12.345", "12.345", "12.35"},
	}

	for _, c := range cases {
		if got := Quantity(d(c.in)); !got.Equal(d(c.qty)) {
			t.Errorf("Quantity(%s) = %s, want %s", c.in, got, c.qty)
		}
		if got := USD(d(c.in)); !got.Equal(d(c.usd)) {
			t.Errorf("USD(%s) = %s, want %s", c.in, got, c.usd)
		}
	}
}

func TestValue(t *testing.T) {
	if got := Value(d("0.5"), d("50000")); !got.Equal(d("25000")) {
		t.Errorf("expected 25000, got %s", got)
	}
	if got := Value(d("0.00000001"), d("43210.99")); !got.Equal(d("0")) {
		t.Errorf("one sat of BTC rounds to zero cents, got %s", got)
	}
}

func TestValidAmount(t *testing.T) {
	valid := []string{"0.00000001", "1", "21000000"}
	invalid := []string{"0", "-1", "0.000000001", "1.123456789"}

	for _, s := range valid {
		if !ValidAmount(d(s)) {
			t.Errorf("%s should be valid", s)
		}
	}
	for _, s := range invalid {
		if ValidAmount(d(s)) {
			t.Errorf("%s should be invalid", s)
		}
	}
}

func TestNormalizeSymbol(t *testing.T) {
	if got := NormalizeSymbol("  btc "); got != "BTC" {
		t.Errorf("expected BTC, got %q", got)
	}
}

// FuzzDepositWithdrawCycle checks that repeated add/subtract of the same
// quantity never drifts, which is the reason balances are not floats.
func FuzzDepositWithdrawCycle(f *testing.F) {
	f.Add(int64(1), uint8(10))
	f.Add(int64(12345678), uint8(100))
	f.Add(int64(99999999999), uint8(3))

	f.Fuzz(func(t *testing.T, sats int64, cycles uint8) {
		if sats <= 0 {
			return
		}
		amount := decimal.New(sats, -QuantityPlaces)
		start := d("1.5")
		bal := start
		for i := 0; i < int(cycles); i++ {
			bal = Quantity(bal.Add(amount))
		}
		for i := 0; i < int(cycles); i++ {
			bal = Quantity(bal.Sub(amount))
		}
		if !bal.Equal(start) {
			t.Fatalf("drift after %d cycles of %s: %s", cycles, amount, bal)
		}
	})
}
