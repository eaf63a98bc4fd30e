package account

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"custody-wallet/internal/ledger"
)

func TestRoutes_CreateAndGet(t *testing.T) {
	d := newDirectory(t)
	app := fiber.New()
	RegisterAdminRoutes(app.Group("/admin"), d)
	RegisterRoutes(app.Group("/api"), d)

	req := httptest.NewRequest("POST", "/admin/accounts", strings.NewReader(`{"identity":"carol"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var o Owner
	if err := json.NewDecoder(resp.Body).Decode(&o); err != nil {
		t.Fatal(err)
	}

	req = httptest.NewRequest("POST", "/admin/accounts", strings.NewReader(`{"identity":"carol"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != 409 {
		t.Errorf("duplicate identity should be 409, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest("POST", "/admin/accounts", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != 422 {
		t.Errorf("missing identity should be 422, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/api/accounts/"+o.ID, nil))
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Owner    Owner             `json:"owner"`
		Balances []json.RawMessage `json:"balances"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Owner.Identity != "carol" || len(body.Balances) != 0 {
		t.Errorf("unexpected account %+v", body)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/api/accounts/unknown", nil))
	if resp.StatusCode != 404 {
		t.Errorf("unknown owner should be 404, got %d", resp.StatusCode)
	}
}

func TestRoutes_SingleAsset(t *testing.T) {
	d := newDirectory(t)
	app := fiber.New()
	RegisterRoutes(app.Group("/api"), d)

	o, err := d.Create(context.Background(), "dave")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, err = d.db.Exec(`
	INSERT INTO asset_balances(owner_id, symbol, quantity, valuation_usd, rate_usd, updated_at)
	VALUES (?, 'BTC', '0.5', '25000', '50000', ?)
	`, o.ID, time.Now().UnixNano())
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/api/accounts/"+o.ID+"/assets/btc", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Balance ledger.AssetBalance `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Balance.Symbol != "BTC" || !body.Balance.Quantity.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("unexpected balance %+v", body.Balance)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/api/accounts/"+o.ID+"/assets/ETH", nil))
	if resp.StatusCode != 404 {
		t.Errorf("never-held asset should be 404, got %d", resp.StatusCode)
	}
	resp, _ = app.Test(httptest.NewRequest("GET", "/api/accounts/unknown/assets/BTC", nil))
	if resp.StatusCode != 404 {
		t.Errorf("unknown owner should be 404, got %d", resp.StatusCode)
	}
}
