package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoad_RequiresSecrets(t *testing.T) {
	t.Setenv("API_KEY", "")
	t.Setenv("ADMIN_TOKEN", "")

	if _, err := Load(); !errors.Is(err, ErrMissingSecrets) {
		t.Fatalf("expected ErrMissingSecrets, got %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_KEY", "k")
	t.Setenv("ADMIN_TOKEN", "a")
	t.Setenv("RATE_MAX_AGE", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.RateMaxAge != 5*time.Minute {
		t.Errorf("expected 5m freshness window, got %s", cfg.RateMaxAge)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("API_KEY", "k")
	t.Setenv("ADMIN_TOKEN", "a")
	t.Setenv("RATE_MAX_AGE", "90s")
	t.Setenv("RATE_SOURCE", "STATIC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RateMaxAge != 90*time.Second {
		t.Errorf("expected 90s, got %s", cfg.RateMaxAge)
	}
	if cfg.RateSource != "static" {
		t.Errorf("expected lower-cased source, got %s", cfg.RateSource)
	}
}

func TestLoad_RejectsMalformedDurations(t *testing.T) {
	t.Setenv("API_KEY", "k")
	t.Setenv("ADMIN_TOKEN", "a")
	t.Setenv("RATE_MAX_AGE", "five minutes")
	t.Setenv("RECONCILE_AFTER", "-1m")

	_, err := Load()
	if !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	for _, key := range []string{"RATE_MAX_AGE", "RECONCILE_AFTER"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}
