package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	Port       string
	DBPath     string
	APIKey     string
	AdminToken string

	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	RateSource    string
	RateSourceURL string
	RateAPIKey    string
	StaticRates   string
	RateMaxAge    time.Duration
	RateTimeout   time.Duration
	RateWarmEvery time.Duration

	ReconcileEvery time.Duration
	ReconcileAfter time.Duration
}

var (
	ErrMissingSecrets  = errors.New("API_KEY and ADMIN_TOKEN must be set")
	ErrInvalidDuration = errors.New("invalid duration")
)

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var bad []string
	getDuration := func(key string, fallback time.Duration) time.Duration {
		d, err := parseDuration(key, fallback)
		if err != nil {
			bad = append(bad, err.Error())
		}
		return d
	}

	cfg := &Config{
		Env:        getEnv("APP_ENV", "production"),
		Port:       getEnv("PORT", "8080"),
		DBPath:     getEnv("DB_PATH", "db.sqlite"),
		APIKey:     os.Getenv("API_KEY"),
		AdminToken: os.Getenv("ADMIN_TOKEN"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisChannel:  getEnv("REDIS_CHANNEL", "wallet_transactions"),

		RateSource:    strings.ToLower(getEnv("RATE_SOURCE", "coingecko")),
		RateSourceURL: getEnv("RATE_SOURCE_URL", "https://api.coingecko.com/api/v3"),
		RateAPIKey:    os.Getenv("RATE_API_KEY"),
		StaticRates:   os.Getenv("STATIC_RATES"),
		RateMaxAge:    getDuration("RATE_MAX_AGE", 5*time.Minute),
		RateTimeout:   getDuration("RATE_TIMEOUT", 10*time.Second),
		RateWarmEvery: getDuration("RATE_WARM_INTERVAL", time.Minute),

		ReconcileEvery: getDuration("RECONCILE_INTERVAL", time.Minute),
		ReconcileAfter: getDuration("RECONCILE_AFTER", 10*time.Minute),
	}

	if len(bad) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDuration, strings.Join(bad, "; "))
	}
	if cfg.APIKey == "" || cfg.AdminToken == "" {
		return nil, ErrMissingSecrets
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// parseDuration reads key as a non-negative duration such as "90s" or "5m".
func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback, fmt.Errorf("%s=%q", key, v)
	}
	return d, nil
}
