package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"custody-wallet/internal/account"
	"custody-wallet/internal/assets"
	"custody-wallet/internal/audit"
	"custody-wallet/internal/cache"
	"custody-wallet/internal/config"
	"custody-wallet/internal/db"
	"custody-wallet/internal/event"
	"custody-wallet/internal/jobs"
	"custody-wallet/internal/ledger"
	"custody-wallet/internal/logger"
	"custody-wallet/internal/monitoring"
	"custody-wallet/internal/rates"
	"custody-wallet/internal/security"
	"custody-wallet/internal/wallet"
	"custody-wallet/internal/ws"
)

type Server struct {
	app    *fiber.App
	cfg    *config.Config
	db     *sql.DB
	rdb    *redis.Client
	jobs   *jobs.Manager
	rates  *rates.Cache
	engine *ledger.Engine
}

func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	database, err := db.Init(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	source, err := newSource(cfg)
	if err != nil {
		database.Close()
		return nil, err
	}

	bus := event.NewBus()

	rateCache := rates.NewCache(source,
		rates.WithMaxAge(cfg.RateMaxAge),
		rates.WithTimeout(cfg.RateTimeout),
		rates.WithStore(rates.NewStore(database)),
		rates.WithPublisher(bus),
	)
	if err := rateCache.Load(ctx); err != nil {
		logger.Log.Warn("rate warm start failed", zap.Error(err))
	}

	directory := account.NewDirectory(database)
	engine := ledger.New(database, rateCache, directory, ledger.WithPublisher(bus))

	auditService := audit.New(database)
	auditService.RegisterConsumers(bus)

	events := []string{event.EventTransactionCompleted, event.EventTransactionFailed, event.EventRatesRefreshed}

	hub := ws.NewHub()
	hub.Forward(bus, events...)

	s := &Server{
		cfg:    cfg,
		db:     database,
		rates:  rateCache,
		engine: engine,
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Log.Warn("redis unavailable, events stay in process", zap.Error(err))
		} else {
			s.rdb = rdb
			cache.NewPublisher(rdb, cfg.RedisChannel).Forward(bus, events[:2]...)
		}
	}

	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Use(monitoring.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/ws", security.APIKeyGuard(cfg.APIKey), func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}, websocket.New(hub.Handler))

	api := app.Group("/api", security.APIKeyGuard(cfg.APIKey))
	wallet.RegisterRoutes(api, engine)
	rates.RegisterRoutes(api, rateCache)
	account.RegisterRoutes(api, directory)

	admin := app.Group("/admin", security.AdminGuard(cfg.AdminToken))
	account.RegisterAdminRoutes(admin, directory)
	wallet.RegisterAdminRoutes(admin, engine, cfg.ReconcileAfter)
	audit.RegisterRoutes(admin, auditService)

	s.app = app

	s.jobs = jobs.New()
	s.jobs.Register(jobs.Every("rate-warmer", cfg.RateWarmEvery, func(ctx context.Context) error {
		return rateCache.Refresh(ctx, assets.Symbols())
	}))
	s.jobs.Register(jobs.Every("reconciler", cfg.ReconcileEvery, func(ctx context.Context) error {
		_, err := engine.ReconcilePending(ctx, cfg.ReconcileAfter)
		return err
	}))

	return s, nil
}

func newSource(cfg *config.Config) (rates.Source, error) {
	switch cfg.RateSource {
	case "static":
		src, err := rates.ParseStatic(cfg.StaticRates)
		if err != nil {
			return nil, fmt.Errorf("STATIC_RATES: %w", err)
		}
		return src, nil
	case "coingecko", "":
		return rates.NewCoinGecko(cfg.RateSourceURL, cfg.RateAPIKey, cfg.RateTimeout), nil
	default:
		return nil, fmt.Errorf("unknown RATE_SOURCE %q", cfg.RateSource)
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// Start reconciles records left pending by a previous run, starts the
// background jobs and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	n, err := s.engine.ReconcilePending(ctx, 0)
	if err != nil {
		return fmt.Errorf("startup reconcile: %w", err)
	}
	logger.Log.Info("startup reconcile done", zap.Int64("failed", n))

	go s.jobs.Start(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			logger.Log.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Log.Info("listening", zap.String("port", s.cfg.Port))
	return s.app.Listen(":" + s.cfg.Port)
}

func (s *Server) Close() error {
	if s.rdb != nil {
		s.rdb.Close()
	}
	return s.db.Close()
}
