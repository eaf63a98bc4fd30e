package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"custody-wallet/internal/app"
	"custody-wallet/internal/config"
	"custody-wallet/internal/logger"
	"custody-wallet/internal/monitoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Init(cfg.Env); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	monitoring.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := app.NewServer(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("server setup failed", zap.Error(err))
	}
	defer server.Close()

	if err := server.Start(ctx); err != nil {
		logger.Log.Error("server stopped", zap.Error(err))
	}
}
