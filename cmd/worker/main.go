package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/niveshsaharan/centire-shopify/internal/bootstrap"

	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "worker").Logger()

	cfg, err := bootstrap.LoadConfig(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger = bootstrap.NewLogger("worker", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, deps, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open stores")
	}
	defer stores.Close(context.Background())

	services, err := bootstrap.Wire(cfg, deps, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to wire services")
	}
	go services.WatchEvents(ctx)

	if err := services.Jobs.Work(ctx); err != nil {
		logger.Error().Err(err).Msg("Worker exited")
	}
}
