package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/bootstrap"

	"github.com/rs/zerolog"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api").Logger()

	cfg, err := bootstrap.LoadConfig(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger = bootstrap.NewLogger("api", cfg)

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

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           services.Server().Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to shut down server")
		}
	}()

	logger.Info().Str("port", cfg.Port).Msg("Starting API server")
	logger.Info().Msg("Swagger documentation available at http://localhost:" + cfg.Port + "/swagger/index.html")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("Failed to start server")
		return
	}
	logger.Info().Msg("API server stopped")
}
