// cmd/api/main.go

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"streampulse/internal/adapter/messaging"
	"streampulse/internal/adapter/storage"
	"streampulse/internal/config"
	"streampulse/internal/logging"
	"streampulse/internal/server"
	"streampulse/internal/service/aggregation"
)

func main() {
	// Local development reads a .env file when present
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	loc, err := cfg.Aggregation.Location()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load aggregation timezone")
	}

	// Initialize dependencies
	db, err := storage.Connect(ctx, cfg.Database.ConnString(),
		int32(cfg.Database.MaxOpenConns), int32(cfg.Database.MaxIdleConns), cfg.Database.MaxLifetime)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		logging.Fatal().Err(err).Msg("Failed to migrate database")
	}

	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		natsConn, err = messaging.Connect(cfg.NATS, "streampulse-api")
		if err != nil {
			logging.Warn().Err(err).Msg("NATS unavailable, live updates disabled")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	// Initialize storage adapters
	titleStore := storage.NewTitleStore(db, cfg.Database.QueryTimeout)
	reactionStore := storage.NewReactionStore(db, cfg.Database.QueryTimeout)
	metricStore := storage.NewMetricStore(db, loc, cfg.Database.QueryTimeout)

	summaries := aggregation.NewSummaryService(titleStore, metricStore, loc)

	// Initialize HTTP server
	httpServer := server.NewServer(cfg.Server, server.Dependencies{
		Catalog:     titleStore,
		Events:      reactionStore,
		Summaries:   summaries,
		DB:          db,
		NATS:        natsConn,
		EventsTopic: cfg.Aggregation.EventsTopic,
		SummaryDays: cfg.Aggregation.SummaryDays,
	})

	// Start HTTP server
	go func() {
		logging.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	logging.Info().Msg("Shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logging.Info().Msg("Shutdown complete")
}
