package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"dispatch/internal/app"
	"dispatch/internal/config"
	"dispatch/internal/events"
	"dispatch/internal/repository"
	"dispatch/internal/repository/memory"
	"dispatch/internal/repository/postgres"
)

func serve(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// New Relic goes first so the database and Redis clients are instrumented.
	nrApp := newRelicApp(cfg.NewRelic, logger)
	if nrApp != nil {
		defer nrApp.Shutdown(10 * time.Second)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, db, err := openStore(connectCtx, cfg, nrApp)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	logger.Info("entity store ready", "engine", cfg.Store.Engine)

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(connectCtx, cfg.Redis, nrApp)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisClient.Close()
		logger.Info("connected to Redis", "addr", cfg.Redis.Addr)
	}

	publisher := newPublisher(cfg.Kafka, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close event publisher", "error", err)
		}
	}()

	router := app.NewRouter(app.NewRouterDeps(cfg, app.Infrastructure{
		Store:       store,
		Publisher:   publisher,
		RedisClient: redisClient,
		NewRelicApp: nrApp,
		Logger:      logger,
	}))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return run(ctx, server, cfg.Server.ShutdownTimeout, logger)
}

// openStore returns the configured entity store. db is nil for the memory engine.
func openStore(ctx context.Context, cfg *config.Config, nrApp *newrelic.Application) (repository.Store, *sql.DB, error) {
	if cfg.Store.Engine != config.EnginePostgres {
		return memory.NewStore(), nil, nil
	}
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	return postgres.NewStore(db), db, nil
}

func newPublisher(cfg config.KafkaConfig, logger *slog.Logger) events.Publisher {
	if len(cfg.Brokers) == 0 {
		logger.Info("no Kafka brokers configured, events are discarded")
		return events.NopPublisher{}
	}
	logger.Info("publishing events to Kafka", "brokers", cfg.Brokers)
	return events.NewKafkaPublisher(cfg.Brokers, events.Topics{
		RideEvents:      cfg.RideEventsTopic,
		DriverLocations: cfg.DriverLocationsTopic,
		RideAssignments: cfg.RideAssignmentsTopic,
	}, cfg.WriteTimeout)
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}
