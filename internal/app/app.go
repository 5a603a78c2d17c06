// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/catalog"
	"finance-tracker/internal/chat"
	"finance-tracker/internal/config"
	"finance-tracker/internal/events"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/storage"
	"finance-tracker/internal/storage/postgres"
	val "finance-tracker/internal/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

// SetupLogger installs a text slog handler at the configured level.
func SetupLogger(cfg config.Config) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	return logger
}

// MustLoadConfig loads and validates the configuration, exiting on failure.
func MustLoadConfig() config.Config {
	cfg := config.MustLoad()
	SetupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// OpenPool connects to Postgres, retrying the first ping with exponential
// backoff up to cfg.DBConnectAttempts times, and applies migrations when
// AutoMigrate is set.
func OpenPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DBConn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	backoff := retry.WithMaxRetries(uint64(cfg.DBConnectAttempts-1), retry.NewExponential(500*time.Millisecond))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			slog.Warn("Database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, cfg.DBConn); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return pool, nil
}

// Services is the application wired over one store.
type Services struct {
	Catalog   *catalog.Catalog
	Engine    *ledger.Engine
	Projector *ledger.Projector
	Assistant *chat.Assistant
	Tokens    *auth.TokenService
	Publisher events.Publisher
}

// NewServices loads the category catalog, connects the event publisher and
// builds the ledger services. Close releases the publisher.
func NewServices(cfg config.Config, store storage.Store) (*Services, error) {
	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	val.RegisterCatalog(cat)

	var pub events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		pub = amqpPub
		slog.Info("Publishing ledger events", "exchange", cfg.AMQPExchange)
	}

	engine := ledger.NewEngine(store, cat, ledger.Options{
		SavingsDeduction: cfg.SavingsDeduction,
		Publisher:        pub,
	})
	projector := ledger.NewProjector(store, cat, cfg.RecentLimit)

	return &Services{
		Catalog:   cat,
		Engine:    engine,
		Projector: projector,
		Assistant: chat.NewAssistant(engine, projector, store),
		Tokens:    auth.NewTokenService(cfg),
		Publisher: pub,
	}, nil
}

func (s *Services) Close() error {
	return s.Publisher.Close()
}
