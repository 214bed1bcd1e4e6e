package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Hamiltonwise/signalsai-backend/internal/config"
	"github.com/Hamiltonwise/signalsai-backend/internal/metrics"
	"github.com/Hamiltonwise/signalsai-backend/internal/notification"
	"github.com/Hamiltonwise/signalsai-backend/internal/observability"
	"github.com/Hamiltonwise/signalsai-backend/internal/pipeline"
	"github.com/Hamiltonwise/signalsai-backend/internal/stage"
	"github.com/Hamiltonwise/signalsai-backend/internal/storage"
	pgstore "github.com/Hamiltonwise/signalsai-backend/internal/storage/postgres"
	sqlitestore "github.com/Hamiltonwise/signalsai-backend/internal/storage/sqlite"
)

const defaultSQLitePath = "signalsai.db"

// SharedComponents holds all initialized subsystems the service and the
// one-shot runner commands require. Built once by initShared, torn down
// by Cleanup.
type SharedComponents struct {
	Config       *config.Config
	Logger       *slog.Logger
	Store        storage.Store
	Obs          *observability.Observability
	Orchestrator *pipeline.Orchestrator

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// initShared performs all common initialization shared between service mode
// and the one-shot runner commands. Callers must call sc.Cleanup() when done.
func initShared(cfg *config.Config, logger *slog.Logger) (*SharedComponents, error) {
	sc := &SharedComponents{
		Config: cfg,
		Logger: logger,
	}

	// Observability.
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
	})
	if obs != nil {
		logger.Debug("observability initialized",
			slog.Bool("metrics", obs.Metrics != nil),
			slog.Bool("tracing", obs.Tracer != nil),
		)
	}

	// Storage (SQLite default, PostgreSQL optional).
	store, err := initStore(cfg, logger)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	sc.Store = store
	sc.addCleanup(func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", slog.String("error", err.Error()))
		}
	})
	logger.Debug("storage initialized", slog.String("driver", store.Driver()))

	// Run migrations.
	if err := store.Migrate(context.Background()); err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if obs != nil && obs.Health != nil {
		obs.Health.AddCheck("database", store.Ping)
	}

	// Orchestrator and its collaborators.
	registry := stage.NewRegistry(cfg.Agents, cfg.Pipeline)
	client := stage.NewClient(cfg.Agents.Timeout(), logger)
	collector, production := metrics.BuildCollector(cfg.Metrics, logger)

	orch := pipeline.NewOrchestrator(registry, client, collector, store.Stores(), logger, cfg.Pipeline)
	if production != nil {
		orch.WithProduction(production)
	}
	if dispatcher := notification.BuildDispatcher(cfg.Notification, logger); dispatcher != nil {
		orch.WithNotifier(dispatcher)
		logger.Debug("failure notifications enabled")
	}
	if obs != nil && obs.Metrics != nil {
		orch.WithMetrics(pipeline.NewMetrics(obs.Metrics.Registry))
	}
	sc.Orchestrator = orch

	return sc, nil
}

// initStore opens the configured persistence backend.
func initStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage.StorageDriver() {
	case storage.DriverPostgres:
		pg := cfg.Storage.Postgres
		if pg == nil || pg.DSN == "" {
			return nil, fmt.Errorf("postgres driver selected but no DSN configured")
		}
		db, err := pgstore.Open(pgstore.Config{
			DSN:             pg.DSN,
			MaxOpenConns:    pg.MaxOpenConns,
			MaxIdleConns:    pg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(pg.ConnMaxLifetimeS) * time.Second,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return pgstore.NewStore(db), nil

	case storage.DriverSQLite:
		path := defaultSQLitePath
		if cfg.Storage != nil && cfg.Storage.SQLite != nil && cfg.Storage.SQLite.Path != "" {
			path = cfg.Storage.SQLite.Path
		}
		return sqlitestore.Open(sqlitestore.Config{Path: path}, logger)

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.StorageDriver())
	}
}
