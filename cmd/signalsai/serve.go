package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/Hamiltonwise/signalsai-backend/internal/config"
	"github.com/Hamiltonwise/signalsai-backend/internal/gateway/httpapi"
	"github.com/Hamiltonwise/signalsai-backend/internal/scheduler"
)

var (
	serveConfigPath string
	servePort       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the service (cron scheduler and HTTP API)",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `signalsai --config path` and `signalsai serve --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "path to config file")
		cmd.Flags().StringVar(&servePort, "port", "", "override HTTP listen address (e.g. :8080)")
	}
}

// runServe starts SignalsAI in service mode: cron-scheduled pipelines plus
// the HTTP trigger API.
func runServe(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(goutils.Env("SIGNALSAI_CONFIG", serveConfigPath))
	if err != nil {
		return err
	}

	// Apply CLI overrides.
	if servePort != "" {
		if cfg.HTTP == nil {
			cfg.HTTP = &config.HTTPConfig{Enabled: true}
		}
		cfg.HTTP.ListenAddr = servePort
	}

	logger.Info("starting in service mode", slog.String("config", serveConfigPath))

	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cron scheduler (optional).
	if cfg.Scheduler != nil && cfg.Scheduler.Enabled {
		var schedMetrics *scheduler.Metrics
		if sc.Obs != nil && sc.Obs.Metrics != nil {
			schedMetrics = scheduler.NewMetrics(sc.Obs.Metrics.Registry)
		}

		sched := scheduler.New(sc.Orchestrator, schedMetrics, logger, cfg.Scheduler)
		cancelScheduler, err := sched.Start(ctx)
		if err != nil {
			return err
		}
		defer cancelScheduler()

		logger.Info("cron scheduler started",
			slog.String("daily", cfg.Scheduler.Daily()),
			slog.String("monthly", cfg.Scheduler.Monthly()),
			slog.String("audit", cfg.Scheduler.Audit()),
		)
	}

	// HTTP gateway (optional).
	if cfg.HTTP != nil && cfg.HTTP.Enabled {
		gwCfg := httpapi.Config{
			ListenAddr: cfg.HTTP.Addr(),
			EnableDocs: cfg.HTTP.EnableDocs,
			APIKeys:    cfg.HTTP.APIKeys,
		}
		if sc.Obs != nil {
			if sc.Obs.Metrics != nil {
				gwCfg.MetricsRegistry = sc.Obs.Metrics.Registry
				gwCfg.Metrics = sc.Obs.Metrics
				if cfg.Observability != nil && cfg.Observability.Metrics != nil {
					gwCfg.MetricsPath = cfg.Observability.Metrics.Path
				}
			}
			gwCfg.HealthChecker = sc.Obs.Health
			if sc.Obs.Tracer != nil {
				gwCfg.Tracer = sc.Obs.Tracer.Tracer()
			}
		}

		gw := httpapi.NewGateway(gwCfg, sc.Orchestrator, sc.Store.Stores(), logger)

		errs := make(chan error, 1)
		go func() {
			errs <- gw.Start(ctx)
		}()

		// Wait for signal or gateway error.
		select {
		case <-ctx.Done():
			logger.Info("shutdown signal received")
		case err := <-errs:
			if err != nil {
				logger.Error("gateway exited with error", slog.String("error", err.Error()))
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gw.Stop(shutdownCtx); err != nil {
			logger.Error("stopping gateway", slog.String("error", err.Error()))
		}
		return nil
	}

	// Scheduler-only mode: block until a signal arrives.
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}
