// Package bootstrap wires together the configuration, logging, telemetry,
// and supervisor layers into a single App ready for main to run.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dcaengine/internal/config"
	"dcaengine/internal/core"
	"dcaengine/internal/infrastructure/metrics"
	"dcaengine/internal/supervisor"
	"dcaengine/pkg/concurrency"
	"dcaengine/pkg/logging"
	"dcaengine/pkg/telemetry"

	"golang.org/x/sync/errgroup"
)

// App holds every process-wide dependency constructed at startup.
type App struct {
	Cfg        *config.Config
	Logger     core.ILogger
	Telemetry  *telemetry.Telemetry
	Supervisor *supervisor.Supervisor
	Metrics    *metrics.Server
}

// NewApp loads configuration, builds the logger and telemetry stack, and
// constructs a Supervisor wired to the configured exchange. Credentials are
// resolved from the same Config via a StaticCredentialStore: this is a
// single-operator deployment, not a multi-tenant one.
func NewApp(configPath string) (*App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logger.Info("configuration loaded", "config", cfg.String())

	tel, err := telemetry.Setup("dcaengine")
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	credStore := config.NewStaticCredentialStore(cfg)

	poolCfg := concurrency.PoolConfig{
		Name:        "supervisor",
		MaxWorkers:  cfg.Concurrency.EnginePoolSize,
		MaxCapacity: cfg.Concurrency.EnginePoolBuffer,
	}
	sup := supervisor.New(cfg.App.Exchange, credStore, logger, poolCfg)

	var metricsServer *metrics.Server
	if cfg.Telemetry.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Telemetry.MetricsPort, logger)
	}

	return &App{
		Cfg:        cfg,
		Logger:     logger,
		Telemetry:  tel,
		Supervisor: sup,
		Metrics:    metricsServer,
	}, nil
}

// Runner is an interface for components that run until their context is
// canceled.
type Runner interface {
	Run(ctx context.Context) error
}

// Run starts the metrics server (if enabled), starts every runner under an
// errgroup, and blocks until SIGINT/SIGTERM or a runner returns an error. It
// always tears down the supervisor and telemetry before returning.
func (a *App) Run(runners ...Runner) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.Metrics != nil {
		a.Metrics.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		r := r
		g.Go(func() error {
			return r.Run(gctx)
		})
	}

	a.Logger.Info("dcaengine started")

	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		a.Logger.Error("application stopped with error", "error", err)
	} else {
		err = nil
	}

	a.Shutdown(10 * time.Second)
	return err
}

// Shutdown stops every running engine, the metrics server, and flushes
// telemetry, bounded by timeout.
func (a *App) Shutdown(timeout time.Duration) {
	a.Logger.Info("shutting down", "timeout", timeout)

	a.Supervisor.StopAll()
	a.Supervisor.Shutdown()

	if a.Metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.Metrics.Stop(ctx); err != nil {
			a.Logger.Warn("metrics server shutdown error", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.Telemetry.Shutdown(ctx); err != nil {
		a.Logger.Warn("telemetry shutdown error", "error", err)
	}
}
