// Package app wires configuration, storage, the classification engine and
// the health evaluator into a runnable application.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/meteosentry/meteosentry/internal/database"
	"github.com/meteosentry/meteosentry/internal/engine"
	"github.com/meteosentry/meteosentry/internal/health"
	"github.com/meteosentry/meteosentry/internal/log"
	"github.com/meteosentry/meteosentry/internal/store"
	"github.com/meteosentry/meteosentry/pkg/config"
)

// Options control a single invocation of the application.
type Options struct {
	// End is the exclusive end of the detection window. Zero means now.
	End time.Time
	// Station restricts the run to one station ID. Empty means all.
	Station string
	// Health runs the long-period health evaluation instead of detection.
	Health bool
	// Every enables scheduled mode, re-running the batch at this interval.
	// Zero runs once and exits.
	Every time.Duration
	// JSON emits the report as JSON instead of the text rendering.
	JSON bool
	// Output receives the rendered report.
	Output io.Writer
}

// App represents the main application.
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance.
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run executes the application and blocks until the work is done or, in
// scheduled mode, until a shutdown signal arrives.
func (a *App) Run(ctx context.Context, opts Options) error {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	st, err := a.openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.Every <= 0 {
		return a.runOnce(ctx, cfg, st, opts)
	}
	return a.runScheduled(ctx, cfg, st, opts)
}

// openStore selects the observation backend from the storage configuration.
// Validate guarantees exactly one backend is set.
func (a *App) openStore(cfg *config.ConfigData) (store.ObservationStore, error) {
	switch {
	case cfg.Storage.TimescaleDB != nil:
		return database.NewClient(cfg.Storage.TimescaleDB.ConnectionString, a.logger)
	case cfg.Storage.SQLite != nil:
		return database.NewSQLiteClient(cfg.Storage.SQLite.Path, a.logger)
	}
	return nil, &config.ValidationError{Field: "storage", Reason: "no backend configured"}
}

func (a *App) runOnce(ctx context.Context, cfg *config.ConfigData, st store.ObservationStore, opts Options) error {
	end := opts.End
	if end.IsZero() {
		end = time.Now().UTC()
	}

	if opts.Health {
		return a.runHealth(ctx, cfg, st, end, opts)
	}

	eng, err := engine.New(cfg, st, a.logger)
	if err != nil {
		return err
	}

	report, err := eng.Run(ctx, end, opts.Station)
	if err != nil {
		return err
	}
	return writeReport(opts.Output, report, opts.JSON)
}

func (a *App) runHealth(ctx context.Context, cfg *config.ConfigData, st store.ObservationStore, end time.Time, opts Options) error {
	stations, err := st.Stations(ctx)
	if err != nil {
		return err
	}

	reader := store.NewReader(st, cfg.SamplingIntervalDuration())
	eval := health.NewEvaluator(reader, cfg.Health, a.logger)

	var reports []*health.Report
	for _, station := range stations {
		if opts.Station != "" && station.ID != opts.Station {
			continue
		}
		report, err := eval.Evaluate(ctx, station.ID, end)
		if err != nil {
			return err
		}
		reports = append(reports, report)
	}
	return writeHealthReports(opts.Output, reports, opts.JSON)
}

// runScheduled re-runs the batch at the configured interval until a
// shutdown signal or context cancellation.
func (a *App) runScheduled(ctx context.Context, cfg *config.ConfigData, st store.ObservationStore, opts Options) error {
	scheduler := gocron.NewScheduler(time.UTC)

	_, err := scheduler.Every(opts.Every).Do(func() {
		runOpts := opts
		runOpts.End = time.Now().UTC()
		if err := a.runOnce(ctx, cfg, st, runOpts); err != nil {
			a.logger.Errorw("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("could not schedule runs: %w", err)
	}
	scheduler.StartAsync()

	log.Infof("scheduled mode started, running every %s", opts.Every)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		log.Info("shutdown signal received, stopping scheduler...")
	case <-ctx.Done():
		log.Info("context cancelled, stopping scheduler...")
	}

	scheduler.Stop()
	log.Info("shutdown complete")
	return nil
}
