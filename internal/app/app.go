package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/clarkhydro/internal/controllers/restserver"
	"github.com/chrissnell/clarkhydro/internal/database"
	"github.com/chrissnell/clarkhydro/internal/log"
	"github.com/chrissnell/clarkhydro/internal/pipeline"
	"github.com/chrissnell/clarkhydro/internal/rainfall"
	"github.com/chrissnell/clarkhydro/internal/recorder"
	"github.com/chrissnell/clarkhydro/internal/scheduler"
	"github.com/chrissnell/clarkhydro/pkg/config"
	"go.uber.org/zap"
)

// App runs the long-lived surfaces: the REST server and the scheduled hydrograph
type App struct {
	cfg    *config.ConfigData
	params pipeline.Params
	logger *zap.SugaredLogger
}

// New creates a new application instance. params are the merged basin and routing
// inputs used by the scheduled job.
func New(cfg *config.ConfigData, params pipeline.Params, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		params: params,
		logger: logger,
	}
}

// OpenRecorder returns the SQLite recorder when a database path is configured and a
// no-op recorder otherwise
func OpenRecorder(cfg *config.ConfigData, logger *zap.SugaredLogger) (recorder.Recorder, error) {
	if cfg.Storage.SQLite == nil || cfg.Storage.SQLite.Path == "" {
		return recorder.NewNoopRecorder(), nil
	}
	return recorder.NewSQLiteRecorder(cfg.Storage.SQLite.Path, logger)
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	if a.cfg.RESTServer == nil && a.cfg.Schedule.Cron == "" {
		return fmt.Errorf("serve mode needs a rest section or a schedule.cron entry")
	}

	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rec, err := OpenRecorder(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("error opening run recorder: %w", err)
	}
	defer rec.Close()

	if a.cfg.RESTServer != nil {
		ctrl, err := restserver.NewController(ctx, &wg, a.cfg, rec, a.logger)
		if err != nil {
			return fmt.Errorf("error creating REST server: %w", err)
		}
		if err := ctrl.StartController(); err != nil {
			return err
		}
	}

	var sched *scheduler.Scheduler
	if a.cfg.Schedule.Cron != "" {
		sched, err = a.newScheduler(ctx, rec)
		if err != nil {
			cancel()
			wg.Wait()
			return err
		}
		sched.Start()
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	if sched != nil {
		sched.Stop()
	}

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}

func (a *App) newScheduler(ctx context.Context, rec recorder.Recorder) (*scheduler.Scheduler, error) {
	if missing := a.params.MissingBasin(); len(missing) > 0 {
		return nil, &pipeline.MissingInputError{Fields: missing}
	}
	if a.cfg.Storage.TimescaleDB == nil {
		return nil, fmt.Errorf("scheduled runs need storage.timescaledb")
	}

	db, err := database.CreateConnection(a.cfg.Storage.TimescaleDB.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("error connecting to TimescaleDB: %w", err)
	}

	lookback, err := a.cfg.LookbackDuration()
	if err != nil {
		return nil, err
	}
	source, err := rainfall.NewStationSource(db, a.logger, a.cfg.Rainfall.Station, lookback)
	if err != nil {
		return nil, err
	}

	p := a.params
	collab := p.Collaborator(a.logger)
	loader := func(ctx context.Context) (*pipeline.Curve, error) {
		return pipeline.BuildCurve(ctx, collab, p.Request(), p.ClassWidth, a.logger)
	}

	sched, err := scheduler.NewScheduler(ctx, scheduler.Options{
		Curve:      loader,
		Rain:       source,
		Recorder:   rec,
		Routing:    p.Routing,
		Workers:    p.Workers,
		Loss:       p.Loss,
		SeriesPath: p.SeriesPath,
		PlotPath:   p.PlotPath,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	if err := sched.Register(a.cfg.Schedule.Cron); err != nil {
		return nil, err
	}
	log.Infof("Scheduled hydrograph for station %s with spec %q", a.cfg.Rainfall.Station, a.cfg.Schedule.Cron)
	return sched, nil
}
