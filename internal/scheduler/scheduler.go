// Package scheduler recomputes the basin hydrograph on a cron schedule from live
// station rainfall.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chrissnell/clarkhydro/internal/output"
	"github.com/chrissnell/clarkhydro/internal/pipeline"
	"github.com/chrissnell/clarkhydro/internal/rainfall"
	"github.com/chrissnell/clarkhydro/internal/recorder"
	"github.com/chrissnell/clarkhydro/pkg/clark"
)

// CurveLoader produces the basin's time-area curve. It runs on the first tick and
// again after a failure; a successful curve is reused for every later tick.
type CurveLoader func(ctx context.Context) (*pipeline.Curve, error)

// Options configure the periodic job
type Options struct {
	Curve    CurveLoader
	Rain     rainfall.Source
	Recorder recorder.Recorder
	Routing  clark.Params
	Workers  int
	Loss     float64

	// Optional paths rewritten with the latest hydrograph on every tick
	SeriesPath string
	PlotPath   string
}

// Scheduler manages the hydrograph cron task.
type Scheduler struct {
	Cron   *cron.Cron
	ctx    context.Context
	opts   Options
	logger *zap.SugaredLogger

	mu    sync.Mutex
	curve *pipeline.Curve
}

// NewScheduler creates a new Scheduler. Ticks that arrive while a run is still
// in progress are skipped.
func NewScheduler(ctx context.Context, opts Options, logger *zap.SugaredLogger) (*Scheduler, error) {
	if opts.Curve == nil {
		return nil, fmt.Errorf("curve loader is required")
	}
	if opts.Rain == nil {
		return nil, fmt.Errorf("rainfall source is required")
	}
	if opts.Recorder == nil {
		opts.Recorder = recorder.NewNoopRecorder()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Desugar()))
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		ctx:    ctx,
		opts:   opts,
		logger: logger,
	}, nil
}

// Register adds the hydrograph task under a six-field (seconds first) cron spec
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("register hydrograph task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	run, err := s.RunOnce(s.ctx)
	if err != nil {
		s.logger.Errorf("scheduled hydrograph failed: %v", err)
		return
	}
	s.logger.Infof("scheduled hydrograph %s: peak %.4f m^3/s at t=%d",
		run.ID, run.Summary.PeakDischarge, run.Summary.TimeToPeak)
}

// RunOnce executes one scheduled computation immediately and returns the recorded run
func (s *Scheduler) RunOnce(ctx context.Context) (*recorder.Run, error) {
	curve, err := s.loadCurve(ctx)
	if err != nil {
		return nil, err
	}

	rain, err := s.opts.Rain.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rainfall: %w", err)
	}
	if s.opts.Loss > 0 {
		rain = rainfall.ApplyPhiIndex(rain, s.opts.Loss)
	}

	hydro, err := pipeline.Route(ctx, curve.Entries, rain, s.opts.Routing, s.opts.Workers)
	if err != nil {
		return nil, err
	}

	if err := output.Write(s.opts.SeriesPath, s.opts.PlotPath, hydro.Points); err != nil {
		return nil, fmt.Errorf("write outputs: %w", err)
	}

	run := pipeline.NewRun(fmt.Sprint(s.opts.Rain), curve, len(rain), hydro)
	if err := s.opts.Recorder.RecordRun(ctx, run); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}
	return run, nil
}

func (s *Scheduler) loadCurve(ctx context.Context) (*pipeline.Curve, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.curve != nil {
		return s.curve, nil
	}
	curve, err := s.opts.Curve(ctx)
	if err != nil {
		return nil, fmt.Errorf("build time-area curve: %w", err)
	}
	s.logger.Infof("cached time-area curve with %d entries", len(curve.Entries))
	s.curve = curve
	return curve, nil
}
