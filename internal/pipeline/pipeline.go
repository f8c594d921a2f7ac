// Package pipeline runs one Clark hydrograph computation end to end: terrain
// preprocessing, time-area curve, rainfall, convolution, outputs and recording.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chrissnell/clarkhydro/internal/geospatial"
	"github.com/chrissnell/clarkhydro/internal/output"
	"github.com/chrissnell/clarkhydro/internal/rainfall"
	"github.com/chrissnell/clarkhydro/internal/recorder"
	"github.com/chrissnell/clarkhydro/pkg/clark"
	"github.com/chrissnell/clarkhydro/pkg/timearea"
)

// Deps are the collaborators of a run. Nil fields get defaults derived from Params.
type Deps struct {
	Collaborator geospatial.Collaborator
	Rain         rainfall.Source
	Recorder     recorder.Recorder
	Logger       *zap.SugaredLogger
}

// Curve is a time-area curve together with what was learned while building it
type Curve struct {
	Entries     []clark.TimeAreaEntry `json:"entries"`
	SkippedRows int                   `json:"skipped_rows"`
	Empty       bool                  `json:"empty"`
}

// Hydrograph is the routed discharge series and the parameters that produced it
type Hydrograph struct {
	Params  clark.Params            `json:"params"`
	Points  []clark.HydrographPoint `json:"points"`
	Summary clark.Summary           `json:"summary"`
}

// Result is everything a batch run produced
type Result struct {
	RunID  string
	Source string
	Curve  *Curve
	Rain   []clark.RainfallEntry
	*Hydrograph
}

// Run executes the batch pipeline. Required inputs are checked before any external
// processing starts; outputs are written only once the hydrograph has been computed.
func Run(ctx context.Context, p Params, deps Deps) (*Result, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	if err := p.Validate(deps.Rain == nil); err != nil {
		return nil, err
	}

	collab := deps.Collaborator
	if collab == nil {
		collab = p.Collaborator(logger)
	}

	curve, err := BuildCurve(ctx, collab, p.Request(), p.ClassWidth, logger)
	if err != nil {
		return nil, err
	}

	src := deps.Rain
	if src == nil {
		src = rainfall.FileSource{Path: p.RainfallFile}
	}
	rain, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rainfall: %w", err)
	}
	if p.Loss > 0 {
		rain = rainfall.ApplyPhiIndex(rain, p.Loss)
	}

	hydro, err := Route(ctx, curve.Entries, rain, p.Routing, p.Workers)
	if err != nil {
		return nil, err
	}

	if err := output.Write(p.SeriesPath, p.PlotPath, hydro.Points); err != nil {
		return nil, fmt.Errorf("write outputs: %w", err)
	}

	res := &Result{
		Source:     describe(src),
		Curve:      curve,
		Rain:       rain,
		Hydrograph: hydro,
	}
	logger.Infof("Hydrograph: %d steps, peak %.4f m^3/s at t=%d, volume %.1f m^3",
		len(hydro.Points), hydro.Summary.PeakDischarge, hydro.Summary.TimeToPeak, hydro.Summary.Volume)

	if deps.Recorder != nil {
		run := NewRun(res.Source, curve, len(rain), hydro)
		if err := deps.Recorder.RecordRun(ctx, run); err != nil {
			// history is best effort once the outputs exist
			logger.Errorf("error recording run: %v", err)
		} else {
			res.RunID = run.ID
		}
	}

	return res, nil
}

// BuildCurve asks the collaborator for the area report and turns it into a curve
func BuildCurve(ctx context.Context, collab geospatial.Collaborator, req geospatial.Request, classWidth float64, logger *zap.SugaredLogger) (*Curve, error) {
	res, err := collab.Prepare(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("geospatial preprocessing: %w", err)
	}
	return CurveFromRows(res.ReportRows, classWidth, logger)
}

// CurveFromRows builds a curve from raw report rows. Malformed rows and an empty
// curve are logged as warnings, not errors.
func CurveFromRows(rows []string, classWidth float64, logger *zap.SugaredLogger) (*Curve, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if classWidth == 0 {
		classWidth = timearea.DefaultClassWidth
	}

	entries, skipped, err := timearea.FromReport(rows, classWidth)
	c := &Curve{Entries: entries, SkippedRows: skipped}
	if skipped > 0 {
		logger.Warnf("Skipped %d malformed report rows", skipped)
	}
	switch {
	case errors.Is(err, timearea.ErrEmptyCurve):
		logger.Warnf("Time-area report has no usable classes; hydrograph will be flat")
		c.Empty = true
	case err != nil:
		return nil, fmt.Errorf("build time-area curve: %w", err)
	}
	return c, nil
}

// Route convolves the curve with the rainfall. More than one worker selects the
// parallel engine.
func Route(ctx context.Context, curve []clark.TimeAreaEntry, rain []clark.RainfallEntry, routing clark.Params, workers int) (*Hydrograph, error) {
	routing = routing.Normalize()

	var (
		points []clark.HydrographPoint
		err    error
	)
	if workers > 1 {
		points, err = clark.ConvolveParallel(ctx, curve, rain, routing, workers)
	} else {
		points, err = clark.Convolve(curve, rain, routing)
	}
	if err != nil {
		return nil, fmt.Errorf("convolution: %w", err)
	}

	return &Hydrograph{
		Params:  routing,
		Points:  points,
		Summary: clark.Summarize(points),
	}, nil
}

// NewRun builds the history record for a computed hydrograph
func NewRun(source string, c *Curve, rainPulses int, h *Hydrograph) *recorder.Run {
	return &recorder.Run{
		Source:       source,
		Params:       h.Params,
		CurveEntries: len(c.Entries),
		RainPulses:   rainPulses,
		SkippedRows:  c.SkippedRows,
		EmptyCurve:   c.Empty,
		Summary:      h.Summary,
		Points:       h.Points,
	}
}

func describe(src rainfall.Source) string {
	if s, ok := src.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", src)
}
