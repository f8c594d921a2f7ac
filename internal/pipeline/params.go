package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chrissnell/clarkhydro/internal/geospatial"
	"github.com/chrissnell/clarkhydro/internal/output"
	"github.com/chrissnell/clarkhydro/pkg/clark"
)

// ErrMissingRequiredInput is wrapped by MissingInputError
var ErrMissingRequiredInput = errors.New("missing required input")

// MissingInputError lists every required input that was not supplied
type MissingInputError struct {
	Fields []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingRequiredInput, strings.Join(e.Fields, ", "))
}

func (e *MissingInputError) Unwrap() error { return ErrMissingRequiredInput }

// Params holds everything one run needs, merged from the config file and the command line
type Params struct {
	DEM              string
	ManningsGrid     string
	ManningsChannel  string
	ChannelWidth     string
	Threshold        float64
	AverageDischarge float64
	// Outlet coordinates are pointers so that 0 is distinguishable from "not given"
	OutletX       *float64
	OutletY       *float64
	TravelTimeMap string

	// ReportPath replaces the GRASS run with a saved r.report listing
	ReportPath string

	RainfallFile string
	Loss         float64

	SeriesPath string
	PlotPath   string

	ClassWidth float64
	Routing    clark.Params
	Workers    int
}

// Missing returns the flag names of required inputs that are absent. The rainfall file is
// only required when needRainFile is set.
func (p Params) Missing(needRainFile bool) []string {
	missing := p.MissingBasin()
	if needRainFile && p.RainfallFile == "" {
		missing = append(missing, "erain")
	}
	if p.SeriesPath == "" {
		missing = append(missing, "qtime")
	}
	return missing
}

// MissingBasin returns the absent inputs needed to build the time-area curve. The
// channel inputs are only needed when GRASS is run.
func (p Params) MissingBasin() []string {
	var missing []string
	add := func(absent bool, name string) {
		if absent {
			missing = append(missing, name)
		}
	}

	add(p.DEM == "", "dem")
	add(p.ManningsGrid == "", "manningsgrid")
	add(p.Threshold <= 0, "threshold")
	if p.ReportPath == "" {
		add(p.ChannelWidth == "", "chanwidth")
		add(p.ManningsChannel == "", "manningschan")
		add(p.AverageDischarge <= 0, "adis")
	}
	add(p.OutletX == nil, "xout")
	add(p.OutletY == nil, "yout")
	return missing
}

// Validate returns a *MissingInputError when any required input is absent. A plot
// path with an extension the plotter cannot produce is rejected here as well.
func (p Params) Validate(needRainFile bool) error {
	if missing := p.Missing(needRainFile); len(missing) > 0 {
		return &MissingInputError{Fields: missing}
	}
	if p.PlotPath != "" {
		if err := output.CheckPlotPath(p.PlotPath); err != nil {
			return fmt.Errorf("plot: %w", err)
		}
	}
	return nil
}

// Request converts the basin inputs into a geospatial request
func (p Params) Request() geospatial.Request {
	req := geospatial.Request{
		DEM:              p.DEM,
		ManningsGrid:     p.ManningsGrid,
		ManningsChannel:  p.ManningsChannel,
		ChannelWidth:     p.ChannelWidth,
		Threshold:        p.Threshold,
		AverageDischarge: p.AverageDischarge,
		TravelTimeMap:    p.TravelTimeMap,
	}
	if p.OutletX != nil {
		req.OutletX = *p.OutletX
	}
	if p.OutletY != nil {
		req.OutletY = *p.OutletY
	}
	return req
}

// Collaborator returns the saved report reader when ReportPath is set, otherwise GRASS
func (p Params) Collaborator(logger *zap.SugaredLogger) geospatial.Collaborator {
	if p.ReportPath != "" {
		return geospatial.ReportFile{Path: p.ReportPath}
	}
	return geospatial.NewGRASS(nil, logger)
}
