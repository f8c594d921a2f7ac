package geospatial

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Scratch rasters created during preparation
const (
	mapAccumulation = "accu"
	mapDrainage     = "drain"
	mapNetwork      = "rnetwork"
	mapNetworkOne   = "rnetwork_1"
	mapFilled       = "filled"
	mapFilledDir    = "filled_d"
	mapTravelMin    = "traveltime_min"
)

// Runner executes one GRASS module and returns its standard output
type Runner interface {
	Run(ctx context.Context, module string, args ...string) (string, error)
}

// ExecRunner runs GRASS modules as child processes. It must be used from inside a
// GRASS session so the modules and the current location are available.
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, module string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, module, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

// GRASS prepares the travel-time report by running watershed delineation and
// travel-time routing in GRASS GIS
type GRASS struct {
	runner Runner
	logger *zap.SugaredLogger
}

// NewGRASS creates a GRASS collaborator. A nil runner runs the real modules.
func NewGRASS(runner Runner, logger *zap.SugaredLogger) *GRASS {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &GRASS{runner: runner, logger: logger}
}

// Prepare implements Collaborator
func (g *GRASS) Prepare(ctx context.Context, req Request) (*Result, error) {
	travel := req.TravelTimeMap
	if travel == "" {
		travel = "traveltime"
	}

	scratch := strings.Join([]string{
		mapAccumulation, mapNetwork, mapDrainage, mapNetworkOne,
		mapFilled, mapFilledDir, travel, mapTravelMin,
	}, ",")

	// g.remove fails on a clean location; that is not an error for us
	if _, err := g.runner.Run(ctx, "g.remove", "-f", "type=raster", "name="+scratch); err != nil {
		g.logger.Debugf("g.remove of scratch maps: %v", err)
	}

	steps := []struct {
		name   string
		module string
		args   []string
	}{
		{"watershed", "r.watershed", []string{
			"--overwrite",
			"elevation=" + req.DEM,
			"threshold=" + ftoa(req.Threshold),
			"accumulation=" + mapAccumulation,
			"drainage=" + mapDrainage,
			"stream=" + mapNetwork,
		}},
		{"null network", "r.null", []string{"map=" + mapNetwork, "setnull=0"}},
		{"unit network", "r.mapcalc", []string{
			"--overwrite",
			fmt.Sprintf("expression=%s = %s / %s", mapNetworkOne, mapNetwork, mapNetwork),
		}},
	}
	for _, s := range steps {
		if err := g.run(ctx, s.name, s.module, s.args...); err != nil {
			return nil, err
		}
	}

	if err := g.expandRegion(ctx); err != nil {
		return nil, err
	}

	steps = []struct {
		name   string
		module string
		args   []string
	}{
		{"fill directions", "r.fill.dir", []string{
			"--overwrite",
			"input=" + mapNetwork,
			"output=" + mapFilled,
			"direction=" + mapFilledDir,
			"format=grass",
		}},
		{"travel time", "r.traveltimeUp", []string{
			"--overwrite",
			"dir=" + mapDrainage,
			"accu=" + mapAccumulation,
			"dtm=" + mapFilled,
			"manningsn=" + req.ManningsGrid,
			"out_x=" + ftoa(req.OutletX),
			"out_y=" + ftoa(req.OutletY),
			"threshold=" + ftoa(req.Threshold),
			"nchannel=" + req.ManningsChannel,
			"b=" + req.ChannelWidth,
			"dis=" + ftoa(req.AverageDischarge*1000),
			"out=" + mapTravelMin,
		}},
		{"travel time hours", "r.mapcalc", []string{
			"--overwrite",
			fmt.Sprintf("expression=%s = %s / 60", travel, mapTravelMin),
		}},
	}
	for _, s := range steps {
		if err := g.run(ctx, s.name, s.module, s.args...); err != nil {
			return nil, err
		}
	}

	out, err := g.runner.Run(ctx, "r.report", "-h", "map="+travel, "units=k", "null_value=*")
	if err != nil {
		return nil, &CollaboratorError{Step: "report", Err: err}
	}

	rows := SplitRows(out)
	g.logger.Debugf("r.report on %s returned %d rows", travel, len(rows))
	return &Result{TravelTimeMap: travel, ReportRows: rows}, nil
}

// expandRegion grows the computational region by one cell on every side so the
// outlet cell is never on the region edge
func (g *GRASS) expandRegion(ctx context.Context) error {
	out, err := g.runner.Run(ctx, "g.region", "-ap")
	if err != nil {
		return &CollaboratorError{Step: "read region", Err: err}
	}
	region, err := ParseRegion(out)
	if err != nil {
		return &CollaboratorError{Step: "read region", Err: err}
	}

	return g.run(ctx, "expand region", "g.region", "-a",
		"n="+ftoa(region.North+region.NSRes),
		"s="+ftoa(region.South-region.NSRes),
		"w="+ftoa(region.West-region.EWRes),
		"e="+ftoa(region.East+region.EWRes),
	)
}

func (g *GRASS) run(ctx context.Context, step, module string, args ...string) error {
	g.logger.Debugf("running %s: %s %s", step, module, strings.Join(args, " "))
	if _, err := g.runner.Run(ctx, module, args...); err != nil {
		return &CollaboratorError{Step: step, Err: err}
	}
	return nil
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
