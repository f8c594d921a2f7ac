package main

import (
	"flag"

	"github.com/chrissnell/clarkhydro/internal/pipeline"
	"github.com/chrissnell/clarkhydro/pkg/clark"
	"github.com/chrissnell/clarkhydro/pkg/config"
)

// options mirrors the command line. Values given on the command line win over the
// config file; flags left unset keep the config value.
type options struct {
	dem          string
	manningsGrid string
	threshold    float64
	chanWidth    string
	manningsChan string
	adis         float64
	k            float64
	travelTime   string
	erain        string
	qtime        string
	xout         float64
	yout         float64

	plot       string
	report     string
	classWidth float64
	unitScale  float64
	horizon    int
	workers    int
	loss       float64

	configFile string
	dbPath     string
	serve      bool
	debug      bool
	version    bool

	set map[string]bool
}

func newFlagSet(name string, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	fs.StringVar(&o.dem, "dem", "", "Input elevation raster map")
	fs.StringVar(&o.manningsGrid, "manningsgrid", "", "Manning's roughness raster map for the basin")
	fs.Float64Var(&o.threshold, "threshold", 0, "Minimum accumulation (cells) that forms a stream")
	fs.StringVar(&o.chanWidth, "chanwidth", "", "Channel width raster map")
	fs.StringVar(&o.manningsChan, "manningschan", "", "Manning's roughness raster map for the channel")
	fs.Float64Var(&o.adis, "adis", 0, "Average discharge at the outlet in m^3/s")
	fs.Float64Var(&o.k, "k", clark.DefaultRoutingConstant, "Linear reservoir routing constant in hours")
	fs.StringVar(&o.travelTime, "traveltime", "traveltime", "Output travel time map (hours)")
	fs.StringVar(&o.erain, "erain", "", "Effective rainfall file (time intensity)")
	fs.StringVar(&o.qtime, "qtime", "", "Output discharge series file (.csv, .json, .msgpack or text)")
	fs.Float64Var(&o.xout, "xout", 0, "Outlet easting")
	fs.Float64Var(&o.yout, "yout", 0, "Outlet northing")

	fs.StringVar(&o.plot, "plot", "", "Output hydrograph image (.png, .svg, .pdf)")
	fs.StringVar(&o.report, "report", "", "Saved r.report output to use instead of running GRASS")
	fs.Float64Var(&o.classWidth, "class-width", 0, "Hours per travel-time class (default 1.026042)")
	fs.Float64Var(&o.unitScale, "unit-scale", 0, "Discharge scale; 0 derives 1000/(k*3600)")
	fs.IntVar(&o.horizon, "horizon", 0, "Simulated steps per rainfall pulse (default 20)")
	fs.IntVar(&o.workers, "workers", 0, "Parallel convolution workers; 0 or 1 runs sequentially")
	fs.Float64Var(&o.loss, "loss", 0, "Constant loss rate (phi-index) subtracted from every pulse")

	fs.StringVar(&o.configFile, "config", "clarkhydro.yaml", "Path to the YAML configuration file")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database for run history")
	fs.BoolVar(&o.serve, "serve", false, "Run the REST server and scheduled hydrographs instead of a single run")
	fs.BoolVar(&o.debug, "debug", false, "Turn on debugging output")
	fs.BoolVar(&o.version, "version", false, "Show version and exit")

	return fs
}

// parseOptions parses args and records which flags were given explicitly
func parseOptions(args []string) (*options, error) {
	o := &options{set: make(map[string]bool)}
	fs := newFlagSet("clarkhydro", o)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply overlays explicitly given flags onto cfg
func (o *options) apply(cfg *config.ConfigData) {
	b := &cfg.Basin
	r := &cfg.Routing

	str := func(name string, dst *string, v string) {
		if o.set[name] {
			*dst = v
		}
	}
	num := func(name string, dst *float64, v float64) {
		if o.set[name] {
			*dst = v
		}
	}
	integer := func(name string, dst *int, v int) {
		if o.set[name] {
			*dst = v
		}
	}

	str("dem", &b.DEM, o.dem)
	str("manningsgrid", &b.ManningsGrid, o.manningsGrid)
	num("threshold", &b.Threshold, o.threshold)
	str("chanwidth", &b.ChannelWidth, o.chanWidth)
	str("manningschan", &b.ManningsChannel, o.manningsChan)
	num("adis", &b.AverageDischarge, o.adis)
	num("xout", &b.OutletX, o.xout)
	num("yout", &b.OutletY, o.yout)
	str("traveltime", &b.TravelTimeMap, o.travelTime)
	str("report", &b.Report, o.report)

	num("k", &r.RoutingConstant, o.k)
	num("unit-scale", &r.UnitScale, o.unitScale)
	num("class-width", &r.ClassWidth, o.classWidth)
	integer("horizon", &r.HorizonFactor, o.horizon)
	integer("workers", &r.Workers, o.workers)

	str("erain", &cfg.Rainfall.File, o.erain)
	num("loss", &cfg.Rainfall.Loss, o.loss)
	str("qtime", &cfg.Output.Series, o.qtime)
	str("plot", &cfg.Output.Plot, o.plot)

	if o.set["db"] {
		cfg.Storage.SQLite = &config.SQLiteData{Path: o.dbPath}
	}
	if cfg.Basin.TravelTimeMap == "" {
		cfg.Basin.TravelTimeMap = o.travelTime
	}
}

// pipelineParams builds the run parameters from the merged configuration. The outlet
// is present when given on the command line or set to a non-zero value in the file.
func (o *options) pipelineParams(cfg *config.ConfigData) pipeline.Params {
	b := cfg.Basin
	p := pipeline.Params{
		DEM:              b.DEM,
		ManningsGrid:     b.ManningsGrid,
		ManningsChannel:  b.ManningsChannel,
		ChannelWidth:     b.ChannelWidth,
		Threshold:        b.Threshold,
		AverageDischarge: b.AverageDischarge,
		TravelTimeMap:    b.TravelTimeMap,
		ReportPath:       b.Report,
		RainfallFile:     cfg.Rainfall.File,
		Loss:             cfg.Rainfall.Loss,
		SeriesPath:       cfg.Output.Series,
		PlotPath:         cfg.Output.Plot,
		ClassWidth:       cfg.Routing.ClassWidth,
		Routing: clark.Params{
			RoutingConstant: cfg.Routing.RoutingConstant,
			UnitScale:       cfg.Routing.UnitScale,
			HorizonFactor:   cfg.Routing.HorizonFactor,
		},
		Workers: cfg.Routing.Workers,
	}
	if o.set["xout"] || b.OutletX != 0 {
		x := b.OutletX
		p.OutletX = &x
	}
	if o.set["yout"] || b.OutletY != 0 {
		y := b.OutletY
		p.OutletY = &y
	}
	return p
}
