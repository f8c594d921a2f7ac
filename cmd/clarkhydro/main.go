package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chrissnell/clarkhydro/internal/app"
	"github.com/chrissnell/clarkhydro/internal/constants"
	"github.com/chrissnell/clarkhydro/internal/log"
	"github.com/chrissnell/clarkhydro/internal/pipeline"
	"github.com/chrissnell/clarkhydro/pkg/config"
)

func main() {
	opts, err := parseOptions(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	if opts.version {
		fmt.Printf("clarkhydro %s\n", constants.Version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(opts.debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Load configuration
	cfgData, err := loadConfig(opts.configFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	opts.apply(cfgData)
	if err := cfgData.Validate(); err != nil {
		log.Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}
	params := opts.pipelineParams(cfgData)

	if opts.serve {
		application := app.New(cfgData, params, log.GetSugaredLogger())
		if err := application.Run(context.Background()); err != nil {
			log.Errorf("Application error: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := runOnce(cfgData, params); err != nil {
		var missing *pipeline.MissingInputError
		if errors.As(err, &missing) {
			log.Errorf("%v (set them with flags or in %s)", err, opts.configFile)
			os.Exit(2)
		}
		log.Errorf("Hydrograph failed: %v", err)
		os.Exit(1)
	}
}

func runOnce(cfgData *config.ConfigData, params pipeline.Params) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := params.Validate(true); err != nil {
		return err
	}

	rec, err := app.OpenRecorder(cfgData, log.GetSugaredLogger())
	if err != nil {
		return fmt.Errorf("error opening run recorder: %w", err)
	}
	defer rec.Close()

	res, err := pipeline.Run(ctx, params, pipeline.Deps{
		Recorder: rec,
		Logger:   log.GetSugaredLogger(),
	})
	if err != nil {
		return err
	}

	log.Infof("Wrote %d discharge steps to %s", len(res.Points), params.SeriesPath)
	if res.RunID != "" {
		log.Infof("Recorded run %s", res.RunID)
	}
	return nil
}

func loadConfig(cfgFile string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	provider := config.NewYAMLProvider(filename)
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return cfgData, nil
}
