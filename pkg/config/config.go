// Package config loads basin, routing and service settings for clarkhydro.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
)

// Environment variables that override values read from the config file
const (
	EnvDBPath                = "CLARK_DB_PATH"
	EnvTimescaleDBConnection = "CLARK_TIMESCALEDB_CONNECTION"
)

const (
	DefaultLookback   = "24h"
	DefaultListenAddr = "0.0.0.0"
	DefaultPort       = 8080
)

// ApplyEnv overlays environment variables onto the configuration
func (c *ConfigData) ApplyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Storage.SQLite = &SQLiteData{Path: v}
	}
	if v := os.Getenv(EnvTimescaleDBConnection); v != "" {
		c.Storage.TimescaleDB = &TimescaleDBData{ConnectionString: v}
	}
}

// ApplyDefaults fills in service settings left empty. Routing values stay zero
// so the numeric packages apply their own defaults.
func (c *ConfigData) ApplyDefaults() {
	if c.Rainfall.Station != "" && c.Rainfall.Lookback == "" {
		c.Rainfall.Lookback = DefaultLookback
	}
	if c.RESTServer != nil {
		if c.RESTServer.ListenAddr == "" {
			c.RESTServer.ListenAddr = DefaultListenAddr
		}
		if c.RESTServer.Port == 0 {
			c.RESTServer.Port = DefaultPort
		}
	}
}

// LookbackDuration parses Rainfall.Lookback
func (c *ConfigData) LookbackDuration() (time.Duration, error) {
	if c.Rainfall.Lookback == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Rainfall.Lookback)
	if err != nil {
		return 0, fmt.Errorf("rainfall.lookback: %w", err)
	}
	return d, nil
}

// Validate checks values that can be judged without the command line. Missing
// basin inputs are reported by the pipeline, after flags have been merged.
func (c *ConfigData) Validate() error {
	if c.Basin.Threshold < 0 {
		return fmt.Errorf("basin.threshold must not be negative")
	}
	if c.Routing.RoutingConstant < 0 {
		return fmt.Errorf("routing.routing_constant must not be negative")
	}
	if c.Routing.UnitScale < 0 {
		return fmt.Errorf("routing.unit_scale must not be negative")
	}
	if c.Routing.ClassWidth < 0 {
		return fmt.Errorf("routing.class_width must not be negative")
	}
	if c.Routing.HorizonFactor < 0 {
		return fmt.Errorf("routing.horizon_factor must not be negative")
	}
	if c.Routing.Workers < 0 {
		return fmt.Errorf("routing.workers must not be negative")
	}
	if c.Rainfall.Loss < 0 {
		return fmt.Errorf("rainfall.loss must not be negative")
	}

	d, err := c.LookbackDuration()
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("rainfall.lookback must not be negative")
	}

	if c.Schedule.Cron != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron %q: %w", c.Schedule.Cron, err)
		}
		if c.Rainfall.Station == "" {
			return fmt.Errorf("schedule.cron requires rainfall.station")
		}
		if c.Storage.TimescaleDB == nil || c.Storage.TimescaleDB.ConnectionString == "" {
			return fmt.Errorf("schedule.cron requires storage.timescaledb.connection_string")
		}
	}

	if c.RESTServer != nil && (c.RESTServer.Port < 1 || c.RESTServer.Port > 65535) {
		return fmt.Errorf("rest.port %d out of range", c.RESTServer.Port)
	}
	if c.RESTServer != nil && (c.RESTServer.Cert == "") != (c.RESTServer.Key == "") {
		return fmt.Errorf("rest.cert and rest.key must be set together")
	}
	return nil
}
