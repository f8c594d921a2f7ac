package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
basin:
  dem: elevation
  mannings_grid: n_basin
  mannings_channel: n_chan
  channel_width: width
  threshold: 500
  average_discharge: 2.5
  outlet_x: 594512.5
  outlet_y: 4925030
routing:
  routing_constant: 1.5
  workers: 4
rainfall:
  station: ridge
  loss: 0.5
output:
  series: q.csv
  plot: q.png
storage:
  timescaledb:
    connection_string: postgres://localhost/weather
  sqlite:
    path: runs.db
schedule:
  cron: "0 0 * * * *"
rest:
  port: 9090
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clark.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestYAMLProviderLoad(t *testing.T) {
	p := NewYAMLProvider(writeConfig(t, sampleYAML))
	cfg, err := p.LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Basin.DEM != "elevation" || cfg.Basin.OutletX != 594512.5 || cfg.Basin.Threshold != 500 {
		t.Errorf("unexpected basin %+v", cfg.Basin)
	}
	if cfg.Routing.RoutingConstant != 1.5 || cfg.Routing.Workers != 4 {
		t.Errorf("unexpected routing %+v", cfg.Routing)
	}
	if cfg.Rainfall.Lookback != DefaultLookback {
		t.Errorf("expected default lookback, got %q", cfg.Rainfall.Lookback)
	}
	if cfg.RESTServer == nil || cfg.RESTServer.Port != 9090 || cfg.RESTServer.ListenAddr != DefaultListenAddr {
		t.Errorf("unexpected rest config %+v", cfg.RESTServer)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("sample config should validate: %v", err)
	}

	storage, err := p.GetStorageConfig()
	if err != nil {
		t.Fatal(err)
	}
	if storage.SQLite == nil || storage.SQLite.Path != "runs.db" {
		t.Errorf("unexpected storage %+v", storage)
	}
	if !p.IsReadOnly() {
		t.Error("yaml provider should be read-only")
	}
}

func TestYAMLProviderMissingFile(t *testing.T) {
	cfg, err := NewYAMLProvider(filepath.Join(t.TempDir(), "absent.yaml")).LoadConfig()
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.Basin.DEM != "" || cfg.RESTServer != nil {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestYAMLProviderBadYAML(t *testing.T) {
	if _, err := NewYAMLProvider(writeConfig(t, "basin: [unclosed")).LoadConfig(); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvDBPath, "/var/lib/clark/runs.db")
	t.Setenv(EnvTimescaleDBConnection, "postgres://env/weather")

	cfg, err := NewYAMLProvider(writeConfig(t, sampleYAML)).LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.SQLite.Path != "/var/lib/clark/runs.db" {
		t.Errorf("expected env sqlite path, got %s", cfg.Storage.SQLite.Path)
	}
	if cfg.Storage.TimescaleDB.ConnectionString != "postgres://env/weather" {
		t.Errorf("expected env connection, got %s", cfg.Storage.TimescaleDB.ConnectionString)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ConfigData)
		wantErr string
	}{
		{"valid", func(c *ConfigData) {}, ""},
		{"negative k", func(c *ConfigData) { c.Routing.RoutingConstant = -1 }, "routing_constant"},
		{"negative loss", func(c *ConfigData) { c.Rainfall.Loss = -0.1 }, "loss"},
		{"bad lookback", func(c *ConfigData) { c.Rainfall.Lookback = "yesterday" }, "lookback"},
		{"bad cron", func(c *ConfigData) { c.Schedule.Cron = "every hour" }, "schedule.cron"},
		{"cron without station", func(c *ConfigData) { c.Rainfall.Station = "" }, "rainfall.station"},
		{"cron without database", func(c *ConfigData) { c.Storage.TimescaleDB = nil }, "timescaledb"},
		{"bad port", func(c *ConfigData) { c.RESTServer.Port = 70000 }, "rest.port"},
		{"cert without key", func(c *ConfigData) { c.RESTServer.Cert = "server.crt" }, "rest.cert"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewYAMLProvider(writeConfig(t, sampleYAML)).LoadConfig()
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLookbackDuration(t *testing.T) {
	cfg := &ConfigData{Rainfall: RainfallData{Lookback: "36h"}}
	d, err := cfg.LookbackDuration()
	if err != nil {
		t.Fatal(err)
	}
	if d != 36*time.Hour {
		t.Errorf("expected 36h, got %v", d)
	}
}
