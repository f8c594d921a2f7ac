package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetStorageConfig() (*StorageData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure. Every field may be
// overridden on the command line.
type ConfigData struct {
	Basin      BasinData       `yaml:"basin" json:"basin"`
	Routing    RoutingData     `yaml:"routing" json:"routing"`
	Rainfall   RainfallData    `yaml:"rainfall" json:"rainfall"`
	Output     OutputData      `yaml:"output" json:"output"`
	Storage    StorageData     `yaml:"storage,omitempty" json:"storage,omitempty"`
	Schedule   ScheduleData    `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	RESTServer *RESTServerData `yaml:"rest,omitempty" json:"rest,omitempty"`
}

// BasinData names the GIS layers and outlet used to build the time-area curve
type BasinData struct {
	DEM              string  `yaml:"dem" json:"dem"`
	ManningsGrid     string  `yaml:"mannings_grid" json:"mannings_grid"`
	ManningsChannel  string  `yaml:"mannings_channel" json:"mannings_channel"`
	ChannelWidth     string  `yaml:"channel_width" json:"channel_width"`
	Threshold        float64 `yaml:"threshold" json:"threshold"`
	AverageDischarge float64 `yaml:"average_discharge" json:"average_discharge"`
	OutletX          float64 `yaml:"outlet_x" json:"outlet_x"`
	OutletY          float64 `yaml:"outlet_y" json:"outlet_y"`
	TravelTimeMap    string  `yaml:"travel_time_map,omitempty" json:"travel_time_map,omitempty"`

	// Report is a saved r.report listing used instead of running GRASS
	Report string `yaml:"report,omitempty" json:"report,omitempty"`
}

type RoutingData struct {
	RoutingConstant float64 `yaml:"routing_constant,omitempty" json:"routing_constant,omitempty"`
	UnitScale       float64 `yaml:"unit_scale,omitempty" json:"unit_scale,omitempty"`
	ClassWidth      float64 `yaml:"class_width,omitempty" json:"class_width,omitempty"`
	HorizonFactor   int     `yaml:"horizon_factor,omitempty" json:"horizon_factor,omitempty"`
	Workers         int     `yaml:"workers,omitempty" json:"workers,omitempty"`
}

type RainfallData struct {
	File string `yaml:"file,omitempty" json:"file,omitempty"`
	// Loss is a constant phi-index in mm/h subtracted from every pulse
	Loss     float64 `yaml:"loss,omitempty" json:"loss,omitempty"`
	Station  string  `yaml:"station,omitempty" json:"station,omitempty"`
	Lookback string  `yaml:"lookback,omitempty" json:"lookback,omitempty"`
}

type OutputData struct {
	Series string `yaml:"series,omitempty" json:"series,omitempty"`
	Plot   string `yaml:"plot,omitempty" json:"plot,omitempty"`
}

// StorageData holds the configuration for the storage backends
type StorageData struct {
	TimescaleDB *TimescaleDBData `yaml:"timescaledb,omitempty" json:"timescaledb,omitempty"`
	SQLite      *SQLiteData      `yaml:"sqlite,omitempty" json:"sqlite,omitempty"`
}

type TimescaleDBData struct {
	ConnectionString string `yaml:"connection_string" json:"connection_string"`
}

type SQLiteData struct {
	Path string `yaml:"path" json:"path"`
}

type ScheduleData struct {
	// Cron is a six-field (seconds first) cron expression
	Cron string `yaml:"cron,omitempty" json:"cron,omitempty"`
}

type RESTServerData struct {
	Cert       string `yaml:"cert,omitempty" json:"cert,omitempty"`
	Key        string `yaml:"key,omitempty" json:"key,omitempty"`
	Port       int    `yaml:"port,omitempty" json:"port,omitempty"`
	ListenAddr string `yaml:"listen_addr,omitempty" json:"listen_addr,omitempty"`
}
