package rainfall

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/clarkhydro/internal/database"
	"github.com/chrissnell/clarkhydro/pkg/clark"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const mmPerInch = 25.4

// Source yields a rainfall series for one pipeline run
type Source interface {
	Load(ctx context.Context) ([]clark.RainfallEntry, error)
}

// FileSource reads the series from a text file on every Load
type FileSource struct {
	Path string
}

// Load implements Source
func (f FileSource) Load(_ context.Context) ([]clark.RainfallEntry, error) {
	return LoadFile(f.Path)
}

func (f FileSource) String() string { return f.Path }

// StationSource builds hourly pulses from the 5-minute rain buckets a remoteweather
// station writes to TimescaleDB
type StationSource struct {
	db       *gorm.DB
	logger   *zap.SugaredLogger
	station  string
	lookback time.Duration
	now      func() time.Time
}

// NewStationSource creates a source for the named station covering the last lookback
// hours. lookback is rounded down to whole hours and must be at least one hour.
func NewStationSource(db *gorm.DB, logger *zap.SugaredLogger, station string, lookback time.Duration) (*StationSource, error) {
	if station == "" {
		return nil, fmt.Errorf("station name is required")
	}
	if lookback < time.Hour {
		return nil, fmt.Errorf("lookback must be at least one hour, got %v", lookback)
	}
	return &StationSource{
		db:       db,
		logger:   logger,
		station:  station,
		lookback: lookback.Truncate(time.Hour),
		now:      time.Now,
	}, nil
}

// Load implements Source. The window ends at the start of the current hour so only
// complete hours are used.
func (s *StationSource) Load(ctx context.Context) ([]clark.RainfallEntry, error) {
	end := s.now().UTC().Truncate(time.Hour)
	start := end.Add(-s.lookback)

	var buckets []database.HourlyRain
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			date_trunc('hour', bucket) AS hour,
			COALESCE(SUM(period_rain), 0) AS depth
		FROM weather_5m
		WHERE stationname = ?
		AND bucket >= ?
		AND bucket < ?
		GROUP BY 1
		ORDER BY 1
	`, s.station, start, end).Scan(&buckets).Error
	if err != nil {
		return nil, fmt.Errorf("error querying rainfall for %s: %w", s.station, err)
	}

	rain := hourlySeries(start, int(s.lookback/time.Hour), buckets)
	s.logger.Debugf("Loaded %d hourly rain buckets for %s (%d in window)", len(buckets), s.station, len(rain))
	return rain, nil
}

func (s *StationSource) String() string { return "station:" + s.station }

// hourlySeries lays the buckets onto a gap-free hourly grid starting at start.
// Depths are converted from inches to millimetres; buckets outside the grid are ignored.
func hourlySeries(start time.Time, hours int, buckets []database.HourlyRain) []clark.RainfallEntry {
	rain := make([]clark.RainfallEntry, hours)
	for i := range rain {
		rain[i].Time = float64(i)
	}
	for _, b := range buckets {
		idx := int(b.Hour.Sub(start) / time.Hour)
		if idx < 0 || idx >= hours {
			continue
		}
		rain[idx].Intensity += b.Depth * mmPerInch
	}
	return rain
}
