// Package recorder keeps a history of completed hydrograph runs.
package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/chrissnell/clarkhydro/pkg/clark"
)

// ErrRunNotFound is returned by GetRun for an unknown id
var ErrRunNotFound = errors.New("run not found")

// Run is one completed pipeline execution
type Run struct {
	ID           string                  `json:"id"`
	CreatedAt    time.Time               `json:"created_at"`
	Source       string                  `json:"source"`
	Params       clark.Params            `json:"params"`
	CurveEntries int                     `json:"curve_entries"`
	RainPulses   int                     `json:"rain_pulses"`
	SkippedRows  int                     `json:"skipped_rows"`
	EmptyCurve   bool                    `json:"empty_curve"`
	Summary      clark.Summary           `json:"summary"`
	Points       []clark.HydrographPoint `json:"points,omitempty"`
}

// Recorder persists runs for later inspection
type Recorder interface {
	// RecordRun stores run, assigning ID and CreatedAt when they are empty
	RecordRun(ctx context.Context, run *Run) error

	// ListRuns returns the newest runs first, without their points
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// GetRun returns one run including its points
	GetRun(ctx context.Context, id string) (*Run, error)

	Close() error
}

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ context.Context, _ *Run) error { return nil }
func (n *NoopRecorder) ListRuns(_ context.Context, _ int) ([]Run, error) { return nil, nil }
func (n *NoopRecorder) GetRun(_ context.Context, _ string) (*Run, error) { return nil, ErrRunNotFound }
func (n *NoopRecorder) Close() error { return nil }
