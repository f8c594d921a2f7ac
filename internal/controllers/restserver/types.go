package restserver

import (
	"github.com/chrissnell/clarkhydro/internal/pipeline"
	"github.com/chrissnell/clarkhydro/pkg/clark"
)

// HydrographRequest is the body of POST /hydrograph. Exactly one of Curve and
// ReportRows describes the basin.
type HydrographRequest struct {
	Curve      []clark.TimeAreaEntry `json:"curve,omitempty"`
	ReportRows []string              `json:"report_rows,omitempty"`
	ClassWidth float64               `json:"class_width,omitempty"`
	Rain       []clark.RainfallEntry `json:"rain"`
	Loss       float64               `json:"loss,omitempty"`
	Params     clark.Params          `json:"params"`
	Record     bool                  `json:"record,omitempty"`
}

// HydrographResponse is returned by POST /hydrograph
type HydrographResponse struct {
	RunID      string               `json:"run_id,omitempty"`
	Curve      *pipeline.Curve      `json:"curve"`
	Hydrograph *pipeline.Hydrograph `json:"hydrograph"`
}

// RunsResponse is returned by GET /runs
type RunsResponse struct {
	Runs []RunSummary `json:"runs"`
}

// RunSummary is a run without its hydrograph points
type RunSummary struct {
	ID           string        `json:"id"`
	CreatedAt    string        `json:"created_at"`
	Source       string        `json:"source"`
	Params       clark.Params  `json:"params"`
	CurveEntries int           `json:"curve_entries"`
	RainPulses   int           `json:"rain_pulses"`
	Summary      clark.Summary `json:"summary"`
}
