// Package geospatial drives the external terrain processing that produces a basin's
// travel-time map and its classified area report.
package geospatial

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// Request carries everything the terrain processing needs for one basin
type Request struct {
	DEM              string
	ManningsGrid     string
	ManningsChannel  string
	ChannelWidth     string
	Threshold        float64
	AverageDischarge float64 // m^3/s
	OutletX          float64
	OutletY          float64
	TravelTimeMap    string
}

// Result is what the convolution needs from the terrain processing
type Result struct {
	TravelTimeMap string
	ReportRows    []string
}

// Collaborator prepares the travel-time report for a basin
type Collaborator interface {
	Prepare(ctx context.Context, req Request) (*Result, error)
}

// CollaboratorError reports which processing step failed
type CollaboratorError struct {
	Step string
	Err  error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("geospatial step %s failed: %v", e.Step, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// ReportFile is a Collaborator that reads a previously saved area report instead of
// running the terrain processing
type ReportFile struct {
	Path string
}

// Prepare implements Collaborator
func (r ReportFile) Prepare(_ context.Context, req Request) (*Result, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, &CollaboratorError{Step: "read report", Err: err}
	}
	defer f.Close()

	var rows []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		rows = append(rows, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, &CollaboratorError{Step: "read report", Err: err}
	}

	return &Result{TravelTimeMap: req.TravelTimeMap, ReportRows: rows}, nil
}

// SplitRows splits command output into report rows, dropping a trailing empty line
func SplitRows(out string) []string {
	rows := strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n")
	if n := len(rows); n > 0 && rows[n-1] == "" {
		rows = rows[:n-1]
	}
	return rows
}
