// Package timearea turns a classified travel-time report into the time-area curve
// consumed by the Clark convolution.
package timearea

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/chrissnell/clarkhydro/pkg/clark"
)

// DefaultClassWidth converts a travel-time class index into hours
const DefaultClassWidth = 1.026042

// ErrEmptyCurve means the report held no usable class counts. The curve returned with it
// is the single zero entry, which is still a valid convolution input.
var ErrEmptyCurve = errors.New("time-area curve is empty")

// ParseReport extracts the per-class counts from raw report rows, in order.
// Rows that do not end in a non-negative number are skipped and counted, as are the
// no-data ("*") and TOTAL rows.
func ParseReport(rows []string) (counts []float64, skipped int) {
	for _, row := range rows {
		v, ok := parseRow(row)
		if !ok {
			if strings.TrimSpace(row) != "" {
				skipped++
			}
			continue
		}
		counts = append(counts, v)
	}
	return counts, skipped
}

// parseRow reads a row like "|0-1 . . . . |  12.5|" or "0-1 : 12.5"
func parseRow(row string) (float64, bool) {
	row = strings.TrimSpace(row)
	if row == "" {
		return 0, false
	}

	sep := "|"
	if !strings.Contains(row, sep) {
		sep = ":"
	}

	var cells []string
	for _, c := range strings.Split(row, sep) {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	if len(cells) == 0 {
		return 0, false
	}

	label := strings.Trim(cells[0], " .")
	if label == "*" || strings.EqualFold(label, "total") {
		return 0, false
	}

	raw := strings.ReplaceAll(cells[len(cells)-1], ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// BuildCurve prepends the zero entry and assigns each class count the midpoint of its
// travel-time class: class i spans [(i-1)*unitFactor, i*unitFactor], so its
// representative lag is the mean of the two boundaries.
func BuildCurve(counts []float64, unitFactor float64) ([]clark.TimeAreaEntry, error) {
	curve := make([]clark.TimeAreaEntry, 1, len(counts)+1)
	curve[0] = clark.TimeAreaEntry{LagTime: 0, Area: 0}

	prevShifted := 0.0
	for i, area := range counts {
		shifted := float64(i+1) * unitFactor
		curve = append(curve, clark.TimeAreaEntry{
			LagTime: (shifted + prevShifted) / 2,
			Area:    area,
		})
		prevShifted = shifted
	}

	if len(counts) == 0 {
		return curve, ErrEmptyCurve
	}
	return curve, nil
}

// FromReport parses rows and builds the curve in one step. skipped is the number of
// malformed rows dropped; err is ErrEmptyCurve when nothing usable remained.
func FromReport(rows []string, unitFactor float64) (curve []clark.TimeAreaEntry, skipped int, err error) {
	counts, skipped := ParseReport(rows)
	curve, err = BuildCurve(counts, unitFactor)
	return curve, skipped, err
}
