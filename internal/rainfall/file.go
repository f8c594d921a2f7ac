// Package rainfall loads effective-rainfall series from text files and weather
// station databases.
package rainfall

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chrissnell/clarkhydro/pkg/clark"
)

// LoadFile reads a rainfall series from a text file (see Parse)
func LoadFile(path string) ([]clark.RainfallEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rainfall file: %w", err)
	}
	defer f.Close()

	rain, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rain, nil
}

// Parse reads "time intensity" rows separated by whitespace, commas, semicolons or tabs.
// Blank lines and lines starting with # are ignored, and a single non-numeric header
// line before the first data row is tolerated.
func Parse(r io.Reader) ([]clark.RainfallEntry, error) {
	var rain []clark.RainfallEntry
	headerSeen := false

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.FieldsFunc(line, func(c rune) bool {
			return c == ',' || c == ';' || c == ' ' || c == '\t'
		})
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected time and intensity, got %q", lineNo, line)
		}

		t, errT := strconv.ParseFloat(fields[0], 64)
		v, errV := strconv.ParseFloat(fields[1], 64)
		if errT != nil || errV != nil {
			if len(rain) == 0 && !headerSeen {
				headerSeen = true
				continue
			}
			return nil, fmt.Errorf("line %d: non-numeric rainfall row %q", lineNo, line)
		}

		if t < 0 || v < 0 {
			return nil, fmt.Errorf("line %d: negative rainfall value", lineNo)
		}
		if n := len(rain); n > 0 && t < rain[n-1].Time {
			return nil, fmt.Errorf("line %d: time %v precedes previous row at %v", lineNo, t, rain[n-1].Time)
		}

		rain = append(rain, clark.RainfallEntry{Time: t, Intensity: v})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading rainfall: %w", err)
	}

	return rain, nil
}

// ApplyPhiIndex removes a constant loss rate from every pulse, leaving effective rainfall
func ApplyPhiIndex(rain []clark.RainfallEntry, loss float64) []clark.RainfallEntry {
	out := make([]clark.RainfallEntry, len(rain))
	for i, r := range rain {
		out[i] = clark.RainfallEntry{Time: r.Time, Intensity: max(0, r.Intensity-loss)}
	}
	return out
}
