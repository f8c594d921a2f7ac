// Package output writes hydrographs to disk as time series and plots. Every writer
// goes through a temporary file that is renamed into place, so a failed write never
// leaves a partial artifact behind.
package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chrissnell/clarkhydro/pkg/clark"
	"github.com/vmihailenco/msgpack/v5"
)

// Format is an on-disk encoding of a discharge series
type Format string

const (
	FormatText    Format = "text"
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatMsgPack Format = "msgpack"
)

// FormatFor picks the series encoding from a file extension. Unknown extensions
// (including none) get the plain two-column text format.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".msgpack", ".mp":
		return FormatMsgPack
	default:
		return FormatText
	}
}

// WriteSeries writes the (time, discharge) series to path in the format implied by its extension
func WriteSeries(path string, points []clark.HydrographPoint) error {
	format := FormatFor(path)
	return writeAtomic(path, func(w io.Writer) error {
		return EncodeSeries(w, format, points)
	})
}

// EncodeSeries writes points to w in the given format
func EncodeSeries(w io.Writer, format Format, points []clark.HydrographPoint) error {
	switch format {
	case FormatCSV:
		return encodeCSV(w, points)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	case FormatMsgPack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		return enc.Encode(points)
	case FormatText:
		return encodeText(w, points)
	default:
		return fmt.Errorf("unsupported series format: %s", format)
	}
}

func encodeCSV(w io.Writer, points []clark.HydrographPoint) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"time", "discharge"}); err != nil {
		return err
	}
	for _, p := range points {
		record := []string{
			strconv.Itoa(p.T),
			formatDischarge(p.Discharge),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func encodeText(w io.Writer, points []clark.HydrographPoint) error {
	bw := bufio.NewWriter(w)
	for _, p := range points {
		if _, err := fmt.Fprintf(bw, "%d %s\n", p.T, formatDischarge(p.Discharge)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func formatDischarge(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// writeAtomic runs encode against a temp file next to path and renames it over path on success
func writeAtomic(path string, encode func(io.Writer) error) error {
	st, err := stage(path, encode)
	if err != nil {
		return err
	}
	return st.commit()
}

// staged is an encoded output waiting in a temp file beside its destination
type staged struct {
	tmp  string
	path string
}

func stage(path string, encode func(io.Writer) error) (*staged, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary output file: %w", err)
	}
	tmpName := tmp.Name()

	if err := encode(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return &staged{tmp: tmpName, path: path}, nil
}

func (s *staged) commit() error {
	if err := os.Rename(s.tmp, s.path); err != nil {
		os.Remove(s.tmp)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

func (s *staged) discard() {
	os.Remove(s.tmp)
}
