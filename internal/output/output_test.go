package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chrissnell/clarkhydro/pkg/clark"
	"github.com/vmihailenco/msgpack/v5"
)

var samplePoints = []clark.HydrographPoint{{T: 0, Discharge: 0}, {T: 1, Discharge: 0.5}, {T: 2, Discharge: 0.25}}

func TestFormatFor(t *testing.T) {
	tests := map[string]Format{
		"q.csv":       FormatCSV,
		"Q.CSV":       FormatCSV,
		"q.json":      FormatJSON,
		"q.msgpack":   FormatMsgPack,
		"q.mp":        FormatMsgPack,
		"qtime":       FormatText,
		"qtime.txt":   FormatText,
		"dir.v2/qout": FormatText,
	}
	for path, want := range tests {
		if got := FormatFor(path); got != want {
			t.Errorf("%s: expected %s, got %s", path, want, got)
		}
	}
}

func TestWriteSeriesCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q.csv")

	if err := WriteSeries(path, samplePoints); err != nil {
		t.Fatalf("WriteSeries returned error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to read csv back: %v", err)
	}
	want := [][]string{{"time", "discharge"}, {"0", "0"}, {"1", "0.5"}, {"2", "0.25"}}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i := range want {
		if strings.Join(records[i], ",") != strings.Join(want[i], ",") {
			t.Errorf("record %d: expected %v, got %v", i, want[i], records[i])
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the output file in %s, found %d entries", dir, len(entries))
	}
}

func TestWriteSeriesText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qtime")
	if err := WriteSeries(path, samplePoints); err != nil {
		t.Fatalf("WriteSeries returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "0 0\n1 0.5\n2 0.25\n" {
		t.Errorf("unexpected text output %q", data)
	}
}

func TestEncodeSeriesStructured(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := EncodeSeries(&buf, FormatJSON, samplePoints); err != nil {
			t.Fatal(err)
		}
		var got []clark.HydrographPoint
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 || got[1] != samplePoints[1] {
			t.Errorf("unexpected decoded series %v", got)
		}
		if !strings.Contains(buf.String(), `"discharge"`) {
			t.Errorf("expected discharge key in %s", buf.String())
		}
	})

	t.Run("msgpack", func(t *testing.T) {
		var buf bytes.Buffer
		if err := EncodeSeries(&buf, FormatMsgPack, samplePoints); err != nil {
			t.Fatal(err)
		}
		var got []map[string]any
		if err := msgpack.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 points, got %d", len(got))
		}
		if _, ok := got[2]["discharge"]; !ok {
			t.Errorf("expected json field names in msgpack output, got %v", got[2])
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if err := EncodeSeries(&bytes.Buffer{}, Format("xml"), samplePoints); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestWritePlot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hydrograph.png")

	if err := WritePlot(path, samplePoints); err != nil {
		t.Fatalf("WritePlot returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("expected a PNG image")
	}

	if err := WritePlot(filepath.Join(dir, "hydrograph.bogus"), samplePoints); err == nil {
		t.Error("expected error for unsupported plot format")
	}
}

func TestNewPlotLabels(t *testing.T) {
	p, err := NewPlot(samplePoints)
	if err != nil {
		t.Fatal(err)
	}
	if p.Title.Text != "Hydrograph (Clark)" {
		t.Errorf("unexpected title %q", p.Title.Text)
	}
	if p.X.Label.Text != "Time" || p.Y.Label.Text != "Discharge" {
		t.Errorf("unexpected axis labels %q / %q", p.X.Label.Text, p.Y.Label.Text)
	}
}

func TestWriteSeriesAndPlot(t *testing.T) {
	dir := t.TempDir()
	series := filepath.Join(dir, "q.csv")
	img := filepath.Join(dir, "q.png")

	if err := Write(series, img, samplePoints); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	for _, path := range []string{series, img} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}
}

func TestWriteBadPlotLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	series := filepath.Join(dir, "q.csv")

	if err := Write(series, filepath.Join(dir, "q.bogus"), samplePoints); err == nil {
		t.Fatal("expected error for unsupported plot format")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty output directory, found %d entries", len(entries))
	}
}

func TestWriteSeriesFailureLeavesNoPlot(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "q.png")

	if err := Write(filepath.Join(dir, "missing", "q.csv"), img, samplePoints); err == nil {
		t.Fatal("expected error for unwritable series directory")
	}
	if _, err := os.Stat(img); !os.IsNotExist(err) {
		t.Errorf("plot must not be written when the series fails, stat err=%v", err)
	}
}

func TestCheckPlotPath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"hydrograph.png", false},
		{"hydrograph.SVG", false},
		{"hydrograph.pdf", false},
		{"hydrograph", false},
		{"hydrograph.bogus", true},
	}
	for _, tt := range tests {
		if err := CheckPlotPath(tt.path); (err != nil) != tt.wantErr {
			t.Errorf("CheckPlotPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
	}
}
