package output

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"github.com/chrissnell/clarkhydro/internal/constants"
	"github.com/chrissnell/clarkhydro/pkg/clark"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 5 * vg.Inch
)

// WritePlot renders the hydrograph as a line plot. The image format follows the file
// extension (png, svg, pdf, ...), defaulting to png.
func WritePlot(path string, points []clark.HydrographPoint) error {
	wt, err := plotWriter(path, points)
	if err != nil {
		return err
	}
	return writeAtomic(path, func(w io.Writer) error {
		_, err := wt.WriteTo(w)
		return err
	})
}

// CheckPlotPath reports whether the extension of path names an image format the
// plotter can produce
func CheckPlotPath(path string) error {
	format := plotFormat(path)
	if _, err := plot.New().WriterTo(plotWidth, plotHeight, format); err != nil {
		return fmt.Errorf("unsupported plot format %q: %w", format, err)
	}
	return nil
}

func plotFormat(path string) string {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		format = "png"
	}
	return format
}

// plotWriter builds the plot and resolves its encoder without touching the filesystem
func plotWriter(path string, points []clark.HydrographPoint) (io.WriterTo, error) {
	p, err := NewPlot(points)
	if err != nil {
		return nil, err
	}
	format := plotFormat(path)
	wt, err := p.WriterTo(plotWidth, plotHeight, format)
	if err != nil {
		return nil, fmt.Errorf("unsupported plot format %q: %w", format, err)
	}
	return wt, nil
}

// NewPlot builds the discharge-vs-time plot
func NewPlot(points []clark.HydrographPoint) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = constants.PlotTitle
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Discharge"
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = float64(pt.T)
		xys[i].Y = pt.Discharge
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("failed to build hydrograph line: %w", err)
	}
	line.Color = color.RGBA{B: 255, A: 255}
	p.Add(line)

	return p, nil
}
