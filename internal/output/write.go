package output

import (
	"io"
	"os"

	"github.com/chrissnell/clarkhydro/pkg/clark"
)

// Write stores the discharge series at seriesPath and, when plotPath is set, the plot.
// Both artifacts are encoded before either is moved into place, so an error leaves
// neither behind.
func Write(seriesPath, plotPath string, points []clark.HydrographPoint) error {
	var plotTo io.WriterTo
	if plotPath != "" {
		wt, err := plotWriter(plotPath, points)
		if err != nil {
			return err
		}
		plotTo = wt
	}

	var pending []*staged
	discard := func() {
		for _, st := range pending {
			st.discard()
		}
	}

	if seriesPath != "" {
		format := FormatFor(seriesPath)
		st, err := stage(seriesPath, func(w io.Writer) error {
			return EncodeSeries(w, format, points)
		})
		if err != nil {
			return err
		}
		pending = append(pending, st)
	}
	if plotTo != nil {
		st, err := stage(plotPath, func(w io.Writer) error {
			_, err := plotTo.WriteTo(w)
			return err
		})
		if err != nil {
			discard()
			return err
		}
		pending = append(pending, st)
	}

	for i, st := range pending {
		if err := st.commit(); err != nil {
			for _, done := range pending[:i] {
				os.Remove(done.path)
			}
			for _, rest := range pending[i+1:] {
				rest.discard()
			}
			return err
		}
	}
	return nil
}
