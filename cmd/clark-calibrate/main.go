package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/chrissnell/clarkhydro/internal/calibrate"
	"github.com/chrissnell/clarkhydro/internal/geospatial"
	"github.com/chrissnell/clarkhydro/internal/log"
	"github.com/chrissnell/clarkhydro/internal/pipeline"
	"github.com/chrissnell/clarkhydro/internal/rainfall"
	"github.com/chrissnell/clarkhydro/pkg/clark"
)

func main() {
	// Command line flags
	var (
		report     = flag.String("report", "", "Saved r.report output describing the basin (required)")
		erain      = flag.String("erain", "", "Effective rainfall file (required)")
		observed   = flag.String("observed", "", "Observed discharge: time,discharge rows, e.g. a clarkhydro .csv (required)")
		classWidth = flag.Float64("class-width", 0, "Hours per travel-time class (default 1.026042)")
		loss       = flag.Float64("loss", 0, "Constant loss rate (phi-index) subtracted from every pulse")
		unitScale  = flag.Float64("unit-scale", 0, "Fixed discharge scale; 0 derives it from each k")
		kMin       = flag.Float64("kmin", 0.2, "Smallest routing constant to try (hours)")
		kMax       = flag.Float64("kmax", 5, "Largest routing constant to try (hours)")
		kStep      = flag.Float64("kstep", 0.1, "Routing constant step (hours)")
		workers    = flag.Int("workers", 4, "Candidates simulated concurrently")
		top        = flag.Int("top", 10, "Number of candidates to print")
		csvOutput  = flag.String("csv", "", "Optional CSV output file path")
		debug      = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if *report == "" || *erain == "" || *observed == "" {
		fmt.Fprintf(os.Stderr, "Error: -report, -erain and -observed are required\n")
		flag.Usage()
		os.Exit(2)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	logger := log.GetSugaredLogger()

	curve, err := pipeline.BuildCurve(ctx, geospatial.ReportFile{Path: *report}, geospatial.Request{}, *classWidth, logger)
	if err != nil {
		log.Fatalf("Error building time-area curve: %v", err)
	}

	rain, err := rainfall.LoadFile(*erain)
	if err != nil {
		log.Fatalf("Error loading rainfall: %v", err)
	}
	if *loss > 0 {
		rain = rainfall.ApplyPhiIndex(rain, *loss)
	}

	obs, err := loadObserved(*observed)
	if err != nil {
		log.Fatalf("Error loading observed discharge: %v", err)
	}

	ks, err := calibrate.Range(*kMin, *kMax, *kStep)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("Clark Routing Constant Calibration\n")
	fmt.Printf("==================================\n\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Curve entries: %d\n", len(curve.Entries))
	fmt.Printf("  Rain pulses: %d\n", len(rain))
	fmt.Printf("  Observations: %d\n", len(obs))
	fmt.Printf("  Candidates: %d (k %.2f..%.2f h)\n\n", len(ks), *kMin, *kMax)

	fits, err := calibrate.GridSearch(ctx, curve.Entries, rain, obs, clark.Params{UnitScale: *unitScale}, ks, *workers)
	if err != nil {
		log.Fatalf("Calibration failed: %v", err)
	}

	displayFits(fits, *top)

	// Optionally export to CSV
	if *csvOutput != "" {
		if err := exportCSV(*csvOutput, fits); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
		} else {
			fmt.Printf("\nResults exported to: %s\n", *csvOutput)
		}
	}
}

// loadObserved reads two numeric columns; times are rounded to whole hourly steps
func loadObserved(path string) ([]clark.HydrographPoint, error) {
	rows, err := rainfall.LoadFile(path)
	if err != nil {
		return nil, err
	}
	obs := make([]clark.HydrographPoint, len(rows))
	for i, r := range rows {
		obs[i] = clark.HydrographPoint{T: int(math.Round(r.Time)), Discharge: r.Intensity}
	}
	return obs, nil
}

func displayFits(fits []calibrate.Fit, top int) {
	fmt.Printf("%-8s | %10s | %10s | %8s | %8s | %10s\n", "k (h)", "RMSE", "MAE", "NSE", "R²", "Peak err")
	fmt.Printf("---------+------------+------------+----------+----------+------------\n")

	for i, f := range fits {
		if i >= top {
			break
		}
		marker := ""
		if i == 0 {
			marker = " <- BEST"
		}
		fmt.Printf("%-8.3f | %10.4f | %10.4f | %8.4f | %8.4f | %10.4f%s\n",
			f.RoutingConstant, f.RMSE, f.MAE, f.NSE, f.RSquared, f.PeakError, marker)
	}

	best := fits[0]
	fmt.Printf("\nRecommendation:\n")
	fmt.Printf("  Routing constant k = %.3f h (unit scale %.6f)\n",
		best.RoutingConstant, clark.UnitScaleFor(best.RoutingConstant))
	switch {
	case best.NSE < 0:
		fmt.Printf("  WARNING: NSE %.3f is below zero; the mean flow predicts better than any k tried\n", best.NSE)
	case best.NSE < 0.5:
		fmt.Printf("  Weak fit (NSE %.3f); check the loss rate and the time-area report\n", best.NSE)
	default:
		fmt.Printf("  Good fit (NSE %.3f)\n", best.NSE)
	}
}

func exportCSV(filename string, fits []calibrate.Fit) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"k_hours", "rmse", "mae", "nse", "r_squared", "peak_error", "samples"}
	if err := writer.Write(header); err != nil {
		return err
	}

	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, f := range fits {
		record := []string{
			ff(f.RoutingConstant),
			ff(f.RMSE),
			ff(f.MAE),
			ff(f.NSE),
			ff(f.RSquared),
			ff(f.PeakError),
			strconv.Itoa(f.SampleCount),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}
