// Package calibrate fits the linear-reservoir routing constant to an observed
// discharge record by scoring simulated hydrographs over a range of candidates.
package calibrate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/clarkhydro/pkg/clark"
)

// ErrNoObservations is returned when there is nothing to compare against
var ErrNoObservations = errors.New("no observed discharge")

// Fit is the goodness of fit of one candidate routing constant
type Fit struct {
	RoutingConstant float64
	RMSE            float64
	MAE             float64
	// NSE is the Nash-Sutcliffe efficiency; 1 is a perfect fit, 0 is no better than the mean
	NSE         float64
	RSquared    float64
	PeakError   float64 // simulated minus observed peak
	SampleCount int
}

// Range returns lo, lo+step, ... up to and including hi (within half a step)
func Range(lo, hi, step float64) ([]float64, error) {
	if lo <= 0 || hi < lo || step <= 0 {
		return nil, fmt.Errorf("invalid range %v..%v step %v", lo, hi, step)
	}
	n := int(math.Floor((hi-lo)/step+0.5)) + 1
	ks := make([]float64, n)
	for i := range ks {
		ks[i] = lo + float64(i)*step
	}
	return ks, nil
}

// Score compares a simulated hydrograph with observations at the observed steps.
// Simulated steps beyond the series count as zero discharge.
func Score(sim, obs []clark.HydrographPoint) (Fit, error) {
	if len(obs) == 0 {
		return Fit{}, ErrNoObservations
	}

	byT := make(map[int]float64, len(sim))
	for _, p := range sim {
		byT[p.T] = p.Discharge
	}

	observed := make([]float64, len(obs))
	simulated := make([]float64, len(obs))
	for i, o := range obs {
		observed[i] = o.Discharge
		simulated[i] = byT[o.T]
	}

	n := float64(len(obs))
	fit := Fit{
		RMSE:        floats.Distance(simulated, observed, 2) / math.Sqrt(n),
		MAE:         floats.Distance(simulated, observed, 1) / n,
		PeakError:   floats.Max(simulated) - floats.Max(observed),
		SampleCount: len(obs),
	}

	mean := stat.Mean(observed, nil)
	var ssTot, ssRes float64
	for i := range observed {
		ssTot += (observed[i] - mean) * (observed[i] - mean)
		ssRes += (observed[i] - simulated[i]) * (observed[i] - simulated[i])
	}
	if ssTot > 0 {
		fit.NSE = 1 - ssRes/ssTot
		fit.RSquared = stat.RSquaredFrom(simulated, observed, nil)
	}
	return fit, nil
}

// GridSearch simulates every candidate k and returns the fits ordered from best
// (lowest RMSE) to worst. The unit scale is derived from each k unless base fixes it.
func GridSearch(ctx context.Context, curve []clark.TimeAreaEntry, rain []clark.RainfallEntry, obs []clark.HydrographPoint, base clark.Params, ks []float64, workers int) ([]Fit, error) {
	if len(obs) == 0 {
		return nil, ErrNoObservations
	}
	if workers < 1 {
		workers = 1
	}

	fits := make([]Fit, len(ks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, k := range ks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := base
			p.RoutingConstant = k
			p = p.Normalize()

			sim, err := clark.Convolve(curve, rain, p)
			if err != nil {
				return fmt.Errorf("k=%v: %w", k, err)
			}
			fit, err := Score(sim, obs)
			if err != nil {
				return err
			}
			fit.RoutingConstant = k
			fits[i] = fit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(fits, func(i, j int) bool {
		return fits[i].RMSE < fits[j].RMSE
	})
	return fits, nil
}
