// Package clark implements the Clark unit-hydrograph convolution: a basin's time-area
// curve is combined with an effective-rainfall series and routed through a single
// linear reservoir to produce the discharge at the outlet.
package clark

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// ErrInvalidInput is returned when a curve or rainfall series breaks its ordering or sign rules
var ErrInvalidInput = errors.New("invalid convolution input")

// Convolve routes every rainfall pulse through every isochrone of the curve and sums
// the contributions arriving at each integer time step in [0, HorizonFactor*len(rain)].
//
// The returned series starts at t=0 and has one point per step up to the last step that
// received a contribution. A run with no contributions at all (for example an empty
// rainfall series) yields the single point {0, 0}.
func Convolve(f []TimeAreaEntry, rain []RainfallEntry, p Params) ([]HydrographPoint, error) {
	return ConvolveTrace(f, rain, p, nil)
}

// ConvolveTrace is Convolve with every individual contribution reported to fn as it is
// computed. fn may be nil.
func ConvolveTrace(f []TimeAreaEntry, rain []RainfallEntry, p Params, fn func(RoutedContribution)) ([]HydrographPoint, error) {
	if err := checkInputs(f, rain, p); err != nil {
		return nil, err
	}

	acc := newAccumulator(p.Horizon(len(rain)))
	for _, entry := range f {
		routeEntry(acc, entry, rain, p, fn)
	}
	return acc.points(), nil
}

// ConvolveParallel computes the same series as Convolve with the curve split across
// workers. Each worker sums into its own buffer; buffers are merged in curve order.
func ConvolveParallel(ctx context.Context, f []TimeAreaEntry, rain []RainfallEntry, p Params, workers int) ([]HydrographPoint, error) {
	if err := checkInputs(f, rain, p); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(f) {
		workers = len(f)
	}
	if workers <= 1 {
		return Convolve(f, rain, p)
	}

	horizon := p.Horizon(len(rain))
	partials := make([]*accumulator, workers)
	chunk := (len(f) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(f))
		acc := newAccumulator(horizon)
		partials[w] = acc

		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				routeEntry(acc, f[i], rain, p, nil)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := newAccumulator(horizon)
	for _, acc := range partials {
		total.merge(acc)
	}
	return total.points(), nil
}

// routeEntry adds the response of one isochrone to every rainfall pulse into acc
func routeEntry(acc *accumulator, entry TimeAreaEntry, rain []RainfallEntry, p Params, fn func(RoutedContribution)) {
	horizon := len(acc.sums) - 1
	for _, r := range rain {
		arrival := entry.LagTime + r.Time
		if arrival > float64(horizon) {
			continue
		}
		first := int(math.Ceil(arrival))
		if first < 0 {
			first = 0
		}
		for t := first; t <= horizon; t++ {
			q := entry.Area * r.Intensity * math.Exp(-(float64(t)-arrival)/p.RoutingConstant) * p.UnitScale
			acc.add(t, q)
			if fn != nil {
				fn(RoutedContribution{T: t, SourceTime: entry.LagTime, RainTime: r.Time, Discharge: q})
			}
		}
	}
}

func checkInputs(f []TimeAreaEntry, rain []RainfallEntry, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := ValidateCurve(f); err != nil {
		return err
	}
	return ValidateRainfall(rain)
}

// ValidateCurve checks that lags start at zero and strictly increase and that no area is negative
func ValidateCurve(f []TimeAreaEntry) error {
	for i, e := range f {
		if math.IsNaN(e.LagTime) || math.IsNaN(e.Area) || math.IsInf(e.LagTime, 0) || math.IsInf(e.Area, 0) {
			return fmt.Errorf("%w: curve entry %d is not a finite number", ErrInvalidInput, i)
		}
		if e.Area < 0 {
			return fmt.Errorf("%w: curve entry %d has negative area %v", ErrInvalidInput, i, e.Area)
		}
		if i == 0 {
			if e.LagTime != 0 {
				return fmt.Errorf("%w: curve must start at lag 0, got %v", ErrInvalidInput, e.LagTime)
			}
			continue
		}
		if e.LagTime <= f[i-1].LagTime {
			return fmt.Errorf("%w: curve lag %v at entry %d does not increase", ErrInvalidInput, e.LagTime, i)
		}
	}
	return nil
}

// ValidateRainfall checks that pulses are non-negative and ordered by time
func ValidateRainfall(rain []RainfallEntry) error {
	for j, r := range rain {
		if math.IsNaN(r.Time) || math.IsNaN(r.Intensity) || math.IsInf(r.Time, 0) || math.IsInf(r.Intensity, 0) {
			return fmt.Errorf("%w: rainfall pulse %d is not a finite number", ErrInvalidInput, j)
		}
		if r.Time < 0 || r.Intensity < 0 {
			return fmt.Errorf("%w: rainfall pulse %d is negative", ErrInvalidInput, j)
		}
		if j > 0 && r.Time < rain[j-1].Time {
			return fmt.Errorf("%w: rainfall pulse %d at %v precedes the previous pulse", ErrInvalidInput, j, r.Time)
		}
	}
	return nil
}
