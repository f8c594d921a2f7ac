package clark

import (
	"context"
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func referenceParams() Params {
	return Params{
		RoutingConstant: 1.2,
		UnitScale:       1000 / (1.2 * 3600),
		HorizonFactor:   20,
	}
}

func mustConvolve(t *testing.T, f []TimeAreaEntry, rain []RainfallEntry, p Params) []HydrographPoint {
	t.Helper()
	points, err := Convolve(f, rain, p)
	if err != nil {
		t.Fatalf("Convolve returned error: %v", err)
	}
	return points
}

func TestConvolveConcreteScenario(t *testing.T) {
	p := referenceParams()
	f := []TimeAreaEntry{{LagTime: 0, Area: 0}, {LagTime: 1, Area: 2}}
	rain := []RainfallEntry{{Time: 0, Intensity: 1}}

	points := mustConvolve(t, f, rain, p)

	// t=0: only the zero-area isochrone has arrived
	want0 := 0 * 1 * math.Exp(0) * p.UnitScale
	// t=1: zero-area isochrone decayed one step, second isochrone just arrived
	want1 := 0*1*math.Exp(-1/1.2)*p.UnitScale + 2*1*math.Exp(0)*p.UnitScale

	if math.Abs(points[0].Discharge-want0) > epsilon {
		t.Errorf("discharge(0): expected %v, got %v", want0, points[0].Discharge)
	}
	if math.Abs(points[1].Discharge-want1) > epsilon {
		t.Errorf("discharge(1): expected %v, got %v", want1, points[1].Discharge)
	}
	if math.Abs(want1-0.46296296296296297) > epsilon {
		t.Errorf("hand-computed discharge(1) drifted: %v", want1)
	}
}

func TestConvolveSeriesIsGapFree(t *testing.T) {
	tests := []struct {
		name string
		f    []TimeAreaEntry
		rain []RainfallEntry
	}{
		{
			name: "single pulse",
			f:    []TimeAreaEntry{{0, 0}, {0.513021, 3}, {1.539063, 5}},
			rain: []RainfallEntry{{0, 2}},
		},
		{
			name: "late storm",
			f:    []TimeAreaEntry{{0, 0}, {0.513021, 3}, {1.539063, 5}, {2.565105, 1}},
			rain: []RainfallEntry{{0, 0}, {1, 4}, {2, 6}, {3, 1}},
		},
		{
			name: "fractional rain times",
			f:    []TimeAreaEntry{{0, 1}, {2.5, 4}},
			rain: []RainfallEntry{{0.5, 1}, {1.25, 2}},
		},
	}

	p := referenceParams()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := mustConvolve(t, tt.f, tt.rain, p)
			horizon := p.HorizonFactor * len(tt.rain)

			for i, pt := range points {
				if pt.T != i {
					t.Fatalf("point %d has t=%d, expected consecutive steps from 0", i, pt.T)
				}
			}
			if last := points[len(points)-1].T; last > horizon {
				t.Errorf("last step %d exceeds horizon %d", last, horizon)
			}
		})
	}
}

func TestConvolveCausality(t *testing.T) {
	p := referenceParams()

	t.Run("nothing before the earliest arrival", func(t *testing.T) {
		f := []TimeAreaEntry{{0, 0}, {0.513021, 5}, {1.539063, 2}}
		rain := []RainfallEntry{{2, 3}, {3, 1}}
		points := mustConvolve(t, f, rain, p)

		// earliest non-zero arrival is 0.513021 + 2
		for _, pt := range points {
			if pt.T < 3 && pt.Discharge != 0 {
				t.Errorf("discharge(%d) = %v before any rain reached the outlet", pt.T, pt.Discharge)
			}
		}
		if points[3].Discharge == 0 {
			t.Errorf("expected discharge at t=3")
		}
	})

	t.Run("instant arrival at t=0", func(t *testing.T) {
		f := []TimeAreaEntry{{0, 4}}
		rain := []RainfallEntry{{0, 2}}
		points := mustConvolve(t, f, rain, p)

		want := 4 * 2 * p.UnitScale
		if math.Abs(points[0].Discharge-want) > epsilon {
			t.Errorf("discharge(0): expected %v, got %v", want, points[0].Discharge)
		}
	})
}

func TestConvolveZeroRainGivesZeroDischarge(t *testing.T) {
	f := []TimeAreaEntry{{0, 0}, {0.513021, 3}, {1.539063, 5}}
	rain := []RainfallEntry{{0, 0}, {1, 0}, {2, 0}}

	points := mustConvolve(t, f, rain, referenceParams())
	for _, pt := range points {
		if pt.Discharge != 0 {
			t.Errorf("discharge(%d) = %v, expected 0", pt.T, pt.Discharge)
		}
	}
}

func TestConvolveIsLinearInRainfall(t *testing.T) {
	f := []TimeAreaEntry{{0, 0}, {0.513021, 3}, {1.539063, 5}, {2.565105, 2}}
	rain := []RainfallEntry{{0, 1.5}, {1, 4}, {2, 0.5}}
	const c = 3.5

	scaled := make([]RainfallEntry, len(rain))
	for i, r := range rain {
		scaled[i] = RainfallEntry{Time: r.Time, Intensity: r.Intensity * c}
	}

	p := referenceParams()
	base := mustConvolve(t, f, rain, p)
	got := mustConvolve(t, f, scaled, p)

	if len(base) != len(got) {
		t.Fatalf("expected %d points, got %d", len(base), len(got))
	}
	for i := range base {
		want := base[i].Discharge * c
		if math.Abs(got[i].Discharge-want) > epsilon*math.Max(1, math.Abs(want)) {
			t.Errorf("point %d: expected %v, got %v", i, want, got[i].Discharge)
		}
	}
}

func TestConvolveReservoirImpulseResponse(t *testing.T) {
	p := referenceParams()
	rain := []RainfallEntry{{Time: 0, Intensity: 1}}

	t.Run("unit area", func(t *testing.T) {
		points := mustConvolve(t, []TimeAreaEntry{{0, 1}}, rain, p)
		if len(points) != p.HorizonFactor+1 {
			t.Fatalf("expected %d points, got %d", p.HorizonFactor+1, len(points))
		}
		for _, pt := range points {
			want := 1.0 * math.Exp(-float64(pt.T)/p.RoutingConstant) * p.UnitScale
			if math.Abs(pt.Discharge-want) > epsilon {
				t.Errorf("discharge(%d): expected %v, got %v", pt.T, want, pt.Discharge)
			}
		}
	})

	t.Run("zero-area curve is still convolved", func(t *testing.T) {
		points := mustConvolve(t, []TimeAreaEntry{{0, 0}}, rain, p)
		if len(points) != p.HorizonFactor+1 {
			t.Fatalf("expected %d points, got %d", p.HorizonFactor+1, len(points))
		}
		for _, pt := range points {
			if pt.Discharge != 0 {
				t.Errorf("discharge(%d) = %v, expected 0", pt.T, pt.Discharge)
			}
		}
	})
}

func TestConvolveEmptyRainfall(t *testing.T) {
	points := mustConvolve(t, []TimeAreaEntry{{0, 0}, {0.5, 3}}, nil, referenceParams())
	if len(points) != 1 {
		t.Fatalf("expected a single point, got %d", len(points))
	}
	if points[0].T != 0 || points[0].Discharge != 0 {
		t.Errorf("expected {0 0}, got %+v", points[0])
	}
}

func TestConvolveHorizonBound(t *testing.T) {
	f := []TimeAreaEntry{{0, 1}, {0.513021, 3}}
	p := referenceParams()
	for n := 1; n <= 5; n++ {
		rain := make([]RainfallEntry, n)
		for j := range rain {
			rain[j] = RainfallEntry{Time: float64(j), Intensity: 1}
		}
		points := mustConvolve(t, f, rain, p)
		if last := points[len(points)-1].T; last != 20*n {
			t.Errorf("n=%d: expected last step %d, got %d", n, 20*n, last)
		}
	}
}

func TestConvolveLagBeyondHorizon(t *testing.T) {
	p := referenceParams()
	rain := []RainfallEntry{{0, 1}}

	tests := []struct {
		name string
		lag  float64
	}{
		{"just past horizon", 20.5},
		{"beyond int range", 1e19},
		{"largest float", math.MaxFloat64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := mustConvolve(t, []TimeAreaEntry{{0, 0}, {tt.lag, 1}}, rain, p)
			for _, pt := range points {
				if pt.Discharge != 0 {
					t.Fatalf("lag %v must not reach the outlet within the horizon, got %+v", tt.lag, pt)
				}
			}
		})
	}
}

func TestConvolveLagAtHorizon(t *testing.T) {
	p := referenceParams()
	points := mustConvolve(t, []TimeAreaEntry{{0, 0}, {20, 2}}, []RainfallEntry{{0, 1}}, p)
	if len(points) != 21 {
		t.Fatalf("expected 21 points, got %d", len(points))
	}
	if got, want := points[20].Discharge, 2*p.UnitScale; math.Abs(got-want) > epsilon {
		t.Errorf("discharge(20) = %v, want %v", got, want)
	}
	if points[19].Discharge != 0 {
		t.Errorf("expected nothing before arrival, got %v", points[19].Discharge)
	}
}

func TestConvolveTraceMatchesAggregate(t *testing.T) {
	f := []TimeAreaEntry{{0, 1}, {1, 2}}
	rain := []RainfallEntry{{0, 1}}
	p := referenceParams()

	var trace []RoutedContribution
	points, err := ConvolveTrace(f, rain, p, func(c RoutedContribution) {
		trace = append(trace, c)
	})
	if err != nil {
		t.Fatalf("ConvolveTrace returned error: %v", err)
	}

	// 21 steps for the isochrone at lag 0, 20 for the one at lag 1
	if len(trace) != 41 {
		t.Fatalf("expected 41 contributions, got %d", len(trace))
	}

	sums := make(map[int]float64)
	for _, c := range trace {
		if float64(c.T) < c.SourceTime+c.RainTime {
			t.Errorf("contribution at t=%d precedes its arrival %v", c.T, c.SourceTime+c.RainTime)
		}
		sums[c.T] += c.Discharge
	}
	for _, pt := range points {
		if math.Abs(sums[pt.T]-pt.Discharge) > epsilon {
			t.Errorf("t=%d: trace sums to %v, series has %v", pt.T, sums[pt.T], pt.Discharge)
		}
	}
}

func TestConvolveParallelMatchesSerial(t *testing.T) {
	f := []TimeAreaEntry{{0, 0}}
	for i := 1; i <= 30; i++ {
		f = append(f, TimeAreaEntry{LagTime: float64(i) - 0.5, Area: float64(i%7) + 0.25})
	}
	rain := []RainfallEntry{{0, 2}, {1, 5}, {2, 3.5}, {3, 0}, {4, 1.25}}
	p := referenceParams()

	serial := mustConvolve(t, f, rain, p)

	for _, workers := range []int{0, 1, 2, 3, 8, 64} {
		parallel, err := ConvolveParallel(context.Background(), f, rain, p, workers)
		if err != nil {
			t.Fatalf("workers=%d: ConvolveParallel returned error: %v", workers, err)
		}
		if len(parallel) != len(serial) {
			t.Fatalf("workers=%d: expected %d points, got %d", workers, len(serial), len(parallel))
		}
		for i := range serial {
			if math.Abs(parallel[i].Discharge-serial[i].Discharge) > epsilon*math.Max(1, serial[i].Discharge) {
				t.Errorf("workers=%d point %d: expected %v, got %v", workers, i, serial[i].Discharge, parallel[i].Discharge)
			}
		}
	}
}

func TestConvolveParallelHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := []TimeAreaEntry{{0, 1}, {1, 1}, {2, 1}, {3, 1}}
	_, err := ConvolveParallel(ctx, f, []RainfallEntry{{0, 1}}, referenceParams(), 2)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestConvolveRejectsInvalidInput(t *testing.T) {
	p := referenceParams()
	tests := []struct {
		name   string
		f      []TimeAreaEntry
		rain   []RainfallEntry
		params Params
		want   error
	}{
		{
			name:   "curve not starting at zero",
			f:      []TimeAreaEntry{{1, 1}},
			rain:   []RainfallEntry{{0, 1}},
			params: p,
			want:   ErrInvalidInput,
		},
		{
			name:   "non increasing lag",
			f:      []TimeAreaEntry{{0, 0}, {1, 1}, {1, 2}},
			rain:   []RainfallEntry{{0, 1}},
			params: p,
			want:   ErrInvalidInput,
		},
		{
			name:   "negative area",
			f:      []TimeAreaEntry{{0, -1}},
			rain:   []RainfallEntry{{0, 1}},
			params: p,
			want:   ErrInvalidInput,
		},
		{
			name:   "unordered rain",
			f:      []TimeAreaEntry{{0, 1}},
			rain:   []RainfallEntry{{2, 1}, {1, 1}},
			params: p,
			want:   ErrInvalidInput,
		},
		{
			name:   "negative intensity",
			f:      []TimeAreaEntry{{0, 1}},
			rain:   []RainfallEntry{{0, -3}},
			params: p,
			want:   ErrInvalidInput,
		},
		{
			name:   "infinite lag",
			f:      []TimeAreaEntry{{0, 0}, {math.Inf(1), 1}},
			rain:   []RainfallEntry{{0, 1}},
			params: p,
			want:   ErrInvalidInput,
		},
		{
			name:   "zero routing constant",
			f:      []TimeAreaEntry{{0, 1}},
			rain:   []RainfallEntry{{0, 1}},
			params: Params{RoutingConstant: 0, UnitScale: 1, HorizonFactor: 20},
			want:   ErrInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convolve(tt.f, tt.rain, tt.params)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
