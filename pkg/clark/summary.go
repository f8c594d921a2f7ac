package clark

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the shape of a hydrograph
type Summary struct {
	PeakDischarge float64 `json:"peak_discharge"`
	TimeToPeak    int     `json:"time_to_peak"`
	MeanDischarge float64 `json:"mean_discharge"`
	// Volume is the runoff volume in m^3, integrating discharge over hourly steps
	Volume float64 `json:"volume"`
}

// Summarize computes peak, time to peak, mean discharge and runoff volume
func Summarize(points []HydrographPoint) Summary {
	if len(points) == 0 {
		return Summary{}
	}

	ts := make([]float64, len(points))
	qs := make([]float64, len(points))
	for i, p := range points {
		ts[i] = float64(p.T) * secondsPerHour
		qs[i] = p.Discharge
	}

	peakIdx := floats.MaxIdx(qs)
	s := Summary{
		PeakDischarge: qs[peakIdx],
		TimeToPeak:    points[peakIdx].T,
		MeanDischarge: stat.Mean(qs, nil),
	}
	if len(points) > 1 {
		s.Volume = integrate.Trapezoidal(ts, qs)
	}
	return s
}
