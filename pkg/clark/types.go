package clark

// TimeAreaEntry is one point of a basin's time-area curve: the area draining to the
// outlet at the given travel time. LagTime is in hours, Area in square kilometers.
type TimeAreaEntry struct {
	LagTime float64 `json:"lag_time"`
	Area    float64 `json:"area"`
}

// RainfallEntry is one effective-rainfall pulse starting at Time (hours) with the
// given Intensity (mm/h)
type RainfallEntry struct {
	Time      float64 `json:"time"`
	Intensity float64 `json:"intensity"`
}

// RoutedContribution is the share of a single rainfall pulse, routed through one
// isochrone and the reservoir, that arrives at global step T
type RoutedContribution struct {
	T          int
	SourceTime float64
	RainTime   float64
	Discharge  float64
}

// HydrographPoint is one sample of the output discharge series (m^3/s)
type HydrographPoint struct {
	T         int     `json:"t"`
	Discharge float64 `json:"discharge"`
}
