package clark

// accumulator maps a global time step to the running sum of the contributions
// arriving at it. maxT is -1 until the first contribution is recorded.
type accumulator struct {
	sums []float64
	maxT int
}

func newAccumulator(horizon int) *accumulator {
	return &accumulator{
		sums: make([]float64, horizon+1),
		maxT: -1,
	}
}

func (a *accumulator) add(t int, q float64) {
	a.sums[t] += q
	if t > a.maxT {
		a.maxT = t
	}
}

func (a *accumulator) merge(b *accumulator) {
	for t := 0; t <= b.maxT; t++ {
		a.sums[t] += b.sums[t]
	}
	if b.maxT > a.maxT {
		a.maxT = b.maxT
	}
}

// points emits the gap-free series from t=0 to the last observed step
func (a *accumulator) points() []HydrographPoint {
	if a.maxT < 0 {
		return []HydrographPoint{{T: 0, Discharge: 0}}
	}
	out := make([]HydrographPoint, a.maxT+1)
	for t := range out {
		out[t] = HydrographPoint{T: t, Discharge: a.sums[t]}
	}
	return out
}
