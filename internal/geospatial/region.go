package geospatial

import (
	"fmt"
	"strconv"
	"strings"
)

// Region is the extent and resolution of the current GRASS computational region
type Region struct {
	North, South, West, East float64
	NSRes, EWRes             float64
}

// ParseRegion reads the "key: value" lines printed by g.region -p
func ParseRegion(out string) (Region, error) {
	var r Region
	fields := map[string]*float64{
		"north": &r.North,
		"south": &r.South,
		"west":  &r.West,
		"east":  &r.East,
		"nsres": &r.NSRes,
		"ewres": &r.EWRes,
	}
	found := make(map[string]bool, len(fields))

	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		dst, wanted := fields[key]
		if !wanted {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return Region{}, fmt.Errorf("invalid region %s %q: %w", key, strings.TrimSpace(value), err)
		}
		*dst = v
		found[key] = true
	}

	for key := range fields {
		if !found[key] {
			return Region{}, fmt.Errorf("region output has no %s", key)
		}
	}
	return r, nil
}
