package clark

import (
	"errors"
	"fmt"
)

const (
	// DefaultRoutingConstant is the linear-reservoir storage constant in hours
	DefaultRoutingConstant = 1.2

	// DefaultHorizonFactor sets the simulated horizon to this many steps per rainfall pulse
	DefaultHorizonFactor = 20

	secondsPerHour = 3600.0

	// km^2 * mm/h expressed in m^3/h
	areaDepthToVolume = 1000.0
)

// ErrInvalidParams is returned for routing parameters the engine cannot use
var ErrInvalidParams = errors.New("invalid routing parameters")

// Params holds the routing constants of the convolution
type Params struct {
	// RoutingConstant (k) of the linear reservoir, in hours
	RoutingConstant float64 `json:"routing_constant"`

	// UnitScale converts area*intensity into a volumetric flow rate.
	// Zero means "derive from RoutingConstant" (see UnitScaleFor).
	UnitScale float64 `json:"unit_scale"`

	// HorizonFactor multiplies the rainfall series length to give the last time step
	HorizonFactor int `json:"horizon_factor"`
}

// DefaultParams returns the reference routing: k = 1.2 h, scale 1000/(k*3600), horizon 20
func DefaultParams() Params {
	return Params{
		RoutingConstant: DefaultRoutingConstant,
		UnitScale:       UnitScaleFor(DefaultRoutingConstant),
		HorizonFactor:   DefaultHorizonFactor,
	}
}

// UnitScaleFor returns the reservoir outflow scale 1000/(k*3600) for a routing constant k
func UnitScaleFor(k float64) float64 {
	return areaDepthToVolume / (k * secondsPerHour)
}

// Normalize fills zero-valued fields from the defaults and the routing constant
func (p Params) Normalize() Params {
	if p.RoutingConstant == 0 {
		p.RoutingConstant = DefaultRoutingConstant
	}
	if p.UnitScale == 0 && p.RoutingConstant > 0 {
		p.UnitScale = UnitScaleFor(p.RoutingConstant)
	}
	if p.HorizonFactor == 0 {
		p.HorizonFactor = DefaultHorizonFactor
	}
	return p
}

// Validate checks that the parameters describe a usable reservoir
func (p Params) Validate() error {
	if p.RoutingConstant <= 0 {
		return fmt.Errorf("%w: routing constant must be positive, got %v", ErrInvalidParams, p.RoutingConstant)
	}
	if p.UnitScale < 0 {
		return fmt.Errorf("%w: unit scale must not be negative, got %v", ErrInvalidParams, p.UnitScale)
	}
	if p.HorizonFactor <= 0 {
		return fmt.Errorf("%w: horizon factor must be positive, got %d", ErrInvalidParams, p.HorizonFactor)
	}
	return nil
}

// Horizon returns T_max for a rainfall series of n pulses
func (p Params) Horizon(n int) int {
	return p.HorizonFactor * n
}
