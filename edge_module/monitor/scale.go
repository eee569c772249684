package monitor

import (
	"errors"
	"fmt"
)

var ErrZeroSourceSpan = errors.New("source range has zero span")

// PointSlope maps x from [sMin, sMax] onto [tMin, tMax]. Values outside the source range extrapolate.
func PointSlope(x, sMin, sMax, tMin, tMax float64) float64 {
	return ((x-sMin)*(tMax-tMin))/(sMax-sMin) + tMin
}

type Range struct {
	Min, Max float64
}

// Scale is a validated point-slope transform.
type Scale struct {
	Source, Target Range
}

// DefaultScale maps a 16-bit register onto percent.
var DefaultScale = Scale{
	Source: Range{Min: 0, Max: 65535},
	Target: Range{Min: 0, Max: 100},
}

func (s Scale) Validate() error {
	if s.Source.Max == s.Source.Min {
		return fmt.Errorf("%w: [%g, %g]", ErrZeroSourceSpan, s.Source.Min, s.Source.Max)
	}
	return nil
}

func (s Scale) Apply(x float64) float64 {
	return PointSlope(x, s.Source.Min, s.Source.Max, s.Target.Min, s.Target.Max)
}
