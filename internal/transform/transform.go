// Package transform turns raw telemetry windows into display-ready values:
// estimate an interval, clip to it, then apply a scale function.
package transform

import (
	"fmt"
	"math"

	"github.com/banshee-data/aotrack/internal/aoerr"
)

// Spec is the per-request transform selection.
type Spec struct {
	Interval IntervalKind
	Scale    ScaleKind
}

// DefaultSpec is minmax + linear.
var DefaultSpec = Spec{Interval: MinMax, Scale: Linear}

// ParseSpec validates both names before any data is touched. Empty names
// fall back to the defaults.
func ParseSpec(interval, scale string) (Spec, error) {
	ik, err := ParseInterval(interval)
	if err != nil {
		return Spec{}, err
	}
	sk, err := ParseScale(scale)
	if err != nil {
		return Spec{}, err
	}
	return Spec{Interval: ik, Scale: sk}, nil
}

// Result is a transformed buffer plus the interval used to clip it.
type Result struct {
	Values []float64
	Low    float64
	High   float64
}

// Transform estimates the interval of values, clips to it and applies the
// scale. The input is not modified.
func Transform(values []float64, spec Spec, p Params) (Result, error) {
	low, high, err := EstimateInterval(spec.Interval, values, p)
	if err != nil {
		if aoerr.IsClientError(err) {
			return Result{}, err
		}
		return Result{}, aoerr.TransformFailure(err)
	}
	if math.IsInf(low, 0) || math.IsInf(high, 0) || low > high {
		return Result{}, aoerr.TransformFailure(errInterval{low, high})
	}

	scaled, err := ApplyScale(spec.Scale, Clip(values, low, high))
	if err != nil {
		if aoerr.IsClientError(err) {
			return Result{}, err
		}
		return Result{}, aoerr.TransformFailure(err)
	}
	return Result{Values: scaled, Low: low, High: high}, nil
}

type errInterval struct{ low, high float64 }

func (e errInterval) Error() string {
	return fmt.Sprintf("degenerate interval [%g, %g]", e.low, e.high)
}
