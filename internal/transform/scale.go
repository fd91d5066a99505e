package transform

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/banshee-data/aotrack/internal/aoerr"
)

// ScaleKind selects the display transform applied after clipping.
type ScaleKind string

const (
	Linear  ScaleKind = "linear"
	Log     ScaleKind = "log"
	Pow     ScaleKind = "pow"
	Sqrt    ScaleKind = "sqrt"
	Squared ScaleKind = "squared"
	Asinh   ScaleKind = "asinh"
	Sinh    ScaleKind = "sinh"
	HistEq  ScaleKind = "histogram-equalization"
	Exp     ScaleKind = "exp"
)

// histEqBins is the bin count of the equalisation histogram.
const histEqBins = 256

// ParseScale validates a scale name from a request. The legacy names
// "histogram equalization" and "logexp" are accepted.
func ParseScale(s string) (ScaleKind, error) {
	switch k := ScaleKind(strings.ToLower(strings.TrimSpace(s))); k {
	case Linear, Log, Pow, Sqrt, Squared, Asinh, Sinh, HistEq, Exp:
		return k, nil
	case "histogram equalization", "histogram_equalization":
		return HistEq, nil
	case "logexp":
		return Exp, nil
	case "":
		return Linear, nil
	default:
		return "", aoerr.InvalidParameter("invalid scale: %s", s)
	}
}

// Clip clamps values into [low, high] in a new slice. NaN stays NaN, and a
// NaN bound leaves values untouched on that side.
func Clip(values []float64, low, high float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v < low {
			v = low
		}
		if v > high {
			v = high
		}
		out[i] = v
	}
	return out
}

// ApplyScale applies kind element-wise and returns a new slice.
func ApplyScale(kind ScaleKind, values []float64) ([]float64, error) {
	var f func(float64) float64
	switch kind {
	case Linear:
		return append([]float64(nil), values...), nil
	case Log:
		f = math.Log1p
	case Pow, Squared:
		f = func(x float64) float64 { return x * x }
	case Sqrt:
		f = math.Sqrt
	case Asinh:
		f = math.Asinh
	case Sinh:
		f = math.Sinh
	case Exp:
		f = math.Exp
	case HistEq:
		return equalize(values)
	default:
		return nil, aoerr.InvalidParameter("invalid scale: %s", kind)
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = f(v)
	}
	return out, nil
}

// equalize maps values through the cumulative distribution of a 256-bin
// histogram of the finite input, scaled to [0, 255].
func equalize(values []float64) ([]float64, error) {
	vals := finite(values)
	out := make([]float64, len(values))
	if len(vals) == 0 {
		// Empty CDF: nothing finite to map, NaN stays NaN.
		for i, v := range values {
			if math.IsNaN(v) {
				out[i] = math.NaN()
			}
		}
		return out, nil
	}

	lo, hi := floats.Min(vals), floats.Max(vals)
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	width := (hi - lo) / histEqBins

	counts := make([]float64, histEqBins)
	for _, v := range vals {
		b := int((v - lo) / width)
		if b >= histEqBins {
			b = histEqBins - 1
		}
		if b < 0 {
			b = 0
		}
		counts[b]++
	}
	cdf := make([]float64, histEqBins)
	floats.CumSum(cdf, counts)
	total := cdf[histEqBins-1]
	if total == 0 {
		return out, nil
	}
	floats.Scale(255/total, cdf)

	edges := make([]float64, histEqBins)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(edges, cdf); err != nil {
		return nil, fmt.Errorf("fit equalisation curve: %w", err)
	}
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = math.NaN()
		case v <= edges[0]:
			out[i] = cdf[0]
		case v >= edges[histEqBins-1]:
			out[i] = cdf[histEqBins-1]
		default:
			out[i] = pl.Predict(v)
		}
	}
	return out, nil
}
