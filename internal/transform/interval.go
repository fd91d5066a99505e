package transform

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/aotrack/internal/aoerr"
	"github.com/banshee-data/aotrack/internal/stats"
)

// IntervalKind selects how the display range is estimated.
type IntervalKind string

const (
	MinMax     IntervalKind = "minmax"
	ZScale     IntervalKind = "zscale"
	Percentile IntervalKind = "percentile"
)

// ParseInterval validates an interval name from a request.
func ParseInterval(s string) (IntervalKind, error) {
	switch k := IntervalKind(strings.ToLower(strings.TrimSpace(s))); k {
	case MinMax, ZScale, Percentile:
		return k, nil
	case "":
		return MinMax, nil
	default:
		return "", aoerr.InvalidParameter("invalid interval: %s", s)
	}
}

// ZScaleParams tunes the zscale estimator.
type ZScaleParams struct {
	NSamples      int     `json:"n_samples" yaml:"n_samples"`
	Contrast      float64 `json:"contrast" yaml:"contrast"`
	MaxReject     float64 `json:"max_reject" yaml:"max_reject"`
	MinNPixels    int     `json:"min_npixels" yaml:"min_npixels"`
	KRej          float64 `json:"krej" yaml:"krej"`
	MaxIterations int     `json:"max_iterations" yaml:"max_iterations"`
}

// DefaultZScaleParams are the conventional IRAF/astropy zscale settings.
func DefaultZScaleParams() ZScaleParams {
	return ZScaleParams{
		NSamples:      1000,
		Contrast:      0.25,
		MaxReject:     0.5,
		MinNPixels:    5,
		KRej:          2.5,
		MaxIterations: 5,
	}
}

// Validate checks the parameters are usable.
func (p ZScaleParams) Validate() error {
	switch {
	case p.NSamples < 1:
		return fmt.Errorf("n_samples must be positive, got %d", p.NSamples)
	case p.Contrast < 0:
		return fmt.Errorf("contrast must be non-negative, got %g", p.Contrast)
	case p.MaxReject < 0 || p.MaxReject > 1:
		return fmt.Errorf("max_reject must be between 0 and 1, got %g", p.MaxReject)
	case p.MinNPixels < 1:
		return fmt.Errorf("min_npixels must be positive, got %d", p.MinNPixels)
	case p.KRej <= 0:
		return fmt.Errorf("krej must be positive, got %g", p.KRej)
	case p.MaxIterations < 1:
		return fmt.Errorf("max_iterations must be positive, got %d", p.MaxIterations)
	}
	return nil
}

// Params carries the tunables of every interval kind.
type Params struct {
	// Percentile is the central percentage kept by the percentile interval.
	Percentile float64
	ZScale     ZScaleParams
}

// DefaultParams returns a 30% percentile window and default zscale settings.
func DefaultParams() Params {
	return Params{Percentile: 30, ZScale: DefaultZScaleParams()}
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// EstimateInterval computes the (low, high) display range of values. Only
// finite values are considered; when none remain the range is (NaN, NaN).
func EstimateInterval(kind IntervalKind, values []float64, p Params) (float64, float64, error) {
	vals := finite(values)
	switch kind {
	case MinMax:
		if len(vals) == 0 {
			return math.NaN(), math.NaN(), nil
		}
		return floats.Min(vals), floats.Max(vals), nil
	case Percentile:
		if p.Percentile <= 0 || p.Percentile > 100 {
			return 0, 0, fmt.Errorf("percentile must be in (0, 100], got %g", p.Percentile)
		}
		if len(vals) == 0 {
			return math.NaN(), math.NaN(), nil
		}
		sort.Float64s(vals)
		lower := (100 - p.Percentile) / 2
		upper := 100 - lower
		return stats.Percentile(vals, lower/100), stats.Percentile(vals, upper/100), nil
	case ZScale:
		if err := p.ZScale.Validate(); err != nil {
			return 0, 0, err
		}
		if len(vals) == 0 {
			return math.NaN(), math.NaN(), nil
		}
		lo, hi := zscale(vals, p.ZScale)
		return lo, hi, nil
	default:
		return 0, 0, aoerr.InvalidParameter("invalid interval: %s", kind)
	}
}

// zscale estimates a display range from a robust linear fit to the sorted
// sample. vals must be finite and non-empty.
func zscale(vals []float64, p ZScaleParams) (float64, float64) {
	stride := len(vals) / p.NSamples
	if stride < 1 {
		stride = 1
	}
	samples := make([]float64, 0, p.NSamples)
	for i := 0; i < len(vals) && len(samples) < p.NSamples; i += stride {
		samples = append(samples, vals[i])
	}
	sort.Float64s(samples)

	npix := len(samples)
	vmin, vmax := samples[0], samples[npix-1]

	minpix := max(p.MinNPixels, int(float64(npix)*p.MaxReject))
	ngrow := max(1, int(float64(npix)*0.01))

	x := make([]float64, npix)
	for i := range x {
		x[i] = float64(i)
	}
	weights := make([]float64, npix)
	badpix := make([]bool, npix)
	flat := make([]float64, npix)
	good := make([]float64, 0, npix)

	ngood := npix
	lastNGood := npix + 1
	var slope float64
	for iter := 0; iter < p.MaxIterations; iter++ {
		if ngood >= lastNGood || ngood < minpix {
			break
		}

		for i, bad := range badpix {
			if bad {
				weights[i] = 0
			} else {
				weights[i] = 1
			}
		}
		alpha, beta := stat.LinearRegression(x, samples, weights, false)
		slope = beta

		good = good[:0]
		for i := range samples {
			flat[i] = samples[i] - (alpha + beta*x[i])
			if !badpix[i] {
				good = append(good, flat[i])
			}
		}
		threshold := p.KRej * stat.PopStdDev(good, nil)
		for i, f := range flat {
			if f < -threshold || f > threshold {
				badpix[i] = true
			}
		}
		badpix = dilate(badpix, ngrow)

		lastNGood = ngood
		ngood = 0
		for _, bad := range badpix {
			if !bad {
				ngood++
			}
		}
	}

	if ngood >= minpix {
		if p.Contrast > 0 {
			slope /= p.Contrast
		}
		center := (npix - 1) / 2
		median := stats.Percentile(samples, 0.5)
		vmin = math.Max(vmin, median-float64(center-1)*slope)
		vmax = math.Min(vmax, median+float64(npix-center)*slope)
	}
	return vmin, vmax
}

// dilate grows the rejection mask with a length-n box kernel, centred the
// same way as a "same"-mode convolution.
func dilate(mask []bool, n int) []bool {
	out := make([]bool, len(mask))
	off := (n - 1) / 2
	for i := range mask {
		lo := max(0, i+off-(n-1))
		hi := min(len(mask)-1, i+off)
		for j := lo; j <= hi; j++ {
			if mask[j] {
				out[i] = true
				break
			}
		}
	}
	return out
}
