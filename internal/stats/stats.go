// Package stats reduces extracted telemetry slices to summary records and
// histograms.
//
// Reductions are NaN-naive: a single NaN in the input makes every field of
// the summary NaN, which serialises as null. Histograms reject non-finite
// input outright.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/aotrack/internal/ndarray"
)

// Summary is the fixed stat record returned by the stats endpoints.
type Summary struct {
	Min      ndarray.Float `json:"min"`
	Max      ndarray.Float `json:"max"`
	Mean     ndarray.Float `json:"mean"`
	Median   ndarray.Float `json:"median"`
	Std      ndarray.Float `json:"std"`
	Variance ndarray.Float `json:"variance"`
}

// PairSummary holds per-component summaries of a dual (x, y) measurement.
type PairSummary struct {
	Min      [2]ndarray.Float `json:"min"`
	Max      [2]ndarray.Float `json:"max"`
	Mean     [2]ndarray.Float `json:"mean"`
	Median   [2]ndarray.Float `json:"median"`
	Std      [2]ndarray.Float `json:"std"`
	Variance [2]ndarray.Float `json:"variance"`
}

func nanSummary() Summary {
	n := ndarray.Float(math.NaN())
	return Summary{Min: n, Max: n, Mean: n, Median: n, Std: n, Variance: n}
}

// Summarize computes min, max, mean, median, population std and variance.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return nanSummary()
	}
	for _, v := range values {
		if math.IsNaN(v) {
			return nanSummary()
		}
	}

	mean, variance := stat.PopMeanVariance(values, nil)
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	return Summary{
		Min:      ndarray.Float(floats.Min(values)),
		Max:      ndarray.Float(floats.Max(values)),
		Mean:     ndarray.Float(mean),
		Median:   ndarray.Float(Percentile(sorted, 0.5)),
		Std:      ndarray.Float(math.Sqrt(variance)),
		Variance: ndarray.Float(variance),
	}
}

// SummarizePair summarises each component independently.
func SummarizePair(x, y []float64) PairSummary {
	sx, sy := Summarize(x), Summarize(y)
	return PairSummary{
		Min:      [2]ndarray.Float{sx.Min, sy.Min},
		Max:      [2]ndarray.Float{sx.Max, sy.Max},
		Mean:     [2]ndarray.Float{sx.Mean, sy.Mean},
		Median:   [2]ndarray.Float{sx.Median, sy.Median},
		Std:      [2]ndarray.Float{sx.Std, sy.Std},
		Variance: [2]ndarray.Float{sx.Variance, sy.Variance},
	}
}

// Percentile returns the p-quantile (p in [0, 1]) of sorted data, linearly
// interpolating between the two closest ranks at position p*(n-1).
// It returns NaN for empty input.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	h := p * float64(n-1)
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= n {
		return sorted[n-1]
	}
	frac := h - lo
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}

// ErrNonFinite is returned by Histogram when the input contains NaN or ±Inf.
var ErrNonFinite = errors.New("histogram input contains non-finite values")

// Histogram bins values into the given number of equal-width bins spanning
// [min, max]. The last bin is closed on the right. A constant input spans
// [v-0.5, v+0.5]. It returns the counts and the bins+1 edges.
func Histogram(values []float64, bins int) ([]int, []float64, error) {
	if bins < 1 {
		return nil, nil, fmt.Errorf("histogram needs at least one bin, got %d", bins)
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, ErrNonFinite
		}
	}

	lo, hi := 0.0, 1.0
	if len(values) > 0 {
		lo, hi = floats.Min(values), floats.Max(values)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	edges := make([]float64, bins+1)
	floats.Span(edges, lo, hi)

	counts := make([]int, bins)
	if len(values) == 0 {
		return counts, edges, nil
	}

	// stat.Histogram treats the last divider as exclusive; nudge it so the
	// maximum lands in the final bin.
	dividers := append([]float64(nil), edges...)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	for i, c := range stat.Histogram(nil, dividers, sorted, nil) {
		counts[i] = int(c)
	}
	return counts, edges, nil
}
