package transform

import (
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aotrack/internal/aoerr"
)

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestParseSpec(t *testing.T) {
	t.Parallel()
	tests := []struct {
		interval, scale string
		want            Spec
		wantErr         bool
	}{
		{"", "", Spec{MinMax, Linear}, false},
		{"zscale", "log", Spec{ZScale, Log}, false},
		{"PERCENTILE", "sqrt", Spec{Percentile, Sqrt}, false},
		{"minmax", "histogram equalization", Spec{MinMax, HistEq}, false},
		{"minmax", "histogram-equalization", Spec{MinMax, HistEq}, false},
		{"minmax", "logexp", Spec{MinMax, Exp}, false},
		{"minmax", "squared", Spec{MinMax, Squared}, false},
		{"minmax", "pow", Spec{MinMax, Pow}, false},
		{"median", "linear", Spec{}, true},
		{"minmax", "cubic", Spec{}, true},
	}
	for _, tt := range tests {
		got, err := ParseSpec(tt.interval, tt.scale)
		if tt.wantErr {
			require.Error(t, err, "%s/%s", tt.interval, tt.scale)
			assert.Equal(t, http.StatusBadRequest, aoerr.HTTPStatus(err))
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestEstimateInterval_MinMaxIgnoresNaN(t *testing.T) {
	t.Parallel()
	lo, hi, err := EstimateInterval(MinMax, []float64{3, math.NaN(), -2, math.Inf(1), 7}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, -2.0, lo)
	assert.Equal(t, 7.0, hi)
}

func TestEstimateInterval_AllNaN(t *testing.T) {
	t.Parallel()
	for _, k := range []IntervalKind{MinMax, Percentile, ZScale} {
		lo, hi, err := EstimateInterval(k, []float64{math.NaN(), math.NaN()}, DefaultParams())
		require.NoError(t, err)
		assert.True(t, math.IsNaN(lo) && math.IsNaN(hi), "kind %s", k)
	}
}

func TestEstimateInterval_Percentile(t *testing.T) {
	t.Parallel()
	lo, hi, err := EstimateInterval(Percentile, ramp(101), DefaultParams())
	require.NoError(t, err)
	assert.InDelta(t, 35.0, lo, 1e-9)
	assert.InDelta(t, 65.0, hi, 1e-9)

	p := DefaultParams()
	p.Percentile = 90
	lo, hi, err = EstimateInterval(Percentile, ramp(101), p)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, lo, 1e-9)
	assert.InDelta(t, 95.0, hi, 1e-9)

	p.Percentile = 0
	_, _, err = EstimateInterval(Percentile, ramp(10), p)
	assert.Error(t, err)
}

func TestEstimateInterval_ZScaleRamp(t *testing.T) {
	t.Parallel()
	lo, hi, err := EstimateInterval(ZScale, ramp(100), DefaultParams())
	require.NoError(t, err)
	assert.InDelta(t, 0.0, lo, 1e-9)
	assert.InDelta(t, 99.0, hi, 1e-9)
}

func TestEstimateInterval_ZScaleRejectsOutlier(t *testing.T) {
	t.Parallel()
	vals := append(ramp(100), 1e6)
	lo, hi, err := EstimateInterval(ZScale, vals, DefaultParams())
	require.NoError(t, err)
	assert.InDelta(t, 0.0, lo, 1e-6)
	// median 50 + (npix - center) * slope / contrast = 50 + 51*4
	assert.InDelta(t, 254.0, hi, 1e-6)
}

func TestEstimateInterval_ZScaleTooFewPixels(t *testing.T) {
	t.Parallel()
	// Fewer samples than min_npixels: the sample extrema are returned.
	lo, hi, err := EstimateInterval(ZScale, []float64{4, 1, 9}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 9.0, hi)
}

func TestZScaleParams_Validate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, DefaultZScaleParams().Validate())
	p := DefaultZScaleParams()
	p.MaxReject = 2
	assert.Error(t, p.Validate())
	p = DefaultZScaleParams()
	p.NSamples = 0
	assert.Error(t, p.Validate())
}

func TestDilate(t *testing.T) {
	t.Parallel()
	in := []bool{false, false, true, false, false}
	assert.Equal(t, in, dilate(in, 1))
	// Even kernels lean towards lower indices, like numpy "same" mode.
	assert.Equal(t, []bool{false, false, true, true, false}, dilate(in, 2))
	assert.Equal(t, []bool{false, true, true, true, false}, dilate(in, 3))
}

func TestClip(t *testing.T) {
	t.Parallel()
	got := Clip([]float64{-5, 0.5, 5, math.NaN()}, 0, 1)
	assert.Equal(t, []float64{0, 0.5, 1}, got[:3])
	assert.True(t, math.IsNaN(got[3]))
}

func TestApplyScale(t *testing.T) {
	t.Parallel()
	in := []float64{0, 1, 4}
	tests := []struct {
		kind ScaleKind
		want []float64
	}{
		{Linear, []float64{0, 1, 4}},
		{Pow, []float64{0, 1, 16}},
		{Squared, []float64{0, 1, 16}},
		{Sqrt, []float64{0, 1, 2}},
		{Asinh, []float64{0, math.Asinh(1), math.Asinh(4)}},
		{Sinh, []float64{0, math.Sinh(1), math.Sinh(4)}},
		{Exp, []float64{1, math.E, math.Exp(4)}},
		{Log, []float64{0, math.Log(2), math.Log(5)}},
	}
	for _, tt := range tests {
		got, err := ApplyScale(tt.kind, in)
		require.NoError(t, err)
		assert.InDeltaSlice(t, tt.want, got, 1e-12, "scale %s", tt.kind)
	}
	assert.Equal(t, []float64{0, 1, 4}, in, "input must not be modified")

	_, err := ApplyScale("cubic", in)
	assert.Error(t, err)
}

func TestApplyScale_LogRoundTrip(t *testing.T) {
	t.Parallel()
	in := Clip([]float64{0, 0.001, 2.5, 10, 1e4}, 0, 1e3)
	got, err := ApplyScale(Log, in)
	require.NoError(t, err)
	for i := range in {
		assert.InDelta(t, in[i], math.Expm1(got[i]), 1e-9*math.Max(1, in[i]))
	}
}

func TestApplyScale_HistEqConstant(t *testing.T) {
	t.Parallel()
	got, err := ApplyScale(HistEq, []float64{5, 5, 5, 5})
	require.NoError(t, err)
	for _, v := range got {
		assert.False(t, math.IsNaN(v))
		assert.Equal(t, 255.0, v)
	}
}

func TestApplyScale_HistEqMonotoneWithNaN(t *testing.T) {
	t.Parallel()
	got, err := ApplyScale(HistEq, []float64{math.NaN(), 0, 1, 2, 3, 100})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got[0]))
	for i := 2; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1])
	}
	assert.Equal(t, 255.0, got[len(got)-1])
	assert.GreaterOrEqual(t, got[1], 0.0)
}

func TestApplyScale_HistEqAllNaN(t *testing.T) {
	t.Parallel()
	got, err := ApplyScale(HistEq, []float64{math.NaN(), math.NaN()})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got[0]) && math.IsNaN(got[1]))
}

func TestTransform_LinearMinMaxIsIdentityOnClippedData(t *testing.T) {
	t.Parallel()
	in := []float64{2, 9, 4, 7, 3}
	res, err := Transform(in, DefaultSpec, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, in, res.Values)
	assert.Equal(t, 2.0, res.Low)
	assert.Equal(t, 9.0, res.High)

	again, err := Transform(res.Values, DefaultSpec, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, res.Values, again.Values)
}

func TestTransform_ClipsBeforeScaling(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	res, err := Transform(ramp(101), Spec{Percentile, Linear}, p)
	require.NoError(t, err)
	assert.Equal(t, 35.0, res.Values[0])
	assert.Equal(t, 65.0, res.Values[100])
	assert.Equal(t, 50.0, res.Values[50])
}

func TestTransform_Failures(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	p.Percentile = -1
	_, err := Transform(ramp(5), Spec{Percentile, Linear}, p)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, aoerr.HTTPStatus(err))

	_, err = Transform(ramp(5), Spec{MinMax, "cubic"}, DefaultParams())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, aoerr.HTTPStatus(err))
}

func TestTransform_NaNPassesThrough(t *testing.T) {
	t.Parallel()
	for _, scale := range []ScaleKind{Linear, Log, HistEq, Sqrt} {
		res, err := Transform([]float64{math.NaN(), 1, 2}, Spec{ZScale, scale}, DefaultParams())
		require.NoError(t, err, "scale %s", scale)
		assert.True(t, math.IsNaN(res.Values[0]))
	}
}
