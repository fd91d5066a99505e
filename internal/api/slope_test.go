package api

import (
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aotrack/internal/testutil"
)

// Synthetic slopes are x = frame + 0.1*i and y = -x over the 12 subapertures
// of a 4x4 circular pupil. Subaperture 0 sits at col 0, row 1.

func TestSlopeFrame(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login()

	rec := env.post("/slope/get-frame", tok, map[string]string{"frame_index": "3"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := testutil.DecodeBody(t, rec)

	x := body["x_frame"].([]interface{})
	y := body["y_frame"].([]interface{})
	require.Len(t, x, 4)
	assert.Nil(t, x[0].([]interface{})[0], "outside the pupil")
	assert.Equal(t, float64(3), x[0].([]interface{})[1])
	assert.Equal(t, float64(-3), y[0].([]interface{})[1])

	rec = env.post("/slope/get-frame", tok, map[string]string{"frame_index": "3", "scale_type": "squared"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	y = testutil.DecodeBody(t, rec)["y_frame"].([]interface{})
	assert.Nil(t, y[0].([]interface{})[0])
	assert.InDelta(t, 9.0, y[0].([]interface{})[1], 1e-9)
}

func TestSlopeTile(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login()

	rec := env.post("/slope/tile", tok, map[string]string{
		"frame_start": "0", "frame_end": "2", "index_start": "0", "index_end": "30",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := testutil.DecodeBody(t, rec)
	assert.Equal(t, float64(12), body["index_end"])

	tiles := body["tiles"].([]interface{})
	require.Len(t, tiles, 2)
	x := tiles[0].([]interface{})
	y := tiles[1].([]interface{})
	require.Len(t, x, 2)
	require.Len(t, x[1], 12)
	assert.InDelta(t, 1.2, x[1].([]interface{})[2], 1e-9)
	assert.InDelta(t, -1.2, y[1].([]interface{})[2], 1e-9)
}

func TestSlopeMetaAndStats(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login()

	md := testutil.DecodeBody(t, env.post("/slope/get-meta", tok, nil))
	assert.Equal(t, float64(20), md["num_frames"])
	assert.Equal(t, float64(12), md["num_indices"])
	assert.Equal(t, float64(2), md["dim"])
	assert.Equal(t, float64(4), md["num_cols"])
	assert.Len(t, md["subaperture_mask"], 4)

	st := testutil.DecodeBody(t, env.post("/slope/get-default-stats", tok, nil))
	mean := st["mean"].([]interface{})
	require.Len(t, mean, 2)
	assert.InDelta(t, 10.05, mean[0], 1e-9)
	assert.InDelta(t, -10.05, mean[1], 1e-9)
}

func TestSlopePointStats(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login()

	rec := env.post("/slope/get-point-stats", tok, map[string]string{"index": "2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := testutil.DecodeBody(t, rec)

	means := body["point_means"].([]interface{})
	require.Len(t, means, 2)
	xs := means[0].([]interface{})
	require.Len(t, xs, 20)
	pt := xs[5].(map[string]interface{})
	assert.Equal(t, float64(5), pt["x"])
	assert.InDelta(t, 5.2, pt["y"], 1e-9)

	st := body["stats"].(map[string]interface{})
	assert.InDelta(t, 9.7, st["mean"].([]interface{})[0], 1e-9)
	assert.InDelta(t, -9.7, st["mean"].([]interface{})[1], 1e-9)

	rec = env.post("/slope/get-point-timeseries", tok, map[string]string{"index": "12"})
	assert.Equal(t, "index 12 out of range (0 to 11)", testutil.DecodeBody(t, rec)["error"])

	rec = env.post("/slope/get-point-stats", tok, nil)
	assert.Equal(t, "missing index", testutil.DecodeBody(t, rec)["error"])
}

func TestSlopeHistogram(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login()

	rec := env.post("/slope/get-histogram", tok, map[string]string{"num_bins": "4", "index": "0"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := testutil.DecodeBody(t, rec)

	counts := body["counts"].([]interface{})
	require.Len(t, counts, 2)
	assert.Equal(t, 240.0, sum(counts[0]))
	assert.Equal(t, 240.0, sum(counts[1]))
	assert.Len(t, body["bins"].([]interface{})[0], 5)
	assert.Equal(t, 20.0, sum(body["counts_point"].([]interface{})[1]))
	assert.False(t, math.IsNaN(sum(body["bins_point"].([]interface{})[0])))
}
