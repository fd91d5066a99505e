package httputil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aotrack/internal/ndarray"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, DecodeJSON(rec.Body.Bytes(), &body), rec.Body.String())
	return body["error"]
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		msg    string
	}{
		{"json error", func(w http.ResponseWriter) { WriteJSONError(w, http.StatusConflict, "session busy") }, http.StatusConflict, "session busy"},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "missing point_col") }, http.StatusBadRequest, "missing point_col"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "no route for /pixel/nope") }, http.StatusNotFound, "no route for /pixel/nope"},
		{"method not allowed", MethodNotAllowed, http.StatusMethodNotAllowed, "method not allowed"},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "failed to load dataset") }, http.StatusInternalServerError, "failed to load dataset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.msg, decodeError(t, rec))
		})
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]interface{}{
		"vmin":  ndarray.Float(math.NaN()),
		"vmax":  ndarray.Float(4.5),
		"frame": ndarray.Grid{{1, math.Inf(1)}, {2, 3}},
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"vmin":null,"vmax":4.5,"frame":[[1,null],[2,3]]}`, rec.Body.String())
	assert.Equal(t, byte('\n'), rec.Body.Bytes()[rec.Body.Len()-1])
}

func TestWriteJSON_EncodeFailureIsClean500(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]interface{}{"frames": make(chan int)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeError(t, rec))
}

func TestWriteJSONOK(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSONOK(rec, map[string]int{"num_frames": 20})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"num_frames":20}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var got struct {
		FrameStart int `json:"frame_start"`
		FrameEnd   int `json:"frame_end"`
	}
	require.NoError(t, DecodeJSON([]byte(`{"frame_start":2,"frame_end":9}`), &got))
	assert.Equal(t, 2, got.FrameStart)
	assert.Equal(t, 9, got.FrameEnd)

	assert.Error(t, DecodeJSON([]byte(`{"frame_start":`), &got))
}
