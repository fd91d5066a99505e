package api

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/fsutil"
	"github.com/banshee-data/aotrack/internal/journal"
	"github.com/banshee-data/aotrack/internal/monitoring"
	"github.com/banshee-data/aotrack/internal/session"
	"github.com/banshee-data/aotrack/internal/testutil"
	"github.com/banshee-data/aotrack/internal/timeutil"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

const corrupt = "corrupt"

// syntheticLoader serves a small synthetic dataset for any spooled file
// except those whose content is "corrupt".
type syntheticLoader struct {
	fs  *fsutil.MemoryFileSystem
	cfg aotdata.SyntheticConfig
}

func (l *syntheticLoader) Load(path string) (*aotdata.Dataset, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if string(data) == corrupt {
		return nil, io.ErrUnexpectedEOF
	}
	ds := aotdata.Synthetic(l.cfg)
	ds.Path = path
	return ds, nil
}

type testEnv struct {
	t       *testing.T
	handler http.Handler
	fs      *fsutil.MemoryFileSystem
	store   *session.Store
	clock   *timeutil.MockClock
}

func newTestEnv(t *testing.T, j *journal.Journal, mutate ...func(*Options)) *testEnv {
	t.Helper()
	memfs := fsutil.NewMemoryFileSystem()
	clock := timeutil.NewMockClock(time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC))
	opts := session.Options{Timeout: time.Hour, Clock: clock, FS: memfs}
	if j != nil {
		opts.Observer = j
	}
	store := session.NewStore(opts)

	apiOpts := DefaultOptions()
	apiOpts.UploadDir = "/spool"
	for _, m := range mutate {
		m(&apiOpts)
	}
	loader := &syntheticLoader{fs: memfs, cfg: aotdata.SyntheticConfig{Frames: 20, Cols: 4, Rows: 4, Actuators: 4, Seed: 1}}
	srv := NewServer(store, loader, memfs, j, apiOpts)
	h, err := srv.Router()
	require.NoError(t, err)
	return &testEnv{t: t, handler: h, fs: memfs, store: store, clock: clock}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// upload posts content and returns the recorder.
func (e *testEnv) upload(content, token string) *httptest.ResponseRecorder {
	req := testutil.UploadRequest(e.t, "/upload", "run 01.h5", []byte(content))
	if token != "" {
		testutil.WithCookie(req, SessionCookie, token)
	}
	return e.do(req)
}

// login uploads a valid dataset and returns the new session token.
func (e *testEnv) login() string {
	e.t.Helper()
	rec := e.upload("HDF", "")
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	c := testutil.ResponseCookie(rec, SessionCookie)
	require.NotNil(e.t, c)
	return c.Value
}

func (e *testEnv) post(path, token string, fields map[string]string) *httptest.ResponseRecorder {
	req := testutil.FormRequest(path, fields)
	if token != "" {
		testutil.WithCookie(req, SessionCookie, token)
	}
	return e.do(req)
}

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open("file:" + filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRootAndHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "Welcome to the AOTrack Backend", testutil.DecodeBody(t, rec)["message"])

	env.login()
	rec = env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	body := testutil.DecodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["sessions"])
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/pixel/get-frame", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := env.do(req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/pixel/get-frame", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = env.do(req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.post("/pixel/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no route for /pixel/nope", testutil.DecodeBody(t, rec)["error"])

	rec = env.do(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no route for /nowhere", testutil.DecodeBody(t, rec)["error"])

	rec = env.do(httptest.NewRequest(http.MethodGet, "/pixel/get-frame", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method not allowed", testutil.DecodeBody(t, rec)["error"])

	rec = env.do(httptest.NewRequest(http.MethodPut, "/session", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method not allowed", testutil.DecodeBody(t, rec)["error"])
}

func debugRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestDebugSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login()

	rec := env.do(debugRequest("/debug/sessions"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := testutil.DecodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, "1h0m0s", body["timeout"])
	sessions := body["sessions"].([]interface{})
	require.Len(t, sessions, 1)
	assert.Equal(t, tok, sessions[0].(map[string]interface{})["session_id"])
}

func TestDebugCharts(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login()

	rec := env.do(debugRequest("/debug/chart/frame?session=" + tok + "&frame_index=3"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "WFS 0 frame 3")

	rec = env.do(debugRequest("/debug/chart/series?session=" + tok + "&point_col=1&point_row=2"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = env.do(debugRequest("/debug/chart/series?point_col=x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(debugRequest("/debug/chart/frame"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no active session", testutil.DecodeBody(t, rec)["error"])
}

func TestDebugJournal(t *testing.T) {
	j := openJournal(t)
	env := newTestEnv(t, j)
	env.login()

	n, err := j.UploadCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var at int64
	require.NoError(t, j.QueryRow(`SELECT at_unix_nano FROM dataset_uploads`).Scan(&at))
	assert.Equal(t, env.clock.Now().UnixNano(), at, "uploads are stamped with the store clock")

	rec := env.do(debugRequest("/debug/journal"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "created")
}
