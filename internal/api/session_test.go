package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aotrack/internal/testutil"
)

func TestUpload_CreatesSession(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.upload("HDF", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	c := testutil.ResponseCookie(rec, SessionCookie)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)

	md := testutil.DecodeBody(t, rec)["metadata"].(map[string]interface{})
	assert.Equal(t, "synthetic", md["system_name"])
	assert.Equal(t, float64(1), md["num_wfs"])
	assert.Equal(t, float64(1), md["num_loops"])

	files := env.fs.Files()
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0], "/spool/"))
	assert.True(t, strings.HasSuffix(files[0], "_run_01.h5"), files[0])
}

func TestUpload_ReplacesDatasetForExistingSession(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login()
	first := env.fs.Files()
	require.Len(t, first, 1)

	rec := env.upload("HDF again", tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := testutil.ResponseCookie(rec, SessionCookie)
	require.NotNil(t, c, "upload refreshes the cookie")
	assert.Equal(t, tok, c.Value, "existing session keeps its token")

	files := env.fs.Files()
	require.Len(t, files, 1)
	assert.NotEqual(t, first[0], files[0], "previous dataset is deleted")
	assert.Equal(t, 1, env.store.Len())
}

func TestUpload_UnknownCookieStartsNewSession(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.upload("HDF", "8b0e4cb7-32cb-4c4f-9d73-3f1e7e9a11aa")
	require.Equal(t, http.StatusOK, rec.Code)
	c := testutil.ResponseCookie(rec, SessionCookie)
	require.NotNil(t, c)
	assert.NotEqual(t, "8b0e4cb7-32cb-4c4f-9d73-3f1e7e9a11aa", c.Value)

	rec = env.upload("HDF", "not-a-uuid")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, testutil.ResponseCookie(rec, SessionCookie))
	assert.Equal(t, 2, env.store.Len())
}

func TestUpload_Failures(t *testing.T) {
	t.Run("corrupt file", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := env.upload(corrupt, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "failed to load dataset", testutil.DecodeBody(t, rec)["error"])
		assert.Empty(t, env.fs.Files(), "rejected upload is removed")
		assert.Nil(t, testutil.ResponseCookie(rec, SessionCookie))
	})

	t.Run("not multipart", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := env.post("/upload", "", map[string]string{"file": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file part", func(t *testing.T) {
		env := newTestEnv(t, nil)
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("other", "x"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/upload", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		rec := env.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing file", testutil.DecodeBody(t, rec)["error"])
	})

	t.Run("too large", func(t *testing.T) {
		env := newTestEnv(t, nil, func(o *Options) { o.MaxUploadBytes = 512 })
		rec := env.upload(strings.Repeat("x", 4096), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, testutil.DecodeBody(t, rec)["error"], "upload exceeds 512 bytes")
		assert.Empty(t, env.fs.Files())
	})
}

func TestSessionStatus(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/session", nil))
	assert.Equal(t, false, testutil.DecodeBody(t, rec)["active"])

	tok := env.login()
	req := testutil.WithCookie(httptest.NewRequest(http.MethodGet, "/session", nil), SessionCookie, tok)
	body := testutil.DecodeBody(t, env.do(req))
	assert.Equal(t, true, body["active"])
	assert.Equal(t, tok, body["session_id"])
}

func TestSessionExpiry(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login()

	env.clock.Advance(30 * time.Minute)
	assert.Zero(t, env.store.Sweep())
	rec := env.post("/pixel/get-meta", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env.clock.Advance(61 * time.Minute)
	assert.Equal(t, 1, env.store.Sweep())
	assert.Empty(t, env.fs.Files(), "evicted dataset is deleted")

	rec = env.post("/pixel/get-meta", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no active session", testutil.DecodeBody(t, rec)["error"])
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login()

	req := testutil.WithCookie(httptest.NewRequest(http.MethodDelete, "/session", nil), SessionCookie, tok)
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, testutil.DecodeBody(t, rec)["deleted"])
	c := testutil.ResponseCookie(rec, SessionCookie)
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
	assert.Empty(t, env.fs.Files())

	rec = env.do(testutil.WithCookie(httptest.NewRequest(http.MethodDelete, "/session", nil), SessionCookie, tok))
	assert.Equal(t, false, testutil.DecodeBody(t, rec)["deleted"])
}

func TestDataEndpointsRequireSession(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{
		"/pixel/get-frame", "/pixel/get-frames", "/pixel/get-meta", "/slope/get-frame",
		"/command/get-meta", "/command/get-actuator-timeseries",
	} {
		t.Run(path, func(t *testing.T) {
			rec := env.post(path, "", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "no active session", testutil.DecodeBody(t, rec)["error"])
		})
	}
}
