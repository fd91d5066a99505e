package journal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tailscale.com/tsweb"

	"github.com/banshee-data/aotrack/internal/monitoring"
	"github.com/banshee-data/aotrack/internal/session"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	monitoring.SetLogger(nil)
	dsn := "file:" + filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_AppliesMigrations(t *testing.T) {
	j := openTestJournal(t)

	version, dirty, err := j.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// A second run is a no-op.
	require.NoError(t, j.MigrateUp())
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	tok := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	kinds := []session.EventKind{session.EventCreated, session.EventTouched, session.EventTouched, session.EventEvicted}
	for i, k := range kinds {
		require.NoError(t, j.Record(session.Event{Kind: k, Token: tok, Path: "/spool/a.h5", At: at.Add(time.Duration(i) * time.Minute)}))
	}

	recent, err := j.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "evicted", recent[0].Kind)
	assert.Equal(t, "touched", recent[1].Kind)
	assert.Equal(t, tok.String(), recent[0].Token)
	assert.Equal(t, at.Add(3*time.Minute), recent[0].At)

	none, err := j.Recent(0)
	require.NoError(t, err)
	assert.Empty(t, none)

	counts, err := j.CountByKind()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"created": 1, "touched": 2, "evicted": 1}, counts)
}

func TestObserveFromStore(t *testing.T) {
	j := openTestJournal(t)
	store := session.NewStore(session.Options{Observer: j})

	tok, err := store.Create("/spool/a.h5")
	require.NoError(t, err)
	require.NoError(t, store.Touch(tok))
	assert.True(t, store.DeleteOne(tok))

	counts, err := j.CountByKind()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"created": 1, "touched": 1, "deleted": 1}, counts)
}

func TestRecordUpload(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.RecordUpload(Upload{
		Token: uuid.NewString(), Path: "/spool/a.h5", Filename: "a.h5",
		Size: 1024, SystemName: "bench", NumWFS: 2, NumLoops: 1, At: time.Now(),
	}))
	require.NoError(t, j.RecordUpload(Upload{Token: uuid.NewString(), Path: "/spool/b.h5", Filename: "b.h5"}))

	n, err := j.UploadCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAdminRoutes(t *testing.T) {
	j := openTestJournal(t)
	require.NoError(t, j.Record(session.Event{Kind: session.EventCreated, Token: uuid.New(), Path: "/spool/a.h5", At: time.Now()}))

	mux := http.NewServeMux()
	debug := tsweb.Debugger(mux)
	require.NoError(t, j.AttachAdminRoutes(debug))

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"default", "/debug/journal", http.StatusOK},
		{"limit", "/debug/journal?n=1", http.StatusOK},
		{"bad limit", "/debug/journal?n=abc", http.StatusBadRequest},
		{"negative limit", "/debug/journal?n=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			req.RemoteAddr = "127.0.0.1:12345"
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}

			var body struct {
				Events []Entry         `json:"events"`
				Counts map[string]int `json:"counts"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Len(t, body.Events, 1)
			assert.Equal(t, 1, body.Counts["created"])
		})
	}
}
