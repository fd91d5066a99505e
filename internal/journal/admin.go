package journal

import (
	"net/http"
	"strconv"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/aotrack/internal/httputil"
)

// AttachAdminRoutes mounts the SQL console and a JSON event listing on the
// debug handler.
func (j *Journal) AttachAdminRoutes(debug *tsweb.DebugHandler) error {
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return err
	}
	tsql.SetDB("sqlite://"+j.dsn, j.DB, &tailsql.DBOptions{
		Label: "Session journal",
	})
	debug.Handle("tailsql/", "SQL live debugging of the session journal", tsql.NewMux())

	debug.Handle("journal", "Recent session events (JSON, ?n=100)", http.HandlerFunc(j.handleRecent))
	return nil
}

func (j *Journal) handleRecent(w http.ResponseWriter, r *http.Request) {
	n := 100
	if s := r.URL.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			httputil.BadRequest(w, "n must be a non-negative integer")
			return
		}
		n = v
	}
	events, err := j.Recent(n)
	if err != nil {
		httputil.InternalServerError(w, "failed to read journal")
		return
	}
	counts, err := j.CountByKind()
	if err != nil {
		httputil.InternalServerError(w, "failed to read journal")
		return
	}
	httputil.WriteJSONOK(w, map[string]any{"events": events, "counts": counts})
}
