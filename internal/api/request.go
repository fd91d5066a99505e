package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/banshee-data/aotrack/internal/aoerr"
	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/httputil"
	"github.com/banshee-data/aotrack/internal/session"
	"github.com/banshee-data/aotrack/internal/transform"
	"github.com/banshee-data/aotrack/internal/window"
)

// maxFormMemory bounds the in-memory part of multipart data requests.
const maxFormMemory = 1 << 20

// form holds parsed request fields and the first parse failure.
type form struct {
	r   *http.Request
	err error
}

func parseForm(r *http.Request) *form {
	f := &form{r: r}
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			f.err = aoerr.InvalidParameter("invalid form body")
		}
	} else if err := r.ParseForm(); err != nil {
		f.err = aoerr.InvalidParameter("invalid form body")
	}
	return f
}

func (f *form) has(name string) bool {
	return strings.TrimSpace(f.r.FormValue(name)) != ""
}

func (f *form) str(name string) string {
	return strings.TrimSpace(f.r.FormValue(name))
}

// intOr parses an integer field, falling back to def when it is absent.
func (f *form) intOr(name string, def int) int {
	if f.err != nil {
		return def
	}
	s := f.str(name)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		f.err = aoerr.InvalidParameter("invalid %s: %q is not an integer", name, s)
		return def
	}
	return v
}

// required parses an integer field that must be present.
func (f *form) required(name string) int {
	if f.err != nil {
		return 0
	}
	if !f.has(name) {
		f.err = aoerr.InvalidParameter("missing %s", name)
		return 0
	}
	return f.intOr(name, 0)
}

// loopIndex accepts loop_index and the older index field.
func (f *form) loopIndex() int {
	if f.has("loop_index") {
		return f.intOr("loop_index", 0)
	}
	return f.intOr("index", 0)
}

func (f *form) tile() window.TileRequest {
	req := window.TileRequest{
		FrameStart: f.required("frame_start"),
		FrameEnd:   f.required("frame_end"),
		IndexStart: f.required("index_start"),
		IndexEnd:   f.required("index_end"),
	}
	if f.err == nil {
		f.err = req.Validate()
	}
	return req
}

func (f *form) spec() transform.Spec {
	if f.err != nil {
		return transform.DefaultSpec
	}
	sp, err := transform.ParseSpec(f.str("interval_type"), f.str("scale_type"))
	if err != nil {
		f.err = err
	}
	return sp
}

// wantsTransform reports whether the caller asked for a display transform
// on an endpoint where it is optional.
func (f *form) wantsTransform() bool {
	return f.has("interval_type") || f.has("scale_type")
}

func (f *form) bins(def int) int {
	n := f.intOr("num_bins", def)
	if f.err == nil && (n < 1 || n > 10000) {
		f.err = aoerr.InvalidParameter("num_bins must be between 1 and 10000, got %d", n)
	}
	return n
}

// tokenFrom reads the session cookie. A missing or malformed cookie is
// reported as no active session.
func tokenFrom(r *http.Request) (uuid.UUID, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return uuid.Nil, false
	}
	tok, err := session.ParseToken(c.Value)
	if err != nil {
		return uuid.Nil, false
	}
	return tok, true
}

// withDataset leases the caller's session, loads its dataset and runs fn.
// The dataset is closed and the lease released before the response is
// written; nothing is written until fn has returned.
func (s *Server) withDataset(w http.ResponseWriter, r *http.Request, fn func(ds *aotdata.Dataset) (interface{}, error)) {
	result, err := s.runWithDataset(r, fn)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSONOK(w, result)
}

func (s *Server) runWithDataset(r *http.Request, fn func(ds *aotdata.Dataset) (interface{}, error)) (interface{}, error) {
	tok, ok := tokenFrom(r)
	return s.leaseDataset(tok, ok, fn)
}

func (s *Server) leaseDataset(tok uuid.UUID, ok bool, fn func(ds *aotdata.Dataset) (interface{}, error)) (interface{}, error) {
	if !ok {
		return nil, aoerr.ErrNoActiveSession
	}
	sess, release, err := s.store.Acquire(tok)
	if err != nil {
		return nil, aoerr.ErrNoActiveSession
	}
	defer release()

	ds, err := s.loader.Load(sess.DatasetPath)
	if err != nil {
		return nil, aoerr.LoadFailure(sess.DatasetPath, err)
	}
	defer ds.Close()

	return fn(ds)
}

// writeError maps err onto the error taxonomy. Causes of server-side
// failures are logged, never sent.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := aoerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	httputil.WriteJSONError(w, status, aoerr.PublicMessage(err))
}

// histogramFailure converts a binning error into a transform failure.
func histogramFailure(err error) error {
	if err == nil {
		return nil
	}
	var p *aoerr.InvalidParameterError
	if errors.As(err, &p) {
		return err
	}
	return aoerr.TransformFailure(err)
}
