// Package api serves windowed views of uploaded telemetry over HTTP.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"tailscale.com/tsweb"

	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/fsutil"
	"github.com/banshee-data/aotrack/internal/httputil"
	"github.com/banshee-data/aotrack/internal/journal"
	"github.com/banshee-data/aotrack/internal/session"
	"github.com/banshee-data/aotrack/internal/transform"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// SessionCookie carries the session token.
const SessionCookie = "ao_session"

// Options are the tunables of the HTTP surface.
type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	CookieSecure   bool
	AllowedOrigins []string
	Params         transform.Params
	FrameChunk     int
	NumBins        int
}

// DefaultOptions mirror the config defaults.
func DefaultOptions() Options {
	return Options{
		UploadDir:      "aotrack",
		MaxUploadBytes: 2 << 30,
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:5174", "http://localhost:4173"},
		Params:         transform.DefaultParams(),
		FrameChunk:     10,
		NumBins:        20,
	}
}

type Server struct {
	store   *session.Store
	loader  aotdata.Loader
	fs      fsutil.FileSystem
	journal *journal.Journal
	opts    Options
}

// NewServer wires the handlers. j may be nil, in which case uploads are not
// journaled and the SQL console is not mounted.
func NewServer(store *session.Store, loader aotdata.Loader, fs fsutil.FileSystem, j *journal.Journal, opts Options) *Server {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	if opts.FrameChunk < 1 {
		opts.FrameChunk = 10
	}
	if opts.NumBins < 1 {
		opts.NumBins = 20
	}
	return &Server{
		store:   store,
		loader:  loader,
		fs:      fs,
		journal: j,
		opts:    opts,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// Router builds the full handler tree, including the /debug/ surface.
func (s *Server) Router() (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Set before the subrouters are mounted so they inherit the JSON bodies.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.MethodNotAllowed(w)
	})

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	r.Get("/session", s.handleSession)
	r.Delete("/session", s.handleDeleteSession)

	r.Route("/pixel", func(r chi.Router) {
		r.Post("/get-frame", s.handlePixelFrame)
		r.Post("/get-frames", s.handlePixelFrames)
		r.Post("/get-frame-range", s.handlePixelFrameRange)
		r.Post("/tile", s.handlePixelTile)
		r.Post("/flat-tile", s.handlePixelTile)
		r.Post("/get-meta", s.handlePixelMeta)
		r.Post("/get-default-stats", s.handlePixelDefaultStats)
		r.Post("/get-point-stats", s.handlePixelPointStats)
		r.Post("/get-point-timeseries", s.handlePixelPointStats)
		r.Post("/get-histogram", s.handlePixelHistogram)
	})

	r.Route("/slope", func(r chi.Router) {
		r.Post("/get-frame", s.handleSlopeFrame)
		r.Post("/tile", s.handleSlopeTile)
		r.Post("/get-meta", s.handleSlopeMeta)
		r.Post("/get-default-stats", s.handleSlopeDefaultStats)
		r.Post("/get-point-stats", s.handleSlopePointStats)
		r.Post("/get-point-timeseries", s.handleSlopePointStats)
		r.Post("/get-histogram", s.handleSlopeHistogram)
	})

	r.Route("/command", func(r chi.Router) {
		r.Post("/get-frame", s.handleCommandFrame)
		r.Post("/tile", s.handleCommandTile)
		r.Post("/get-meta", s.handleCommandMeta)
		r.Post("/get-default-stats", s.handleCommandDefaultStats)
		r.Post("/get-point-timeseries", s.handleCommandPointSeries)
		r.Post("/get-point-stats", s.handleCommandPointSeries)
		r.Post("/get-point-contributions", s.handlePointContributions)
		r.Post("/get-actuator-timeseries", s.handleActuatorSeries)
		r.Post("/get-actuator-contribution", s.handleActuatorContribution)
	})

	debugMux := http.NewServeMux()
	if err := s.attachDebugRoutes(tsweb.Debugger(debugMux)); err != nil {
		return nil, err
	}
	r.Handle("/debug", debugMux)
	r.Handle("/debug/*", debugMux)

	return r, nil
}
