package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"tailscale.com/tsweb"

	"github.com/banshee-data/aotrack/internal/aoerr"
	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/chart"
	"github.com/banshee-data/aotrack/internal/httputil"
	"github.com/banshee-data/aotrack/internal/session"
	"github.com/banshee-data/aotrack/internal/transform"
	"github.com/banshee-data/aotrack/internal/window"
)

func (s *Server) attachDebugRoutes(debug *tsweb.DebugHandler) error {
	if s.journal != nil {
		if err := s.journal.AttachAdminRoutes(debug); err != nil {
			return err
		}
	}
	debug.Handle("sessions", "Live sessions (JSON)", http.HandlerFunc(s.handleDebugSessions))
	debug.Handle("chart/frame", "Pixel frame heatmap (?session=&wfs_index=&frame_index=)", http.HandlerFunc(s.handleFrameChart))
	debug.Handle("chart/series", "Pixel time series PNG (?session=&point_col=&point_row=)", http.HandlerFunc(s.handleSeriesChart))
	return nil
}

func (s *Server) handleDebugSessions(w http.ResponseWriter, r *http.Request) {
	list := s.store.List()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"count":    len(list),
		"timeout":  s.store.Timeout().String(),
		"sessions": list,
	})
}

// debugToken prefers an explicit ?session= over the cookie, so operators can
// inspect any live session.
func debugToken(r *http.Request) (uuid.UUID, bool) {
	if v := r.URL.Query().Get("session"); v != "" {
		tok, err := session.ParseToken(v)
		return tok, err == nil
	}
	return tokenFrom(r)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, aoerr.InvalidParameter("invalid %s: %q is not an integer", name, v)
	}
	return n, nil
}

func (s *Server) handleFrameChart(w http.ResponseWriter, r *http.Request) {
	wfs, err := queryInt(r, "wfs_index", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	frame, err := queryInt(r, "frame_index", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	spec, err := transform.ParseSpec(r.URL.Query().Get("interval_type"), r.URL.Query().Get("scale_type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tok, ok := debugToken(r)
	result, err := s.leaseDataset(tok, ok, func(ds *aotdata.Dataset) (interface{}, error) {
		a, err := window.PixelFrame(ds, wfs, frame)
		if err != nil {
			return nil, err
		}
		return s.frameResponse(a, spec)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fr := result.(*FrameResponse)

	title := fmt.Sprintf("WFS %d frame %d, %s %s", wfs, frame, spec.Interval, spec.Scale)
	page, err := chart.FrameHTML(title, fr.Frame, float64(fr.VMin), float64(fr.VMax))
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleSeriesChart(w http.ResponseWriter, r *http.Request) {
	wfs, err := queryInt(r, "wfs_index", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	col, err := queryInt(r, "point_col", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	row, err := queryInt(r, "point_row", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tok, ok := debugToken(r)
	result, err := s.leaseDataset(tok, ok, func(ds *aotdata.Dataset) (interface{}, error) {
		return window.PixelPointSeries(ds, wfs, col, row)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	png, err := chart.SeriesPNG(fmt.Sprintf("WFS %d pixel (%d, %d)", wfs, col, row), result.([]float64))
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
