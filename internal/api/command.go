package api

import (
	"net/http"

	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/ndarray"
	"github.com/banshee-data/aotrack/internal/stats"
	"github.com/banshee-data/aotrack/internal/window"
)

func (s *Server) handleCommandFrame(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	loop := f.loopIndex()
	frame := f.intOr("frame_index", 0)
	spec := f.spec()
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}

	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		img, err := window.CommandImage(ds, loop, frame)
		if err != nil {
			return nil, err
		}
		return s.frameResponse(img, spec)
	})
}

func (s *Server) handleCommandTile(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	loop := f.loopIndex()
	req := f.tile()
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}

	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		tile, clamped, err := window.CommandTile(ds, loop, req)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"tile":        ndarray.GridOf(tile),
			"frame_start": clamped.FrameStart,
			"frame_end":   clamped.FrameEnd,
			"index_start": clamped.IndexStart,
			"index_end":   clamped.IndexEnd,
		}, nil
	})
}

func (s *Server) handleCommandMeta(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	loop := f.loopIndex()
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}
	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		return window.CommandMeta(ds, loop)
	})
}

func (s *Server) handleCommandDefaultStats(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	loop := f.loopIndex()
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}
	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		a, err := window.CommandValues(ds, loop)
		if err != nil {
			return nil, err
		}
		return stats.Summarize(a.Data()), nil
	})
}

func (s *Server) handleCommandPointSeries(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	loop := f.loopIndex()
	col := f.required("point_col")
	row := f.required("point_row")
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}
	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		vals, err := window.CommandPointSeries(ds, loop, col, row)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"point_vals": series(vals),
			"stats":      stats.Summarize(vals),
		}, nil
	})
}

func (s *Server) handlePointContributions(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	loop := f.loopIndex()
	frame := f.intOr("frame_index", 0)
	col := f.required("point_col")
	row := f.required("point_row")
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}
	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		vals, err := window.PointContributions(ds, loop, frame, col, row)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"point_vals": series(vals),
			"stats":      nil,
		}, nil
	})
}

func (s *Server) handleActuatorSeries(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	loop := f.loopIndex()
	actuator := f.intOr("actuator_index", 0)
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}
	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		vals, err := window.ActuatorSeries(ds, loop, actuator)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"point_vals": series(vals),
			"stats":      stats.Summarize(vals),
		}, nil
	})
}

func (s *Server) handleActuatorContribution(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	loop := f.loopIndex()
	frame := f.intOr("frame_index", 0)
	actuator := f.intOr("actuator_index", 0)
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}
	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		m, err := window.ActuatorContribution(ds, loop, frame, actuator)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"point_vals": ndarray.GridOf(m),
			"stats":      nil,
		}, nil
	})
}
