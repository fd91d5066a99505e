package api

import (
	"net/http"

	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/ndarray"
	"github.com/banshee-data/aotrack/internal/stats"
	"github.com/banshee-data/aotrack/internal/transform"
	"github.com/banshee-data/aotrack/internal/window"
)

// Point is one sample of a line series.
type Point struct {
	X int           `json:"x"`
	Y ndarray.Float `json:"y"`
}

func series(values []float64) []Point {
	out := make([]Point, len(values))
	for i, v := range values {
		out[i] = Point{X: i, Y: ndarray.Float(v)}
	}
	return out
}

// FrameResponse is a transformed 2-D frame and the display range used.
type FrameResponse struct {
	Frame ndarray.Grid  `json:"frame"`
	VMin  ndarray.Float `json:"vmin"`
	VMax  ndarray.Float `json:"vmax"`
}

// transformArray applies spec to a and keeps its shape.
func (s *Server) transformArray(a *ndarray.Array, spec transform.Spec) (*ndarray.Array, transform.Result, error) {
	res, err := transform.Transform(a.Data(), spec, s.opts.Params)
	if err != nil {
		return nil, res, err
	}
	out, err := ndarray.FromData(res.Values, a.Shape()...)
	if err != nil {
		return nil, res, err
	}
	return out, res, nil
}

func (s *Server) frameResponse(a *ndarray.Array, spec transform.Spec) (*FrameResponse, error) {
	out, res, err := s.transformArray(a, spec)
	if err != nil {
		return nil, err
	}
	return &FrameResponse{
		Frame: ndarray.GridOf(out),
		VMin:  ndarray.Float(res.Low),
		VMax:  ndarray.Float(res.High),
	}, nil
}

// transformFrames applies spec to each (col, row) plane of a cube on its own,
// so every frame gets its own display interval.
func (s *Server) transformFrames(cube *ndarray.Array, spec transform.Spec) ([]ndarray.Grid, error) {
	n, nc, nr := cube.Dim(0), cube.Dim(1), cube.Dim(2)
	plane := nc * nr
	data := make([]float64, 0, n*plane)
	for i := 0; i < n; i++ {
		res, err := transform.Transform(cube.Data()[i*plane:(i+1)*plane], spec, s.opts.Params)
		if err != nil {
			return nil, err
		}
		data = append(data, res.Values...)
	}
	out, err := ndarray.FromData(data, n, nc, nr)
	if err != nil {
		return nil, err
	}
	return ndarray.Grids(out), nil
}

func (s *Server) handlePixelFrame(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	wfs := f.intOr("wfs_index", 0)
	frame := f.intOr("frame_index", 0)
	spec := f.spec()
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}

	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		a, err := window.PixelFrame(ds, wfs, frame)
		if err != nil {
			return nil, err
		}
		return s.frameResponse(a, spec)
	})
}

func (s *Server) handlePixelFrames(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	wfs := f.intOr("wfs_index", 0)
	spec := f.spec()
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}

	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		cube, err := window.PixelFrames(ds, wfs)
		if err != nil {
			return nil, err
		}
		frames, err := s.transformFrames(cube, spec)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"data": frames}, nil
	})
}

func (s *Server) handlePixelFrameRange(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	wfs := f.intOr("wfs_index", 0)
	start := f.intOr("start_frame", 0)
	spec := f.spec()
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}

	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		fr, err := window.PixelFrameRange(ds, wfs, start, s.opts.FrameChunk)
		if err != nil {
			return nil, err
		}
		frames, err := s.transformFrames(fr.Frames, spec)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"frames":      frames,
			"start_frame": fr.Start,
			"end_frame":   fr.End,
		}, nil
	})
}

func (s *Server) handlePixelTile(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	wfs := f.intOr("wfs_index", 0)
	req := f.tile()
	transformed := f.wantsTransform()
	spec := f.spec()
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}

	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		t, err := window.PixelTile(ds, wfs, req)
		if err != nil {
			return nil, err
		}
		tile := t.Tile
		if transformed {
			if tile, _, err = s.transformArray(tile, spec); err != nil {
				return nil, err
			}
		}
		return map[string]interface{}{
			"tile":        ndarray.GridOf(tile),
			"frame_start": t.Request.FrameStart,
			"frame_end":   t.Request.FrameEnd,
			"index_start": t.Request.IndexStart,
			"index_end":   t.Request.IndexEnd,
			"num_frames":  t.NumFrames,
			"num_cols":    t.NumCols,
			"num_rows":    t.NumRows,
		}, nil
	})
}

func (s *Server) handlePixelMeta(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	wfs := f.intOr("wfs_index", 0)
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}
	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		return window.PixelMeta(ds, wfs)
	})
}

func (s *Server) handlePixelDefaultStats(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	wfs := f.intOr("wfs_index", 0)
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}
	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		a, err := window.PixelValues(ds, wfs)
		if err != nil {
			return nil, err
		}
		return stats.Summarize(a.Data()), nil
	})
}

func (s *Server) handlePixelPointStats(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	wfs := f.intOr("wfs_index", 0)
	col := f.required("point_col")
	row := f.required("point_row")
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}
	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		vals, err := window.PixelPointSeries(ds, wfs, col, row)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"point_vals": series(vals),
			"stats":      stats.Summarize(vals),
		}, nil
	})
}

func (s *Server) handlePixelHistogram(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	wfs := f.intOr("wfs_index", 0)
	bins := f.bins(s.opts.NumBins)
	withPoint := f.has("point_col") || f.has("point_row")
	col := f.intOr("point_col", 0)
	row := f.intOr("point_row", 0)
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}
	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		a, err := window.PixelValues(ds, wfs)
		if err != nil {
			return nil, err
		}
		counts, edges, err := stats.Histogram(a.Data(), bins)
		if err != nil {
			return nil, histogramFailure(err)
		}
		out := map[string]interface{}{"counts": counts, "bins": ndarray.Vector(edges)}
		if withPoint {
			vals, err := window.PixelPointSeries(ds, wfs, col, row)
			if err != nil {
				return nil, err
			}
			pc, pe, err := stats.Histogram(vals, bins)
			if err != nil {
				return nil, histogramFailure(err)
			}
			out["counts_point"] = pc
			out["bins_point"] = ndarray.Vector(pe)
		}
		return out, nil
	})
}
