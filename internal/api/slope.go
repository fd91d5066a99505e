package api

import (
	"net/http"

	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/ndarray"
	"github.com/banshee-data/aotrack/internal/stats"
	"github.com/banshee-data/aotrack/internal/window"
)

func (s *Server) handleSlopeFrame(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	wfs := f.intOr("wfs_index", 0)
	frame := f.intOr("frame_index", 0)
	transformed := f.wantsTransform()
	spec := f.spec()
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}

	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		x, y, err := window.SlopeFrame(ds, wfs, frame)
		if err != nil {
			return nil, err
		}
		if transformed {
			if x, _, err = s.transformArray(x, spec); err != nil {
				return nil, err
			}
			if y, _, err = s.transformArray(y, spec); err != nil {
				return nil, err
			}
		}
		return map[string]ndarray.Grid{
			"x_frame": ndarray.GridOf(x),
			"y_frame": ndarray.GridOf(y),
		}, nil
	})
}

func (s *Server) handleSlopeTile(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	wfs := f.intOr("wfs_index", 0)
	req := f.tile()
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}

	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		tiles, clamped, err := window.SlopeTile(ds, wfs, req)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"tiles":       [2]ndarray.Grid{ndarray.GridOf(tiles[0]), ndarray.GridOf(tiles[1])},
			"frame_start": clamped.FrameStart,
			"frame_end":   clamped.FrameEnd,
			"index_start": clamped.IndexStart,
			"index_end":   clamped.IndexEnd,
		}, nil
	})
}

func (s *Server) handleSlopeMeta(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	wfs := f.intOr("wfs_index", 0)
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}
	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		return window.SlopeMeta(ds, wfs)
	})
}

func (s *Server) handleSlopeDefaultStats(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	wfs := f.intOr("wfs_index", 0)
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}
	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		x, y, err := window.SlopeComponents(ds, wfs)
		if err != nil {
			return nil, err
		}
		return stats.SummarizePair(x, y), nil
	})
}

func (s *Server) handleSlopePointStats(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	wfs := f.intOr("wfs_index", 0)
	index := f.required("index")
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}
	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		x, y, err := window.SlopePointSeries(ds, wfs, index)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"point_means": [2][]Point{series(x), series(y)},
			"stats":       stats.SummarizePair(x, y),
		}, nil
	})
}

func (s *Server) handleSlopeHistogram(w http.ResponseWriter, r *http.Request) {
	f := parseForm(r)
	wfs := f.intOr("wfs_index", 0)
	bins := f.bins(s.opts.NumBins)
	withPoint := f.has("index")
	index := f.intOr("index", 0)
	if f.err != nil {
		s.writeError(w, r, f.err)
		return
	}
	s.withDataset(w, r, func(ds *aotdata.Dataset) (interface{}, error) {
		x, y, err := window.SlopeComponents(ds, wfs)
		if err != nil {
			return nil, err
		}
		counts, edges, err := pairHistogram(x, y, bins)
		if err != nil {
			return nil, err
		}
		out := map[string]interface{}{"counts": counts, "bins": edges}
		if withPoint {
			px, py, err := window.SlopePointSeries(ds, wfs, index)
			if err != nil {
				return nil, err
			}
			pc, pe, err := pairHistogram(px, py, bins)
			if err != nil {
				return nil, err
			}
			out["counts_point"] = pc
			out["bins_point"] = pe
		}
		return out, nil
	})
}

func pairHistogram(x, y []float64, bins int) ([2][]int, [2]ndarray.Vector, error) {
	var (
		counts [2][]int
		edges  [2]ndarray.Vector
	)
	for i, v := range [2][]float64{x, y} {
		c, e, err := stats.Histogram(v, bins)
		if err != nil {
			return counts, edges, histogramFailure(err)
		}
		counts[i], edges[i] = c, e
	}
	return counts, edges, nil
}
