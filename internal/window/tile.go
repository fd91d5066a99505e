// Package window extracts frames, tiles, point series and summary metadata
// from a decoded telemetry dataset. Direct indices are validated; range ends
// are clamped to the array extents.
package window

import (
	"fmt"

	"github.com/banshee-data/aotrack/internal/aoerr"
	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/ndarray"
)

// TileRequest selects a (frame × index) block. End bounds are exclusive.
type TileRequest struct {
	FrameStart int `json:"frame_start"`
	FrameEnd   int `json:"frame_end"`
	IndexStart int `json:"index_start"`
	IndexEnd   int `json:"index_end"`
}

// Validate checks the request before any data is read.
func (r TileRequest) Validate() error {
	if r.FrameStart < 0 {
		return aoerr.InvalidParameter("frame_start must be non-negative")
	}
	if r.IndexStart < 0 {
		return aoerr.InvalidParameter("index_start must be non-negative")
	}
	if r.FrameEnd <= r.FrameStart {
		return aoerr.InvalidParameter("Invalid frame range")
	}
	if r.IndexEnd <= r.IndexStart {
		return aoerr.InvalidParameter("Invalid index range")
	}
	return nil
}

// Clamp trims the end bounds to the given extents. A request whose start
// lies at or beyond the extent is rejected.
func (r TileRequest) Clamp(frames, indices int) (TileRequest, error) {
	if err := r.Validate(); err != nil {
		return r, err
	}
	r.FrameEnd = min(r.FrameEnd, frames)
	r.IndexEnd = min(r.IndexEnd, indices)
	if r.FrameStart >= r.FrameEnd {
		return r, aoerr.InvalidParameter("frame_start %d beyond last frame (%d frames)", r.FrameStart, frames)
	}
	if r.IndexStart >= r.IndexEnd {
		return r, aoerr.InvalidParameter("index_start %d beyond last index (%d indices)", r.IndexStart, indices)
	}
	return r, nil
}

// Frames is the number of frames selected.
func (r TileRequest) Frames() int { return r.FrameEnd - r.FrameStart }

// Indices is the number of indices selected.
func (r TileRequest) Indices() int { return r.IndexEnd - r.IndexStart }

// checkShape fails when a source does not have the expected rank.
func checkShape(src aotdata.Source, entity, field string, rank int) ([]int, error) {
	shape := src.Shape()
	if len(shape) != rank {
		return nil, fmt.Errorf("%s %s: expected %d-d array, got shape %v", entity, field, rank, shape)
	}
	return shape, nil
}

// readTile reads [fs,fe) × [is,ie) from a 2-D (frame, index) source.
func readTile(src aotdata.Source, r TileRequest) (*ndarray.Array, error) {
	return src.ReadSlice([]int{r.FrameStart, r.IndexStart}, []int{r.Frames(), r.Indices()})
}
