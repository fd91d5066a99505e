package window

import (
	"fmt"

	"github.com/banshee-data/aotrack/internal/aoerr"
	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/ndarray"
)

// pixels returns the (frame, col, row) pixel source of a sensor.
func pixels(ds *aotdata.Dataset, wfs int) (aotdata.Source, []int, error) {
	s, err := ds.Sensor(wfs)
	if err != nil {
		return nil, nil, err
	}
	src, err := aotdata.Require(s.Pixels, s.UID, "pixel")
	if err != nil {
		return nil, nil, err
	}
	shape, err := checkShape(src, s.UID, "pixels", 3)
	if err != nil {
		return nil, nil, err
	}
	return src, shape, nil
}

// PixelFrame reads one (col, row) frame.
func PixelFrame(ds *aotdata.Dataset, wfs, frame int) (*ndarray.Array, error) {
	src, shape, err := pixels(ds, wfs)
	if err != nil {
		return nil, err
	}
	if err := aoerr.CheckIndex("frame_index", frame, shape[0]); err != nil {
		return nil, err
	}
	arr, err := src.ReadSlice([]int{frame, 0, 0}, []int{1, shape[1], shape[2]})
	if err != nil {
		return nil, err
	}
	return arr.Reshape(shape[1], shape[2])
}

// PixelFrames reads every frame of a sensor as a (frame, col, row) cube.
func PixelFrames(ds *aotdata.Dataset, wfs int) (*ndarray.Array, error) {
	src, _, err := pixels(ds, wfs)
	if err != nil {
		return nil, err
	}
	return src.ReadAll()
}

// FrameRange is a run of consecutive frames. End is inclusive.
type FrameRange struct {
	Frames *ndarray.Array
	Start  int
	End    int
}

// PixelFrameRange reads up to count frames starting at start.
func PixelFrameRange(ds *aotdata.Dataset, wfs, start, count int) (*FrameRange, error) {
	if count <= 0 {
		return nil, aoerr.InvalidParameter("frame count must be positive")
	}
	src, shape, err := pixels(ds, wfs)
	if err != nil {
		return nil, err
	}
	if err := aoerr.CheckIndex("start_frame", start, shape[0]); err != nil {
		return nil, err
	}
	end := min(start+count, shape[0])
	arr, err := src.ReadSlice([]int{start, 0, 0}, []int{end - start, shape[1], shape[2]})
	if err != nil {
		return nil, err
	}
	return &FrameRange{Frames: arr, Start: start, End: end - 1}, nil
}

// FlatTile is a flattened (frame × index) block of pixel data, where
// index = col*numRows + row.
type FlatTile struct {
	Tile      *ndarray.Array
	Request   TileRequest
	NumFrames int
	NumCols   int
	NumRows   int
}

// PixelTile reads whole frames of the requested range and keeps the
// requested span of flattened indices.
func PixelTile(ds *aotdata.Dataset, wfs int, req TileRequest) (*FlatTile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	src, shape, err := pixels(ds, wfs)
	if err != nil {
		return nil, err
	}
	nf, nc, nr := shape[0], shape[1], shape[2]
	req, err = req.Clamp(nf, nc*nr)
	if err != nil {
		return nil, err
	}
	block, err := src.ReadSlice([]int{req.FrameStart, 0, 0}, []int{req.Frames(), nc, nr})
	if err != nil {
		return nil, err
	}
	flat, err := block.Reshape(req.Frames(), nc*nr)
	if err != nil {
		return nil, err
	}
	tile, err := flat.Slice([]int{0, req.IndexStart}, []int{req.Frames(), req.Indices()})
	if err != nil {
		return nil, err
	}
	return &FlatTile{Tile: tile, Request: req, NumFrames: nf, NumCols: nc, NumRows: nr}, nil
}

// PixelPointSeries reads the value of one pixel across all frames.
func PixelPointSeries(ds *aotdata.Dataset, wfs, col, row int) ([]float64, error) {
	src, shape, err := pixels(ds, wfs)
	if err != nil {
		return nil, err
	}
	if err := aoerr.CheckIndex("point_col", col, shape[1]); err != nil {
		return nil, err
	}
	if err := aoerr.CheckIndex("point_row", row, shape[2]); err != nil {
		return nil, err
	}
	arr, err := src.ReadSlice([]int{0, col, row}, []int{shape[0], 1, 1})
	if err != nil {
		return nil, err
	}
	return arr.Data(), nil
}

// PixelValues reads the entire pixel cube.
func PixelValues(ds *aotdata.Dataset, wfs int) (*ndarray.Array, error) {
	src, _, err := pixels(ds, wfs)
	if err != nil {
		return nil, err
	}
	arr, err := src.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read pixels: %w", err)
	}
	return arr, nil
}
