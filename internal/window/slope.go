package window

import (
	"fmt"
	"math"

	"github.com/banshee-data/aotrack/internal/aoerr"
	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/ndarray"
)

// slopes returns the (frame, 2, subaperture) slope source of a sensor.
func slopes(ds *aotdata.Dataset, wfs int) (*aotdata.WavefrontSensor, aotdata.Source, []int, error) {
	s, err := ds.Sensor(wfs)
	if err != nil {
		return nil, nil, nil, err
	}
	src, err := aotdata.Require(s.Slopes, s.UID, "slope")
	if err != nil {
		return nil, nil, nil, err
	}
	shape, err := checkShape(src, s.UID, "slopes", 3)
	if err != nil {
		return nil, nil, nil, err
	}
	if shape[1] != 2 {
		return nil, nil, nil, fmt.Errorf("%s slopes: expected 2 components, got %d", s.UID, shape[1])
	}
	return s, src, shape, nil
}

// subapertureMask reads the (col, row) mask of a sensor.
func subapertureMask(s *aotdata.WavefrontSensor) (*ndarray.Array, error) {
	src, err := aotdata.Require(s.SubapertureMask, s.UID, "subaperture mask")
	if err != nil {
		return nil, err
	}
	if _, err := checkShape(src, s.UID, "subaperture mask", 2); err != nil {
		return nil, err
	}
	return src.ReadAll()
}

// SlopeFrame rebuilds the x and y slope maps of one frame on the subaperture
// grid. Positions where the mask is -1 are NaN.
func SlopeFrame(ds *aotdata.Dataset, wfs, frame int) (x, y *ndarray.Array, err error) {
	s, src, shape, err := slopes(ds, wfs)
	if err != nil {
		return nil, nil, err
	}
	if err := aoerr.CheckIndex("frame_index", frame, shape[0]); err != nil {
		return nil, nil, err
	}
	mask, err := subapertureMask(s)
	if err != nil {
		return nil, nil, err
	}
	n := shape[2]
	vals, err := src.ReadSlice([]int{frame, 0, 0}, []int{1, 2, n})
	if err != nil {
		return nil, nil, err
	}
	data := vals.Data()

	x, y = ndarray.New(mask.Shape()...), ndarray.New(mask.Shape()...)
	xd, yd := x.Data(), y.Data()
	for i, m := range mask.Data() {
		if m == -1 {
			xd[i], yd[i] = math.NaN(), math.NaN()
			continue
		}
		k := int(m)
		if k < 0 || k >= n || float64(k) != m {
			return nil, nil, fmt.Errorf("%s subaperture mask: entry %v does not address one of %d subapertures", s.UID, m, n)
		}
		xd[i], yd[i] = data[k], data[n+k]
	}
	return x, y, nil
}

// SlopeTile reads the x and y (frame × subaperture) blocks.
func SlopeTile(ds *aotdata.Dataset, wfs int, req TileRequest) ([2]*ndarray.Array, TileRequest, error) {
	var out [2]*ndarray.Array
	if err := req.Validate(); err != nil {
		return out, req, err
	}
	_, src, shape, err := slopes(ds, wfs)
	if err != nil {
		return out, req, err
	}
	req, err = req.Clamp(shape[0], shape[2])
	if err != nil {
		return out, req, err
	}
	block, err := src.ReadSlice([]int{req.FrameStart, 0, req.IndexStart}, []int{req.Frames(), 2, req.Indices()})
	if err != nil {
		return out, req, err
	}
	for d := range out {
		out[d], err = block.Slice([]int{0, d, 0}, []int{req.Frames(), 1, req.Indices()})
		if err != nil {
			return out, req, err
		}
		out[d], err = out[d].Reshape(req.Frames(), req.Indices())
		if err != nil {
			return out, req, err
		}
	}
	return out, req, nil
}

// SlopePointSeries reads the x and y series of one subaperture.
func SlopePointSeries(ds *aotdata.Dataset, wfs, index int) (x, y []float64, err error) {
	_, src, shape, err := slopes(ds, wfs)
	if err != nil {
		return nil, nil, err
	}
	if err := aoerr.CheckIndex("index", index, shape[2]); err != nil {
		return nil, nil, err
	}
	arr, err := src.ReadSlice([]int{0, 0, index}, []int{shape[0], 2, 1})
	if err != nil {
		return nil, nil, err
	}
	x, y = make([]float64, shape[0]), make([]float64, shape[0])
	data := arr.Data()
	for f := range x {
		x[f], y[f] = data[2*f], data[2*f+1]
	}
	return x, y, nil
}

// SlopeComponents reads every frame and splits the cube into its x and y
// components, each flattened over (frame, subaperture).
func SlopeComponents(ds *aotdata.Dataset, wfs int) (x, y []float64, err error) {
	_, src, shape, err := slopes(ds, wfs)
	if err != nil {
		return nil, nil, err
	}
	arr, err := src.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read slopes: %w", err)
	}
	n := shape[2]
	data := arr.Data()
	x, y = make([]float64, 0, shape[0]*n), make([]float64, 0, shape[0]*n)
	for f := 0; f < shape[0]; f++ {
		base := f * 2 * n
		x = append(x, data[base:base+n]...)
		y = append(y, data[base+n:base+2*n]...)
	}
	return x, y, nil
}
