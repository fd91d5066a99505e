package window

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/ndarray"
)

// extrema is NaN-naive: one NaN makes both bounds NaN.
func extrema(values []float64) (lo, hi ndarray.Float) {
	if len(values) == 0 || floats.HasNaN(values) {
		return ndarray.Float(math.NaN()), ndarray.Float(math.NaN())
	}
	return ndarray.Float(floats.Min(values)), ndarray.Float(floats.Max(values))
}

// PixelMetadata describes a sensor's pixel cube.
type PixelMetadata struct {
	NumFrames  int           `json:"num_frames"`
	NumCols    int           `json:"num_cols"`
	NumRows    int           `json:"num_rows"`
	OverallMin ndarray.Float `json:"overall_min"`
	OverallMax ndarray.Float `json:"overall_max"`
}

// PixelMeta reports the pixel cube's shape and value range.
func PixelMeta(ds *aotdata.Dataset, wfs int) (*PixelMetadata, error) {
	arr, err := PixelValues(ds, wfs)
	if err != nil {
		return nil, err
	}
	md := &PixelMetadata{NumFrames: arr.Dim(0), NumCols: arr.Dim(1), NumRows: arr.Dim(2)}
	md.OverallMin, md.OverallMax = extrema(arr.Data())
	return md, nil
}

// SlopeMetadata describes a sensor's slope cube and, when present, its
// subaperture mask.
type SlopeMetadata struct {
	NumFrames       int           `json:"num_frames"`
	NumIndices      int           `json:"num_indices"`
	Dim             int           `json:"dim"`
	OverallMin      ndarray.Float `json:"overall_min"`
	OverallMax      ndarray.Float `json:"overall_max"`
	NumCols         *int          `json:"num_cols,omitempty"`
	NumRows         *int          `json:"num_rows,omitempty"`
	SubapertureMask ndarray.Grid  `json:"subaperture_mask,omitempty"`
}

// SlopeMeta reports the slope cube's shape and value range.
func SlopeMeta(ds *aotdata.Dataset, wfs int) (*SlopeMetadata, error) {
	s, src, shape, err := slopes(ds, wfs)
	if err != nil {
		return nil, err
	}
	arr, err := src.ReadAll()
	if err != nil {
		return nil, err
	}
	md := &SlopeMetadata{NumFrames: shape[0], Dim: shape[1], NumIndices: shape[2]}
	md.OverallMin, md.OverallMax = extrema(arr.Data())

	if s.SubapertureMask != nil && len(s.SubapertureMask.Shape()) == 2 {
		mask, err := s.SubapertureMask.ReadAll()
		if err != nil {
			return nil, err
		}
		nc, nr := mask.Dim(0), mask.Dim(1)
		md.NumCols, md.NumRows = &nc, &nr
		md.SubapertureMask = ndarray.GridOf(mask)
	}
	return md, nil
}

// CommandMetadata describes a loop's commands and, when the commanded
// corrector has an influence function, its valid-pixel lookup.
type CommandMetadata struct {
	NumFrames  int           `json:"num_frames"`
	NumIndices int           `json:"num_indices"`
	OverallMin ndarray.Float `json:"overall_min"`
	OverallMax ndarray.Float `json:"overall_max"`
	NumCols    *int          `json:"num_cols,omitempty"`
	NumRows    *int          `json:"num_rows,omitempty"`
	Lookup     *Lookup       `json:"lookup,omitempty"`
}

// CommandMeta reports the command matrix's shape and value range. A loop
// without a usable influence function still yields the command fields.
func CommandMeta(ds *aotdata.Dataset, loopIndex int) (*CommandMetadata, error) {
	l, src, shape, err := commands(ds, loopIndex)
	if err != nil {
		return nil, err
	}
	arr, err := src.ReadAll()
	if err != nil {
		return nil, err
	}
	md := &CommandMetadata{NumFrames: shape[0], NumIndices: shape[1]}
	md.OverallMin, md.OverallMax = extrema(arr.Data())

	ifSrc, ifShape, err := influence(ds, l, shape[1])
	if err != nil {
		return md, nil
	}
	inf, err := ifSrc.ReadAll()
	if err != nil {
		return nil, err
	}
	nc, nr := ifShape[1], ifShape[2]
	md.NumCols, md.NumRows = &nc, &nr
	md.Lookup = lookupFrom(inf, ifShape)
	return md, nil
}
