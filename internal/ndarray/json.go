package ndarray

import (
	"math"
	"strconv"
)

// Float marshals NaN and ±Inf as null.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	return appendFloat(nil, float64(f)), nil
}

// Vector is a 1-D slice serialised with non-finite values as null.
type Vector []float64

// MarshalJSON implements json.Marshaler.
func (v Vector) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return appendVector(make([]byte, 0, len(v)*8+2), v), nil
}

// Grid is a 2-D slice serialised with non-finite values as null.
type Grid [][]float64

// MarshalJSON implements json.Marshaler.
func (g Grid) MarshalJSON() ([]byte, error) {
	if g == nil {
		return []byte("null"), nil
	}
	n := 2
	for _, row := range g {
		n += len(row)*8 + 3
	}
	buf := make([]byte, 0, n)
	buf = append(buf, '[')
	for i, row := range g {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendVector(buf, row)
	}
	return append(buf, ']'), nil
}

// GridOf converts a 2-D array into a Grid. It returns nil for a nil array.
func GridOf(a *Array) Grid {
	if a == nil {
		return nil
	}
	return Grid(a.Rows())
}

// Grids converts a 3-D array into a slice of grids along the first axis.
func Grids(a *Array) []Grid {
	if a == nil || a.NDim() != 3 {
		return nil
	}
	n, h, w := a.Dim(0), a.Dim(1), a.Dim(2)
	out := make([]Grid, n)
	for i := 0; i < n; i++ {
		plane, _ := FromData(a.Data()[i*h*w:(i+1)*h*w], h, w)
		out[i] = GridOf(plane)
	}
	return out
}

func appendVector(buf []byte, v []float64) []byte {
	buf = append(buf, '[')
	for i, x := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendFloat(buf, x)
	}
	return append(buf, ']')
}

func appendFloat(buf []byte, x float64) []byte {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return append(buf, "null"...)
	}
	return strconv.AppendFloat(buf, x, 'g', -1, 64)
}
