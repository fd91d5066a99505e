// Package ndarray provides a small row-major N-dimensional float64 buffer
// and JSON types that serialise non-finite values as null.
package ndarray

import (
	"fmt"
)

// Array is an N-dimensional float64 buffer stored in row-major (C) order.
// Arrays handed out by the windowing layer are never mutated after creation.
type Array struct {
	shape []int
	data  []float64
}

// New allocates a zero-filled array of the given shape.
func New(shape ...int) *Array {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Array{shape: append([]int(nil), shape...), data: make([]float64, n)}
}

// FromData wraps data with the given shape. The slice is not copied.
func FromData(data []float64, shape ...int) (*Array, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("negative dimension %d in shape %v", d, shape)
		}
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("shape %v needs %d elements, got %d", shape, n, len(data))
	}
	return &Array{shape: append([]int(nil), shape...), data: data}, nil
}

// Shape returns a copy of the array's dimensions.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

// NDim returns the number of dimensions.
func (a *Array) NDim() int { return len(a.shape) }

// Dim returns the extent of axis i.
func (a *Array) Dim(i int) int { return a.shape[i] }

// Len returns the total number of elements.
func (a *Array) Len() int { return len(a.data) }

// Data exposes the backing slice in row-major order.
func (a *Array) Data() []float64 { return a.data }

func (a *Array) offset(idx []int) int {
	off := 0
	for i, v := range idx {
		off = off*a.shape[i] + v
	}
	return off
}

// At returns the element at the given multi-index. It panics on a bad index,
// like a slice access would; callers validate indices first.
func (a *Array) At(idx ...int) float64 {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("ndarray: %d indices for %d-d array", len(idx), len(a.shape)))
	}
	for i, v := range idx {
		if v < 0 || v >= a.shape[i] {
			panic(fmt.Sprintf("ndarray: index %d out of range for axis %d (size %d)", v, i, a.shape[i]))
		}
	}
	return a.data[a.offset(idx)]
}

// Set writes the element at the given multi-index.
func (a *Array) Set(v float64, idx ...int) {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("ndarray: %d indices for %d-d array", len(idx), len(a.shape)))
	}
	a.data[a.offset(idx)] = v
}

// Reshape returns an array sharing the same data with a new shape.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	return FromData(a.data, shape...)
}

// Slice copies the hyperslab [start, start+count) out of the array.
func (a *Array) Slice(start, count []int) (*Array, error) {
	if len(start) != len(a.shape) || len(count) != len(a.shape) {
		return nil, fmt.Errorf("selection rank %d/%d does not match array rank %d", len(start), len(count), len(a.shape))
	}
	for i := range a.shape {
		if start[i] < 0 || count[i] < 0 || start[i]+count[i] > a.shape[i] {
			return nil, fmt.Errorf("selection out of bounds in dimension %d: start=%d count=%d size=%d",
				i, start[i], count[i], a.shape[i])
		}
	}
	out := New(count...)
	if out.Len() == 0 {
		return out, nil
	}

	// Copy contiguous runs along the last axis.
	last := len(a.shape) - 1
	run := count[last]
	idx := make([]int, len(a.shape))
	copy(idx, start)
	dst := 0
	for {
		src := a.offset(idx)
		copy(out.data[dst:dst+run], a.data[src:src+run])
		dst += run

		// Advance the multi-index over every axis except the last.
		axis := last - 1
		for axis >= 0 {
			idx[axis]++
			if idx[axis] < start[axis]+count[axis] {
				break
			}
			idx[axis] = start[axis]
			axis--
		}
		if axis < 0 {
			return out, nil
		}
	}
}

// Rows splits a 2-D array into its rows. The rows share the backing data.
func (a *Array) Rows() [][]float64 {
	if len(a.shape) != 2 {
		panic(fmt.Sprintf("ndarray: Rows on %d-d array", len(a.shape)))
	}
	rows := make([][]float64, a.shape[0])
	w := a.shape[1]
	for i := range rows {
		rows[i] = a.data[i*w : (i+1)*w : (i+1)*w]
	}
	return rows
}

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	return &Array{shape: a.Shape(), data: append([]float64(nil), a.data...)}
}

// ReadSlice makes an in-memory Array usable wherever a lazily-read source is
// expected.
func (a *Array) ReadSlice(start, count []int) (*Array, error) {
	return a.Slice(start, count)
}

// ReadAll returns the array itself.
func (a *Array) ReadAll() (*Array, error) {
	return a, nil
}
