// Package aotdata loads adaptive-optics telemetry containers into typed
// entity records whose arrays are read lazily.
package aotdata

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/aotrack/internal/aoerr"
	"github.com/banshee-data/aotrack/internal/ndarray"
)

// ErrMissingField is wrapped when an entity lacks a requested array.
var ErrMissingField = errors.New("field not present")

// Source is a numeric array that may live on disk. Implementations read only
// what is asked for.
type Source interface {
	Shape() []int
	ReadSlice(start, count []int) (*ndarray.Array, error)
	ReadAll() (*ndarray.Array, error)
}

// Loop is a control loop driving one corrector.
type Loop struct {
	UID string
	// Commands has shape (frame, actuator).
	Commands       Source
	CorrectorIndex *int
	Framerate      *float64
}

// WavefrontSensor holds the detector and measurement arrays of one sensor.
type WavefrontSensor struct {
	UID string
	// Pixels has shape (frame, col, row).
	Pixels Source
	// Slopes has shape (frame, 2, subaperture).
	Slopes Source
	// SubapertureMask has shape (col, row); -1 marks unused positions.
	SubapertureMask Source
}

// Corrector is a deformable mirror or similar actuated element.
type Corrector struct {
	UID string
	// InfluenceFunction has shape (actuator, col, row).
	InfluenceFunction Source
}

// SystemInfo is descriptive metadata about the recording.
type SystemInfo struct {
	Name      string
	Telescope string
	Mode      string
	Start     *time.Time
	End       *time.Time
}

// Dataset is a decoded container. It must be closed after use.
type Dataset struct {
	Path       string
	Info       SystemInfo
	Loops      []Loop
	Sensors    []WavefrontSensor
	Correctors []Corrector

	closer io.Closer
}

// Close releases the underlying file, if any.
func (d *Dataset) Close() error {
	if d == nil || d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Loader decodes a dataset from a path.
type Loader interface {
	Load(path string) (*Dataset, error)
}

// Sensor returns the sensor at index or a range error.
func (d *Dataset) Sensor(index int) (*WavefrontSensor, error) {
	if err := aoerr.CheckIndex("wfs_index", index, len(d.Sensors)); err != nil {
		return nil, err
	}
	return &d.Sensors[index], nil
}

// Loop returns the loop at index or a range error.
func (d *Dataset) Loop(index int) (*Loop, error) {
	if err := aoerr.CheckIndex("loop_index", index, len(d.Loops)); err != nil {
		return nil, err
	}
	return &d.Loops[index], nil
}

// LoopCorrector resolves the corrector commanded by a loop.
func (d *Dataset) LoopCorrector(loop *Loop) (*Corrector, error) {
	if loop.CorrectorIndex == nil {
		return nil, missing("loop %s has no commanded corrector", loop.UID)
	}
	idx := *loop.CorrectorIndex
	if idx < 0 || idx >= len(d.Correctors) {
		return nil, missing("loop %s commands corrector %d, dataset has %d", loop.UID, idx, len(d.Correctors))
	}
	return &d.Correctors[idx], nil
}

// Require returns src, or an error naming the entity and the absent field.
func Require(src Source, entity, field string) (Source, error) {
	if src == nil {
		return nil, missing("%s has no %s data", entity, field)
	}
	return src, nil
}

func missing(format string, args ...any) error {
	return &aoerr.InvalidParameterError{Msg: fmt.Sprintf(format, args...), Err: ErrMissingField}
}
