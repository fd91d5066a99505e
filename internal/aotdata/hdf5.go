package aotdata

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/scigolib/hdf5"

	"github.com/banshee-data/aotrack/internal/ndarray"
)

// Container layout. Datasets live at the root of the file:
//
//	/wfs_<i>_pixels            (frame, col, row)
//	/wfs_<i>_slopes            (frame, 2, subaperture)
//	/wfs_<i>_subaperture_mask  (col, row)
//	/loop_<i>_commands         (frame, actuator)   attrs: corrector_index, framerate
//	/corrector_<j>_influence   (actuator, col, row)
//	/system_info               (1)                 attrs: system_name, telescope_name, mode, start_unix, end_unix
//
// Every array dataset carries a "shape" int64 attribute; entity datasets may
// carry a "uid" string attribute.
const (
	attrShape          = "shape"
	attrUID            = "uid"
	attrCorrectorIndex = "corrector_index"
	attrFramerate      = "framerate"
	systemInfoName     = "system_info"
)

var entityName = regexp.MustCompile(`^(wfs|loop|corrector)_(\d+)_([a-z_]+)$`)

// HDF5Loader reads telemetry containers with github.com/scigolib/hdf5.
type HDF5Loader struct{}

// Load opens path and indexes its entity datasets. Array contents are read
// on demand through the returned Sources, so the file stays open until the
// Dataset is closed.
func (HDF5Loader) Load(path string) (*Dataset, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	ds, err := index(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	ds.Path = path
	ds.closer = f
	return ds, nil
}

func index(f *hdf5.File) (*Dataset, error) {
	type entry struct {
		kind  string
		idx   int
		field string
		ds    *hdf5.Dataset
	}
	var (
		entries []entry
		info    *hdf5.Dataset
		walkErr error
	)
	f.Walk(func(path string, obj hdf5.Object) {
		d, ok := obj.(*hdf5.Dataset)
		if !ok || walkErr != nil {
			return
		}
		name := strings.TrimPrefix(path, "/")
		if name == systemInfoName {
			info = d
			return
		}
		m := entityName.FindStringSubmatch(name)
		if m == nil {
			return
		}
		i, err := strconv.Atoi(m[2])
		if err != nil {
			walkErr = fmt.Errorf("dataset %s: %w", name, err)
			return
		}
		entries = append(entries, entry{kind: m[1], idx: i, field: m[3], ds: d})
	})
	if walkErr != nil {
		return nil, walkErr
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].kind != entries[b].kind {
			return entries[a].kind < entries[b].kind
		}
		return entries[a].idx < entries[b].idx
	})

	out := &Dataset{}
	for _, e := range entries {
		src, err := newSource(e.ds)
		if err != nil {
			return nil, err
		}
		uid := stringAttr(e.ds, attrUID)
		switch e.kind {
		case "wfs":
			for len(out.Sensors) <= e.idx {
				out.Sensors = append(out.Sensors, WavefrontSensor{UID: fmt.Sprintf("wfs_%d", len(out.Sensors))})
			}
			s := &out.Sensors[e.idx]
			if uid != "" {
				s.UID = uid
			}
			switch e.field {
			case "pixels":
				s.Pixels = src
			case "slopes":
				s.Slopes = src
			case "subaperture_mask":
				s.SubapertureMask = src
			}
		case "loop":
			for len(out.Loops) <= e.idx {
				out.Loops = append(out.Loops, Loop{UID: fmt.Sprintf("loop_%d", len(out.Loops))})
			}
			l := &out.Loops[e.idx]
			if uid != "" {
				l.UID = uid
			}
			if e.field == "commands" {
				l.Commands = src
				if v, ok := intAttr(e.ds, attrCorrectorIndex); ok {
					l.CorrectorIndex = &v
				}
				if v, ok := floatAttr(e.ds, attrFramerate); ok {
					l.Framerate = &v
				}
			}
		case "corrector":
			for len(out.Correctors) <= e.idx {
				out.Correctors = append(out.Correctors, Corrector{UID: fmt.Sprintf("corrector_%d", len(out.Correctors))})
			}
			c := &out.Correctors[e.idx]
			if uid != "" {
				c.UID = uid
			}
			if e.field == "influence" {
				c.InfluenceFunction = src
			}
		}
	}

	if info != nil {
		out.Info = SystemInfo{
			Name:      stringAttr(info, "system_name"),
			Telescope: stringAttr(info, "telescope_name"),
			Mode:      stringAttr(info, "mode"),
		}
		if v, ok := intAttr(info, "start_unix"); ok {
			t := time.Unix(int64(v), 0).UTC()
			out.Info.Start = &t
		}
		if v, ok := intAttr(info, "end_unix"); ok {
			t := time.Unix(int64(v), 0).UTC()
			out.Info.End = &t
		}
	}
	return out, nil
}

// hdf5Source reads hyperslabs straight from the file.
type hdf5Source struct {
	ds    *hdf5.Dataset
	shape []int
}

func newSource(ds *hdf5.Dataset) (*hdf5Source, error) {
	raw, err := ds.ReadAttribute(attrShape)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", ds.Name(), err)
	}
	shape, err := toInts(raw)
	if err != nil {
		return nil, fmt.Errorf("dataset %s shape: %w", ds.Name(), err)
	}
	return &hdf5Source{ds: ds, shape: shape}, nil
}

func (s *hdf5Source) Shape() []int { return append([]int(nil), s.shape...) }

func (s *hdf5Source) ReadSlice(start, count []int) (*ndarray.Array, error) {
	if len(start) != len(s.shape) || len(count) != len(s.shape) {
		return nil, fmt.Errorf("dataset %s: selection rank does not match shape %v", s.ds.Name(), s.shape)
	}
	st := make([]uint64, len(start))
	ct := make([]uint64, len(count))
	for i := range start {
		if start[i] < 0 || count[i] < 0 || start[i]+count[i] > s.shape[i] {
			return nil, fmt.Errorf("dataset %s: selection out of bounds in dimension %d", s.ds.Name(), i)
		}
		st[i], ct[i] = uint64(start[i]), uint64(count[i])
	}
	for _, c := range count {
		if c == 0 {
			return ndarray.New(count...), nil
		}
	}
	raw, err := s.ds.ReadSlice(st, ct)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", s.ds.Name(), err)
	}
	data, err := toFloats(raw)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", s.ds.Name(), err)
	}
	return ndarray.FromData(data, count...)
}

func (s *hdf5Source) ReadAll() (*ndarray.Array, error) {
	data, err := s.ds.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", s.ds.Name(), err)
	}
	return ndarray.FromData(data, s.shape...)
}

func toFloats(raw any) ([]float64, error) {
	switch v := raw.(type) {
	case []float64:
		return v, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported element type %T", raw)
	}
}

func toInts(raw any) ([]int, error) {
	switch v := raw.(type) {
	case int64:
		return []int{int(v)}, nil
	case int32:
		return []int{int(v)}, nil
	case []int64:
		out := make([]int, len(v))
		for i, x := range v {
			out[i] = int(x)
		}
		return out, nil
	case []int32:
		out := make([]int, len(v))
		for i, x := range v {
			out[i] = int(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type %T", raw)
	}
}

func stringAttr(ds *hdf5.Dataset, name string) string {
	raw, err := ds.ReadAttribute(name)
	if err != nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func intAttr(ds *hdf5.Dataset, name string) (int, bool) {
	raw, err := ds.ReadAttribute(name)
	if err != nil {
		return 0, false
	}
	v, err := toInts(raw)
	if err != nil || len(v) == 0 {
		return 0, false
	}
	return v[0], true
}

func floatAttr(ds *hdf5.Dataset, name string) (float64, bool) {
	raw, err := ds.ReadAttribute(name)
	if err != nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case []float64:
		if len(v) > 0 {
			return v[0], true
		}
	}
	return 0, false
}
