package aotdata

import (
	"fmt"

	"github.com/scigolib/hdf5"
)

// WriteHDF5 writes ds to path in the container layout read by HDF5Loader,
// truncating any existing file. Every present Source is fully read.
func WriteHDF5(path string, ds *Dataset) error {
	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := writeEntities(fw, ds); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}

func writeEntities(fw *hdf5.FileWriter, ds *Dataset) error {
	for i, s := range ds.Sensors {
		for _, f := range []struct {
			field string
			src   Source
		}{
			{"pixels", s.Pixels},
			{"slopes", s.Slopes},
			{"subaperture_mask", s.SubapertureMask},
		} {
			if f.src == nil {
				continue
			}
			dw, err := writeArray(fw, fmt.Sprintf("/wfs_%d_%s", i, f.field), f.src)
			if err != nil {
				return err
			}
			if err := writeUID(dw, s.UID); err != nil {
				return err
			}
		}
	}

	for i, l := range ds.Loops {
		if l.Commands == nil {
			continue
		}
		dw, err := writeArray(fw, fmt.Sprintf("/loop_%d_commands", i), l.Commands)
		if err != nil {
			return err
		}
		if err := writeUID(dw, l.UID); err != nil {
			return err
		}
		if l.CorrectorIndex != nil {
			if err := dw.WriteAttribute(attrCorrectorIndex, int64(*l.CorrectorIndex)); err != nil {
				return fmt.Errorf("loop %d corrector_index: %w", i, err)
			}
		}
		if l.Framerate != nil {
			if err := dw.WriteAttribute(attrFramerate, *l.Framerate); err != nil {
				return fmt.Errorf("loop %d framerate: %w", i, err)
			}
		}
	}

	for i, c := range ds.Correctors {
		if c.InfluenceFunction == nil {
			continue
		}
		dw, err := writeArray(fw, fmt.Sprintf("/corrector_%d_influence", i), c.InfluenceFunction)
		if err != nil {
			return err
		}
		if err := writeUID(dw, c.UID); err != nil {
			return err
		}
	}

	return writeInfo(fw, ds.Info)
}

func writeArray(fw *hdf5.FileWriter, name string, src Source) (*hdf5.DatasetWriter, error) {
	arr, err := src.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	shape := arr.Shape()
	dims := make([]uint64, len(shape))
	shapeAttr := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = uint64(d)
		shapeAttr[i] = int64(d)
	}
	dw, err := fw.CreateDataset(name, hdf5.Float64, dims)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	if err := dw.Write(arr.Data()); err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	if err := dw.WriteAttribute(attrShape, shapeAttr); err != nil {
		return nil, fmt.Errorf("write %s shape: %w", name, err)
	}
	return dw, nil
}

func writeUID(dw *hdf5.DatasetWriter, uid string) error {
	if uid == "" {
		return nil
	}
	return dw.WriteAttribute(attrUID, uid)
}

func writeInfo(fw *hdf5.FileWriter, info SystemInfo) error {
	if info == (SystemInfo{}) {
		return nil
	}
	dw, err := fw.CreateDataset("/"+systemInfoName, hdf5.Float64, []uint64{1})
	if err != nil {
		return fmt.Errorf("create system_info: %w", err)
	}
	if err := dw.Write([]float64{0}); err != nil {
		return fmt.Errorf("write system_info: %w", err)
	}
	for name, v := range map[string]string{
		"system_name":    info.Name,
		"telescope_name": info.Telescope,
		"mode":           info.Mode,
	} {
		if v == "" {
			continue
		}
		if err := dw.WriteAttribute(name, v); err != nil {
			return fmt.Errorf("system_info %s: %w", name, err)
		}
	}
	if info.Start != nil {
		if err := dw.WriteAttribute("start_unix", info.Start.Unix()); err != nil {
			return fmt.Errorf("system_info start_unix: %w", err)
		}
	}
	if info.End != nil {
		if err := dw.WriteAttribute("end_unix", info.End.Unix()); err != nil {
			return fmt.Errorf("system_info end_unix: %w", err)
		}
	}
	return nil
}
