package aotdata

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/banshee-data/aotrack/internal/ndarray"
)

// SyntheticConfig sizes a generated single-sensor, single-loop dataset.
type SyntheticConfig struct {
	Frames    int
	Cols      int
	Rows      int
	Actuators int
	// Noise is the amplitude of uniform noise added to pixels and slopes.
	Noise float64
	Seed  uint64
}

// DefaultSyntheticConfig returns a small dataset suitable for demos.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{Frames: 200, Cols: 16, Rows: 16, Actuators: 25, Noise: 0.05, Seed: 1}
}

// PupilMask returns a (cols, rows) circular pupil: a dense row-major
// subaperture index inside the circle and -1 outside.
func PupilMask(cols, rows int) *ndarray.Array {
	mask := ndarray.New(cols, rows)
	cc, cr := float64(cols-1)/2, float64(rows-1)/2
	radius := math.Min(float64(cols), float64(rows)) / 2
	n := 0
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			dc, dr := float64(c)-cc, float64(r)-cr
			if dc*dc+dr*dr <= radius*radius {
				mask.Set(float64(n), c, r)
				n++
			} else {
				mask.Set(-1, c, r)
			}
		}
	}
	return mask
}

// Synthetic builds an in-memory dataset with one sensor, one loop and one
// corrector. Pixel values encode their position:
// pixels[f,c,r] = 1000*f + c*rows + r (+ noise).
// The influence function is a Gaussian per actuator, NaN outside the pupil.
func Synthetic(cfg SyntheticConfig) *Dataset {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	noise := func() float64 {
		if cfg.Noise == 0 {
			return 0
		}
		return (rng.Float64()*2 - 1) * cfg.Noise
	}

	pixels := ndarray.New(cfg.Frames, cfg.Cols, cfg.Rows)
	for f := 0; f < cfg.Frames; f++ {
		for c := 0; c < cfg.Cols; c++ {
			for r := 0; r < cfg.Rows; r++ {
				pixels.Set(float64(1000*f+c*cfg.Rows+r)+noise(), f, c, r)
			}
		}
	}

	mask := PupilMask(cfg.Cols, cfg.Rows)
	nsub := 0
	for _, v := range mask.Data() {
		if v >= 0 {
			nsub++
		}
	}
	slopes := ndarray.New(cfg.Frames, 2, nsub)
	for f := 0; f < cfg.Frames; f++ {
		for i := 0; i < nsub; i++ {
			v := float64(f) + 0.1*float64(i)
			slopes.Set(v+noise(), f, 0, i)
			slopes.Set(-v+noise(), f, 1, i)
		}
	}

	influence := ndarray.New(cfg.Actuators, cfg.Cols, cfg.Rows)
	side := int(math.Ceil(math.Sqrt(float64(cfg.Actuators))))
	sigma := math.Max(float64(cfg.Cols), float64(cfg.Rows)) / float64(side+1)
	for a := 0; a < cfg.Actuators; a++ {
		ac := (float64(a/side) + 1) * float64(cfg.Cols) / float64(side+1)
		ar := (float64(a%side) + 1) * float64(cfg.Rows) / float64(side+1)
		for c := 0; c < cfg.Cols; c++ {
			for r := 0; r < cfg.Rows; r++ {
				if mask.At(c, r) < 0 {
					influence.Set(math.NaN(), a, c, r)
					continue
				}
				dc, dr := float64(c)-ac, float64(r)-ar
				influence.Set(math.Exp(-(dc*dc+dr*dr)/(2*sigma*sigma)), a, c, r)
			}
		}
	}

	commands := ndarray.New(cfg.Frames, cfg.Actuators)
	for f := 0; f < cfg.Frames; f++ {
		for a := 0; a < cfg.Actuators; a++ {
			commands.Set(math.Sin(0.1*float64(f)+float64(a)), f, a)
		}
	}

	corrector := 0
	framerate := 1000.0
	start := time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC)
	end := start.Add(time.Duration(float64(cfg.Frames)/framerate*float64(time.Second)) + time.Second)
	return &Dataset{
		Info: SystemInfo{Name: "synthetic", Telescope: "testbench", Mode: "SCAO", Start: &start, End: &end},
		Sensors: []WavefrontSensor{{
			UID:             "wfs_0",
			Pixels:          pixels,
			Slopes:          slopes,
			SubapertureMask: mask,
		}},
		Loops: []Loop{{
			UID:            "loop_0",
			Commands:       commands,
			CorrectorIndex: &corrector,
			Framerate:      &framerate,
		}},
		Correctors: []Corrector{{UID: "dm_0", InfluenceFunction: influence}},
	}
}
