// Command gen-aot generates a synthetic telemetry container for local
// testing, optionally previews one pixel and uploads the file to a server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/chart"
	"github.com/banshee-data/aotrack/internal/httputil"
	"github.com/banshee-data/aotrack/internal/security"
)

func main() {
	def := aotdata.DefaultSyntheticConfig()
	output := flag.String("o", "synthetic.h5", "output path")
	frames := flag.Int("n", def.Frames, "number of frames")
	cols := flag.Int("cols", def.Cols, "pixel columns")
	rows := flag.Int("rows", def.Rows, "pixel rows")
	actuators := flag.Int("actuators", def.Actuators, "number of actuators")
	noise := flag.Float64("noise", def.Noise, "uniform noise amplitude")
	seed := flag.Uint64("seed", def.Seed, "random seed")
	preview := flag.String("preview", "", "write a PNG time series of the central pixel to this path")
	upload := flag.String("upload", "", "base URL of a running server to upload the file to")
	flag.Parse()

	if err := security.ValidateOutputPath(*output); err != nil {
		log.Fatalf("refusing to write %s: %v", *output, err)
	}

	cfg := aotdata.SyntheticConfig{
		Frames: *frames, Cols: *cols, Rows: *rows, Actuators: *actuators,
		Noise: *noise, Seed: *seed,
	}
	ds := aotdata.Synthetic(cfg)
	if err := aotdata.WriteHDF5(*output, ds); err != nil {
		log.Fatalf("write %s: %v", *output, err)
	}
	log.Printf("✓ Created: %s (%d frames, %dx%d pixels, %d actuators)", *output, cfg.Frames, cfg.Cols, cfg.Rows, cfg.Actuators)

	if *preview != "" {
		if err := writePreview(*preview, ds, cfg); err != nil {
			log.Fatalf("preview: %v", err)
		}
		log.Printf("✓ Preview: %s", *preview)
	}

	if *upload != "" {
		f, err := os.Open(*output)
		if err != nil {
			log.Fatalf("open %s: %v", *output, err)
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		up := &httputil.Uploader{Client: httputil.NewStandardClient(nil), BaseURL: *upload}
		reply, err := up.Upload(ctx, filepath.Base(*output), f)
		if err != nil {
			log.Fatalf("upload: %v", err)
		}
		log.Printf("✓ Uploaded to %s, session %s", *upload, reply.Session)
	}
}

func writePreview(path string, ds *aotdata.Dataset, cfg aotdata.SyntheticConfig) error {
	if err := security.ValidateOutputPath(path); err != nil {
		return err
	}
	col, row := cfg.Cols/2, cfg.Rows/2
	all, err := ds.Sensors[0].Pixels.ReadSlice([]int{0, col, row}, []int{cfg.Frames, 1, 1})
	if err != nil {
		return err
	}
	png, err := chart.SeriesPNG("Synthetic pixel", all.Data())
	if err != nil {
		return err
	}
	return os.WriteFile(path, png, 0o644)
}
