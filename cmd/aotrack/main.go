// Command aotrack serves windowed views of uploaded adaptive-optics
// telemetry to the browser front end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/aotrack/internal/aotdata"
	"github.com/banshee-data/aotrack/internal/api"
	"github.com/banshee-data/aotrack/internal/config"
	"github.com/banshee-data/aotrack/internal/fsutil"
	"github.com/banshee-data/aotrack/internal/journal"
	"github.com/banshee-data/aotrack/internal/session"
	"github.com/banshee-data/aotrack/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON or YAML server config")
	envFile     = flag.String("env-file", ".env", "Optional dotenv file read before the environment")
	listen      = flag.String("listen", "", "Listen address (overrides config, default :8000)")
	uploadDir   = flag.String("upload-dir", "", "Directory for spooled uploads (overrides config)")
	journalDSN  = flag.String("journal", "", "SQLite DSN of the session journal (overrides config)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// loadConfig layers the config file, .env, AOTRACK_* variables and flags,
// in that order.
func loadConfig(lookup func(string) (string, bool)) (*config.ServerConfig, error) {
	if err := config.LoadDotEnv(*envFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}
	cfg := config.EmptyServerConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadServerConfig(*configPath); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(lookup)
	if *listen != "" {
		cfg.Listen = listen
	}
	if *uploadDir != "" {
		cfg.UploadDir = uploadDir
	}
	if *journalDSN != "" {
		cfg.JournalPath = journalDSN
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func apiOptions(cfg *config.ServerConfig) api.Options {
	return api.Options{
		UploadDir:      cfg.GetUploadDir(),
		MaxUploadBytes: cfg.GetMaxUploadBytes(),
		CookieSecure:   cfg.GetCookieSecure(),
		AllowedOrigins: cfg.GetAllowedOrigins(),
		Params:         cfg.GetTransformParams(),
		FrameChunk:     cfg.GetFrameChunk(),
		NumBins:        cfg.GetNumBins(),
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(os.LookupEnv)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	spool := cfg.GetUploadDir()
	if err := os.MkdirAll(spool, 0o700); err != nil {
		log.Fatalf("failed to create upload directory %s: %v", spool, err)
	}

	j, err := journal.Open(cfg.GetJournalPath())
	if err != nil {
		log.Fatalf("Failed to open session journal: %v", err)
	}
	defer j.Close()

	store := session.NewStore(session.Options{
		Timeout:  cfg.GetSessionTimeout(),
		FS:       fsutil.OSFileSystem{},
		SpoolDir: spool,
		Observer: j,
	})

	srv := api.NewServer(store, aotdata.HDF5Loader{}, fsutil.OSFileSystem{}, j, apiOptions(cfg))
	handler, err := srv.Router()
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// evict idle sessions and their files
	wg.Add(1)
	go func() {
		defer wg.Done()
		sw := &session.Sweeper{Store: store, Interval: cfg.GetSweepInterval()}
		sw.Run(ctx)
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: handler,
		}

		go func() {
			log.Printf("%s listening on %s (uploads in %s)", version.String(), server.Addr, spool)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownWait())
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	// Sessions do not survive a restart, so their spooled files go too.
	for _, s := range store.List() {
		store.DeleteOne(s.Token)
	}
	log.Printf("Graceful shutdown complete")
}
