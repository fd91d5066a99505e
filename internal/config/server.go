// Package config loads the server configuration from a JSON or YAML file,
// then layers .env, environment and flag overrides on top.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/aotrack/internal/fsutil"
	"github.com/banshee-data/aotrack/internal/journal"
	"github.com/banshee-data/aotrack/internal/transform"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Environment variables applied over the file.
const (
	EnvListen    = "AOTRACK_LISTEN"
	EnvUploadDir = "AOTRACK_UPLOAD_DIR"
	EnvJournal   = "AOTRACK_JOURNAL"
)

// ZScaleConfig overrides individual zscale parameters.
type ZScaleConfig struct {
	NSamples      *int     `json:"n_samples,omitempty" yaml:"n_samples,omitempty"`
	Contrast      *float64 `json:"contrast,omitempty" yaml:"contrast,omitempty"`
	MaxReject     *float64 `json:"max_reject,omitempty" yaml:"max_reject,omitempty"`
	MinNPixels    *int     `json:"min_npixels,omitempty" yaml:"min_npixels,omitempty"`
	KRej          *float64 `json:"krej,omitempty" yaml:"krej,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
}

// ServerConfig is the root configuration. Omitted fields fall back to the
// defaults returned by the Get* accessors, so partial files are safe.
type ServerConfig struct {
	Listen         *string  `json:"listen,omitempty" yaml:"listen,omitempty"`
	UploadDir      *string  `json:"upload_dir,omitempty" yaml:"upload_dir,omitempty"`
	SessionTimeout *string  `json:"session_timeout,omitempty" yaml:"session_timeout,omitempty"` // duration string like "1h"
	SweepInterval  *string  `json:"sweep_interval,omitempty" yaml:"sweep_interval,omitempty"`
	ShutdownWait   *string  `json:"shutdown_wait,omitempty" yaml:"shutdown_wait,omitempty"`
	MaxUploadBytes *int64   `json:"max_upload_bytes,omitempty" yaml:"max_upload_bytes,omitempty"`
	CookieSecure   *bool    `json:"cookie_secure,omitempty" yaml:"cookie_secure,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
	JournalPath    *string  `json:"journal_path,omitempty" yaml:"journal_path,omitempty"`

	// Transform and windowing
	Percentile *float64      `json:"percentile,omitempty" yaml:"percentile,omitempty"`
	ZScale     *ZScaleConfig `json:"zscale,omitempty" yaml:"zscale,omitempty"`
	FrameChunk *int          `json:"frame_chunk,omitempty" yaml:"frame_chunk,omitempty"`
	NumBins    *int          `json:"num_bins,omitempty" yaml:"num_bins,omitempty"`
}

// Helper functions to create pointers
func ptrString(v string) *string { return &v }

// EmptyServerConfig returns a ServerConfig with all fields unset.
func EmptyServerConfig() *ServerConfig {
	return &ServerConfig{}
}

// LoadServerConfig reads path from the OS filesystem.
func LoadServerConfig(path string) (*ServerConfig, error) {
	return LoadServerConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadServerConfigFS loads a ServerConfig from a .json, .yaml or .yml file.
func LoadServerConfigFS(fsys fsutil.FileSystem, path string) (*ServerConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyServerConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overwriting variables that are already set. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overrides fields from the AOTRACK_* variables.
func (c *ServerConfig) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvListen); ok && v != "" {
		c.Listen = ptrString(v)
	}
	if v, ok := lookup(EnvUploadDir); ok && v != "" {
		c.UploadDir = ptrString(v)
	}
	if v, ok := lookup(EnvJournal); ok && v != "" {
		c.JournalPath = ptrString(v)
	}
}

// Validate checks that the configuration values are valid.
func (c *ServerConfig) Validate() error {
	durations := []struct {
		name string
		v    *string
	}{
		{"session_timeout", c.SessionTimeout},
		{"sweep_interval", c.SweepInterval},
		{"shutdown_wait", c.ShutdownWait},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, *d.v)
		}
	}

	if c.MaxUploadBytes != nil && *c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", *c.MaxUploadBytes)
	}
	if c.Percentile != nil && (*c.Percentile <= 0 || *c.Percentile > 100) {
		return fmt.Errorf("percentile must be in (0, 100], got %g", *c.Percentile)
	}
	if c.FrameChunk != nil && *c.FrameChunk < 1 {
		return fmt.Errorf("frame_chunk must be positive, got %d", *c.FrameChunk)
	}
	if c.NumBins != nil && (*c.NumBins < 1 || *c.NumBins > 10000) {
		return fmt.Errorf("num_bins must be between 1 and 10000, got %d", *c.NumBins)
	}
	if err := c.GetZScale().Validate(); err != nil {
		return fmt.Errorf("zscale: %w", err)
	}
	return nil
}

// GetListen returns the listen address or the default.
func (c *ServerConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8000"
	}
	return *c.Listen
}

// GetUploadDir returns the upload spool directory or the default.
func (c *ServerConfig) GetUploadDir() string {
	if c.UploadDir == nil || *c.UploadDir == "" {
		return filepath.Join(os.TempDir(), "aotrack")
	}
	return *c.UploadDir
}

func duration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetSessionTimeout returns the idle lifetime of a session.
func (c *ServerConfig) GetSessionTimeout() time.Duration {
	return duration(c.SessionTimeout, time.Hour)
}

// GetSweepInterval returns the period of the session sweeper.
func (c *ServerConfig) GetSweepInterval() time.Duration {
	return duration(c.SweepInterval, 10*time.Minute)
}

// GetShutdownWait returns how long in-flight requests get on shutdown.
func (c *ServerConfig) GetShutdownWait() time.Duration {
	return duration(c.ShutdownWait, 5*time.Second)
}

// GetMaxUploadBytes returns the upload size cap.
func (c *ServerConfig) GetMaxUploadBytes() int64 {
	if c.MaxUploadBytes == nil {
		return 2 << 30 // 2 GiB
	}
	return *c.MaxUploadBytes
}

// GetCookieSecure reports whether the session cookie carries Secure.
func (c *ServerConfig) GetCookieSecure() bool {
	if c.CookieSecure == nil {
		return false
	}
	return *c.CookieSecure
}

// GetAllowedOrigins returns the CORS origins allowed with credentials.
func (c *ServerConfig) GetAllowedOrigins() []string {
	if len(c.AllowedOrigins) == 0 {
		return []string{"http://localhost:5173", "http://localhost:5174", "http://localhost:4173"}
	}
	return c.AllowedOrigins
}

// GetJournalPath returns the journal DSN.
func (c *ServerConfig) GetJournalPath() string {
	if c.JournalPath == nil || *c.JournalPath == "" {
		return journal.DefaultDSN
	}
	return *c.JournalPath
}

// GetFrameChunk returns the number of frames served per get-frame-range call.
func (c *ServerConfig) GetFrameChunk() int {
	if c.FrameChunk == nil {
		return 10
	}
	return *c.FrameChunk
}

// GetNumBins returns the default histogram bin count.
func (c *ServerConfig) GetNumBins() int {
	if c.NumBins == nil {
		return 20
	}
	return *c.NumBins
}

// GetZScale merges zscale overrides onto the defaults.
func (c *ServerConfig) GetZScale() transform.ZScaleParams {
	p := transform.DefaultZScaleParams()
	z := c.ZScale
	if z == nil {
		return p
	}
	if z.NSamples != nil {
		p.NSamples = *z.NSamples
	}
	if z.Contrast != nil {
		p.Contrast = *z.Contrast
	}
	if z.MaxReject != nil {
		p.MaxReject = *z.MaxReject
	}
	if z.MinNPixels != nil {
		p.MinNPixels = *z.MinNPixels
	}
	if z.KRej != nil {
		p.KRej = *z.KRej
	}
	if z.MaxIterations != nil {
		p.MaxIterations = *z.MaxIterations
	}
	return p
}

// GetTransformParams returns the interval tunables.
func (c *ServerConfig) GetTransformParams() transform.Params {
	p := transform.DefaultParams()
	if c.Percentile != nil {
		p.Percentile = *c.Percentile
	}
	p.ZScale = c.GetZScale()
	return p
}
