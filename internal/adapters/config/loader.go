// Package config provides the configuration loader for pms.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/pms/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath overrides the configuration file location.
	EnvConfigPath = "PMS_CONFIG"

	defaultConfigPath = "/etc/pms/pms.yaml"
	defaultRootDir    = "/"
	defaultStateDir   = "/var/lib/pms"
	defaultCacheDir   = "/var/cache/pms"

	defaultFetchRetries = 4
	defaultFetchTimeout = 30 * time.Second
)

// Config is the resolved host configuration. All paths are absolute.
type Config struct {
	// RootDir is where package data files are installed.
	RootDir string
	// StateDir holds the installed-set snapshot, per-package control
	// files and the operation lock.
	StateDir string
	// CacheDir holds downloaded archives, the merged index snapshot and
	// the extraction staging area.
	CacheDir string
	// SourcesPath is the repository sources list file.
	SourcesPath string

	FetchRetries uint64
	FetchTimeout time.Duration
}

// StatusPath returns the installed-set snapshot file.
func (c *Config) StatusPath() string {
	return filepath.Join(c.StateDir, domain.StatusFileName)
}

// InfoDir returns the directory keeping each installed package's control
// files.
func (c *Config) InfoDir() string {
	return filepath.Join(c.StateDir, "info")
}

// LockPath returns the host operation lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir, domain.LockFileName)
}

// ArchiveDir returns the archive download cache.
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.CacheDir, "archives")
}

// TempDir returns the extraction staging area.
func (c *Config) TempDir() string {
	return filepath.Join(c.CacheDir, "tmp")
}

// SnapshotPath returns the merged repository index snapshot.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.CacheDir, domain.IndexFileName)
}

// Loader implements the configuration loader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// DefaultPath returns the configuration file location, honoring the
// PMS_CONFIG override.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return defaultConfigPath
}

// Load reads the configuration file at path and resolves it against the
// defaults. A missing file is not an error; the defaults apply.
func (l *Loader) Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	var file File
	raw, err := os.ReadFile(path) // #nosec G304 -- operator-chosen path
	switch {
	case os.IsNotExist(err):
		l.Logger.Info("no configuration file, using defaults", "path", path)
	case err != nil:
		return nil, zerr.With(errors.Join(domain.ErrConfigLoadFailed, err), "path", path)
	default:
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, zerr.With(errors.Join(domain.ErrConfigLoadFailed, err), "path", path)
		}
	}

	return l.resolve(&file, path)
}

func (l *Loader) resolve(file *File, path string) (*Config, error) {
	cfg := &Config{
		RootDir:      defaultRootDir,
		StateDir:     defaultStateDir,
		CacheDir:     defaultCacheDir,
		FetchRetries: defaultFetchRetries,
		FetchTimeout: defaultFetchTimeout,
	}

	var err error
	if cfg.RootDir, err = absOr(file.Root, cfg.RootDir); err != nil {
		return nil, badField(err, path, "root")
	}
	if cfg.StateDir, err = absOr(file.State, cfg.StateDir); err != nil {
		return nil, badField(err, path, "state")
	}
	if cfg.CacheDir, err = absOr(file.Cache, cfg.CacheDir); err != nil {
		return nil, badField(err, path, "cache")
	}
	if cfg.SourcesPath, err = absOr(file.Sources, filepath.Join(cfg.StateDir, domain.SourcesFileName)); err != nil {
		return nil, badField(err, path, "sources")
	}

	if file.Fetch.Retries < 0 {
		return nil, badField(zerr.New("retries must not be negative"), path, "fetch.retries")
	}
	if file.Fetch.Retries > 0 {
		cfg.FetchRetries = uint64(file.Fetch.Retries)
	}
	if file.Fetch.Timeout != "" {
		d, err := time.ParseDuration(file.Fetch.Timeout)
		if err != nil || d <= 0 {
			return nil, badField(zerr.New("timeout must be a positive duration"), path, "fetch.timeout")
		}
		cfg.FetchTimeout = d
	}

	return cfg, nil
}

func absOr(value, fallback string) (string, error) {
	if value == "" {
		return fallback, nil
	}
	return filepath.Abs(value)
}

func badField(err error, path, field string) error {
	return zerr.With(
		zerr.With(errors.Join(domain.ErrConfigLoadFailed, err), "path", path),
		"field", field,
	)
}
