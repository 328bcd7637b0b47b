// Package config loads the YAML configuration of the zipper command.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Config holds the tunables of the viewer, editing sessions and logging.
type Config struct {
	// TempDir is the root for extraction caches and session trees.
	// Empty means the host default.
	TempDir string `yaml:"temp_dir"`

	// Namespace prefixes the cache ("<ns>.e") and session ("<ns>.u")
	// directories under TempDir.
	Namespace string `yaml:"namespace"`

	PollInterval time.Duration `yaml:"poll_interval"`
	Debounce     time.Duration `yaml:"debounce"`

	// Tolerance is the allowed mtime drift for reusing cached entries.
	Tolerance time.Duration `yaml:"tolerance"`

	// Workers bounds concurrent writes during bulk extraction.
	// Zero uses GOMAXPROCS.
	Workers int `yaml:"workers"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Namespace:    "zipper",
		PollInterval: 2 * time.Second,
		Tolerance:    time.Second,
		LogLevel:     "info",
	}
}

// Load reads the file at path over the defaults. A missing file yields the
// defaults unchanged.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, err
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML from r over the defaults and validates the result.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Namespace == "" || strings.ContainsAny(c.Namespace, `/\`):
		return fmt.Errorf("namespace %q must be a single path element", c.Namespace)
	case c.PollInterval <= 0:
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	case c.Debounce < 0:
		return fmt.Errorf("debounce must not be negative, got %s", c.Debounce)
	case c.Tolerance < 0:
		return fmt.Errorf("tolerance must not be negative, got %s", c.Tolerance)
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	_, err := c.Level()
	return err
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
