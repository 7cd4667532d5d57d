// Package config holds the settings of the phyalf command.
//
// Settings come from a YAML file, then environment variables, then command
// line flags, each overriding the previous one.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/phyalf/codec"
	"github.com/hupe1980/phyalf/internal/compress"
)

// Config is the root configuration.
type Config struct {
	Convert ConvertConfig `yaml:"convert"`
	Publish PublishConfig `yaml:"publish"`
	Logging LoggingConfig `yaml:"logging"`
}

// ConvertConfig configures phyalf convert.
type ConvertConfig struct {
	Force      bool    `yaml:"force"`
	Label      string  `yaml:"label"`
	AmpScale   float64 `yaml:"amp_scale"`
	Channels   int     `yaml:"channels"`
	DepthBatch int     `yaml:"depth_batch"`
}

// PublishConfig configures phyalf publish.
type PublishConfig struct {
	Backend     string `yaml:"backend"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Endpoint    string `yaml:"endpoint"`
	Region      string `yaml:"region"`
	Secure      bool   `yaml:"secure"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Compression string `yaml:"compression"`
	// ManifestCodec names the codec that encodes the manifest.
	ManifestCodec string `yaml:"manifest_codec"`
	Concurrency   int    `yaml:"concurrency"`
	Rate          int64  `yaml:"rate"`
	CommitTable   string `yaml:"commit_table"`
}

// LoggingConfig configures the command's logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Backends lists the supported publish backends.
var Backends = []string{"local", "s3", "minio"}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Convert: ConvertConfig{
			AmpScale:   1,
			Channels:   32,
			DepthBatch: 50000,
		},
		Publish: PublishConfig{
			Backend:       "local",
			Compression:   "none",
			ManifestCodec: codec.Default.Name(),
			Concurrency:   4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path on top of the defaults and applies
// environment overrides. A missing file or an empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v, ok := os.LookupEnv("PHYALF_LABEL"); ok {
		c.Convert.Label = v
	}
	if v := os.Getenv("PHYALF_FORCE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PHYALF_FORCE: %w", err)
		}
		c.Convert.Force = b
	}
	if v := os.Getenv("PHYALF_AMP_SCALE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PHYALF_AMP_SCALE: %w", err)
		}
		c.Convert.AmpScale = f
	}
	if v := os.Getenv("PHYALF_BUCKET"); v != "" {
		c.Publish.Bucket = v
	}
	if v := os.Getenv("PHYALF_ENDPOINT"); v != "" {
		c.Publish.Endpoint = v
	}
	if v := os.Getenv("PHYALF_ACCESS_KEY"); v != "" {
		c.Publish.AccessKey = v
	}
	if v := os.Getenv("PHYALF_SECRET_KEY"); v != "" {
		c.Publish.SecretKey = v
	}
	if v := os.Getenv("PHYALF_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks the values a command is about to use.
func (c *Config) Validate() error {
	if s := c.Convert.AmpScale; s <= 0 || math.IsInf(s, 0) || math.IsNaN(s) {
		return fmt.Errorf("invalid amplitude scale: %v", s)
	}
	if c.Convert.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", c.Convert.Channels)
	}
	if !slices.Contains(Backends, c.Publish.Backend) {
		return fmt.Errorf("invalid backend: %s (valid: %v)", c.Publish.Backend, Backends)
	}
	if _, err := compress.ParseType(c.Publish.Compression); err != nil {
		return err
	}
	if _, err := codec.Lookup(c.Publish.ManifestCodec); err != nil {
		return err
	}
	if c.Publish.Rate < 0 {
		return fmt.Errorf("invalid rate: %d", c.Publish.Rate)
	}
	if c.Publish.CommitTable != "" && c.Publish.Backend != "s3" {
		return errors.New("commit_table requires the s3 backend")
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}
	return nil
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (c LoggingConfig) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level: %w", err)
	}
	return l, nil
}
