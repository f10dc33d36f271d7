// Package config provides configuration management for nebulaec.
//
// Configuration is loaded from multiple sources with the following precedence:
//  1. Command-line options (highest priority)
//  2. Environment variables (NEBULAEC_* prefix)
//  3. Configuration file (nebulaec.yaml)
//  4. Preset and default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load("/etc/nebulaec/nebulaec.yaml", config.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/piwi3910/nebulaec/internal/compression"
	"github.com/piwi3910/nebulaec/internal/erasure/driver"
	"github.com/piwi3910/nebulaec/internal/erasure/engine"
)

// Default values.
const (
	DefaultSegmentSize = 1 << 20 // 1MiB
	DefaultDataDir     = "./data"
	dirPermissions     = 0750
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for nebulaec
type Config struct {
	// Erasure driver selection and geometry
	Driver DriverConfig `mapstructure:"driver"`

	// SegmentSize is the maximum number of bytes encoded in one driver call
	SegmentSize int `mapstructure:"segment_size"`

	// Workers is the number of segments processed concurrently (0 = GOMAXPROCS)
	Workers int `mapstructure:"workers"`

	// DataDir is where the fragment store keeps fragments and manifests
	DataDir string `mapstructure:"data_dir"`

	// Compression applied before segmentation
	Compression compression.Config `mapstructure:"compression"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

// DriverConfig embeds the driver configuration and adds an optional preset
// that supplies k and m when they are not set explicitly.
type DriverConfig struct {
	driver.Config `mapstructure:",squash"`

	Preset driver.Preset `mapstructure:"preset"`
}

// Options are command line overrides. Nil or empty fields are not applied.
type Options struct {
	DataDir         string
	DriverType      string
	Preset          string
	DataFragments   *int
	ParityFragments *int
	Algorithm       string
	Checksum        string
	Compression     string
	SegmentSize     int
	Workers         int
	LogLevel        string
}

// Load loads configuration from file and applies command line options
func Load(configPath string, opts Options) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Load from config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		// Try to find config in standard locations
		v.SetConfigName("nebulaec")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/nebulaec")
		v.AddConfigPath("$HOME/.nebulaec")

		// Ignore error if config file not found
		_ = v.ReadInConfig()
	}

	// Environment variables override
	v.SetEnvPrefix("NEBULAEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// k and m have no viper default so that a preset can fill them in;
	// bind them explicitly so Unmarshal still sees the environment.
	_ = v.BindEnv("driver.k")
	_ = v.BindEnv("driver.m")

	applyOptions(v, opts)

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	base := driver.DefaultConfig()
	if cfg.Driver.Preset != "" {
		base = driver.ConfigFromPreset(cfg.Driver.Preset)
	}
	if !v.IsSet("driver.k") {
		cfg.Driver.DataFragments = base.DataFragments
	}
	if !v.IsSet("driver.m") {
		cfg.Driver.ParityFragments = base.ParityFragments
		if cfg.Driver.Type == driver.TypeStriping {
			cfg.Driver.ParityFragments = 0
		}
	}

	// Validate and set derived values
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyOptions(v *viper.Viper, opts Options) {
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}

	set("data_dir", opts.DataDir)
	set("driver.type", opts.DriverType)
	set("driver.preset", opts.Preset)
	set("driver.algorithm", opts.Algorithm)
	set("driver.checksum", opts.Checksum)
	set("compression.algorithm", opts.Compression)
	set("log_level", opts.LogLevel)

	if opts.DataFragments != nil {
		v.Set("driver.k", *opts.DataFragments)
	}
	if opts.ParityFragments != nil {
		v.Set("driver.m", *opts.ParityFragments)
	}
	if opts.SegmentSize != 0 {
		v.Set("segment_size", opts.SegmentSize)
	}
	if opts.Workers != 0 {
		v.Set("workers", opts.Workers)
	}
}

func setDefaults(v *viper.Viper) {
	d := driver.DefaultConfig()
	v.SetDefault("driver.type", string(d.Type))
	v.SetDefault("driver.algorithm", string(d.Algorithm))
	v.SetDefault("driver.checksum", string(d.Checksum))
	v.SetDefault("driver.preset", "")

	v.SetDefault("segment_size", DefaultSegmentSize)
	v.SetDefault("workers", 0)
	v.SetDefault("data_dir", DefaultDataDir)

	c := compression.DefaultConfig()
	v.SetDefault("compression.algorithm", string(compression.AlgorithmNone))
	v.SetDefault("compression.level", int(c.Level))
	v.SetDefault("compression.min_size", c.MinSize)

	// Logging
	v.SetDefault("log_level", "info")
}

func (c *Config) validate() error {
	switch c.Driver.Type {
	case driver.TypeErasure:
		if _, err := engine.ParseAlgorithm(string(c.Driver.Algorithm)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		if _, err := engine.ParseChecksumType(string(c.Driver.Checksum)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	case driver.TypeStriping, driver.TypeNull:
	default:
		return fmt.Errorf("%w: unknown driver type %q", ErrInvalidConfig, c.Driver.Type)
	}

	if c.Driver.DataFragments < 1 {
		return fmt.Errorf("%w: driver.k must be at least 1, got %d", ErrInvalidConfig, c.Driver.DataFragments)
	}
	if c.Driver.ParityFragments < 0 {
		return fmt.Errorf("%w: driver.m must not be negative, got %d", ErrInvalidConfig, c.Driver.ParityFragments)
	}
	if c.SegmentSize <= 0 {
		return fmt.Errorf("%w: segment_size must be positive, got %d", ErrInvalidConfig, c.SegmentSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	}

	alg, err := compression.ParseAlgorithm(string(c.Compression.Algorithm))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	c.Compression.Algorithm = alg

	if err := c.Compression.Level.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
	}

	// Ensure data directory exists with secure permissions
	if err := os.MkdirAll(c.DataDir, dirPermissions); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	return nil
}

// Level returns the configured zerolog level.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}

	return level
}
