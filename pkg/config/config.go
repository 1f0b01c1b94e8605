package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/ardnew/softchar/device"
	"github.com/ardnew/softchar/pkg"
)

// Config is the root configuration for a softchar process.
// It is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Driver  DriverConfig  `yaml:"driver"`
	Nodes   NodesConfig   `yaml:"nodes"`
	Logging LoggingConfig `yaml:"logging"`
}

// DriverConfig describes the driver geometry and read semantics.
type DriverConfig struct {
	Major       uint32 `yaml:"major"`
	Minors      int    `yaml:"minors"`
	Capacity    int    `yaml:"capacity"`
	Overflow    string `yaml:"overflow"`  // clamp or error
	ReadMode    string `yaml:"read_mode"` // replay or stream
	Preallocate bool   `yaml:"preallocate"`
}

// NodesConfig describes the device nodes created at startup.
type NodesConfig struct {
	// Prefix is joined with each minor number to name a node,
	// e.g. /dev/simpleCharDevice0.
	Prefix string `yaml:"prefix"`

	// Count is how many nodes to create. Zero creates one per minor.
	Count int `yaml:"count"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Environment variables that override file settings.
const (
	EnvMajor    = "SOFTCHAR_MAJOR"
	EnvMinors   = "SOFTCHAR_MINORS"
	EnvCapacity = "SOFTCHAR_CAPACITY"
	EnvOverflow = "SOFTCHAR_OVERFLOW"
	EnvReadMode = "SOFTCHAR_READ_MODE"
	EnvLogLevel = "SOFTCHAR_LOG_LEVEL"
	EnvLogFmt   = "SOFTCHAR_LOG_FORMAT"
)

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}

	pkg.LogDebug(pkg.ComponentConfig, "config loaded", "path", path)
	return cfg, nil
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Driver: DriverConfig{
			Major:    device.DefaultMajor,
			Minors:   device.DefaultMinors,
			Capacity: device.DefaultCapacity,
			Overflow: device.OverflowClamp.String(),
			ReadMode: device.ReadModeReplay.String(),
		},
		Nodes: NodesConfig{
			Prefix: "/dev/simpleCharDevice",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// finish applies environment overrides and validates.
func (c *Config) finish() error {
	if err := applyEnvOverrides(c); err != nil {
		return fmt.Errorf("applying environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// applyEnvOverrides replaces settings with any SOFTCHAR_* variables present.
func applyEnvOverrides(cfg *Config) error {
	var result *multierror.Error

	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s=%q: %w", key, v, pkg.ErrInvalidParameter))
				return
			}
			*dst = n
		}
	}

	if v := os.Getenv(EnvMajor); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s=%q: %w", EnvMajor, v, pkg.ErrInvalidParameter))
		} else {
			cfg.Driver.Major = uint32(n)
		}
	}
	envInt(EnvMinors, &cfg.Driver.Minors)
	envInt(EnvCapacity, &cfg.Driver.Capacity)

	if v := os.Getenv(EnvOverflow); v != "" {
		cfg.Driver.Overflow = v
	}
	if v := os.Getenv(EnvReadMode); v != "" {
		cfg.Driver.ReadMode = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFmt); v != "" {
		cfg.Logging.Format = v
	}

	return result.ErrorOrNil()
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := c.Device(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Nodes.Count < 0 {
		result = multierror.Append(result, fmt.Errorf("nodes.count %d must not be negative: %w",
			c.Nodes.Count, pkg.ErrInvalidParameter))
	}
	if c.Nodes.Count > c.Driver.Minors {
		result = multierror.Append(result, fmt.Errorf("nodes.count %d exceeds driver.minors %d: %w",
			c.Nodes.Count, c.Driver.Minors, pkg.ErrInvalidParameter))
	}
	if _, err := pkg.ParseLogLevel(c.Logging.Level); err != nil {
		result = multierror.Append(result, fmt.Errorf("logging.level: %w", err))
	}
	if _, err := pkg.ParseLogFormat(c.Logging.Format); err != nil {
		result = multierror.Append(result, fmt.Errorf("logging.format: %w", err))
	}

	return result.ErrorOrNil()
}

// Device converts the driver section to a device.Config.
func (c *Config) Device() (device.Config, error) {
	var result *multierror.Error

	overflow, err := device.ParseOverflowPolicy(c.Driver.Overflow)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("driver.overflow: %w", err))
	}
	mode, err := device.ParseReadMode(c.Driver.ReadMode)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("driver.read_mode: %w", err))
	}

	dc := device.Config{
		Major:       c.Driver.Major,
		Minors:      c.Driver.Minors,
		Capacity:    c.Driver.Capacity,
		Overflow:    overflow,
		ReadMode:    mode,
		Preallocate: c.Driver.Preallocate,
	}
	if err := dc.Validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("driver: %w", err))
	}

	return dc, result.ErrorOrNil()
}

// NodeCount returns how many nodes to create at startup.
func (c *Config) NodeCount() int {
	if c.Nodes.Count == 0 {
		return c.Driver.Minors
	}
	return c.Nodes.Count
}

// ApplyLogging configures the pkg logger from the logging section.
func (c *Config) ApplyLogging() error {
	level, err := pkg.ParseLogLevel(c.Logging.Level)
	if err != nil {
		return err
	}
	format, err := pkg.ParseLogFormat(c.Logging.Format)
	if err != nil {
		return err
	}
	pkg.SetLogLevel(level)
	pkg.SetLogFormat(format)

	pkg.LogDebug(pkg.ComponentConfig, "logging configured",
		"level", level,
		"format", format)
	return nil
}

// LogValue renders the configuration as a structured log attribute.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("major", uint64(c.Driver.Major)),
		slog.Int("minors", c.Driver.Minors),
		slog.Int("capacity", c.Driver.Capacity),
		slog.String("overflow", c.Driver.Overflow),
		slog.String("readMode", c.Driver.ReadMode),
		slog.String("nodes", c.Nodes.Prefix),
	)
}
