package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softchar/device"
	"github.com/ardnew/softchar/pkg"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "softchar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	dc, err := cfg.Device()
	require.NoError(t, err)
	assert.Equal(t, device.DefaultConfig(), dc)
	assert.Equal(t, device.DefaultMinors, cfg.NodeCount())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
driver:
  capacity: 4096
  overflow: error
  read_mode: stream
  preallocate: true
nodes:
  prefix: /dev/ring
  count: 2
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(device.DefaultMajor), cfg.Driver.Major, "unset field keeps default")
	assert.Equal(t, 4096, cfg.Driver.Capacity)
	assert.Equal(t, "/dev/ring", cfg.Nodes.Prefix)
	assert.Equal(t, 2, cfg.NodeCount())

	dc, err := cfg.Device()
	require.NoError(t, err)
	assert.Equal(t, device.OverflowError, dc.Overflow)
	assert.Equal(t, device.ReadModeStream, dc.ReadMode)
	assert.True(t, dc.Preallocate)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "driver:\n  capacity: 64\n")

	t.Setenv(EnvCapacity, "128")
	t.Setenv(EnvMinors, "8")
	t.Setenv(EnvMajor, "240")
	t.Setenv(EnvReadMode, "stream")
	t.Setenv(EnvLogLevel, "info")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Driver.Capacity)
	assert.Equal(t, 8, cfg.Driver.Minors)
	assert.Equal(t, uint32(240), cfg.Driver.Major)
	assert.Equal(t, "stream", cfg.Driver.ReadMode)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestFromEnvBadNumber(t *testing.T) {
	t.Setenv(EnvCapacity, "lots")
	t.Setenv(EnvMajor, "-3")

	_, err := FromEnv()
	require.Error(t, err)
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "driver: [unterminated"))
		assert.ErrorContains(t, err, "parsing config file")
	})
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Driver.Overflow = "panic"
	cfg.Driver.ReadMode = "sideways"
	cfg.Nodes.Count = -1
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 5)
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
}

func TestValidateGeometry(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.Driver.Capacity = 0 }},
		{"zero minors", func(c *Config) { c.Driver.Minors = 0 }},
		{"more nodes than minors", func(c *Config) { c.Nodes.Count = c.Driver.Minors + 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), pkg.ErrInvalidParameter)
		})
	}
}

func TestApplyLogging(t *testing.T) {
	original := pkg.GetLogLevel()
	originalLogger := pkg.Logger()
	defer func() {
		pkg.SetLogLevel(original)
		pkg.SetLogger(originalLogger)
	}()

	cfg := Default()
	cfg.Logging.Level = "debug"
	require.NoError(t, cfg.ApplyLogging())
	assert.Equal(t, "DEBUG", pkg.GetLogLevel().String())

	cfg.Logging.Format = "yaml"
	assert.ErrorIs(t, cfg.ApplyLogging(), pkg.ErrInvalidParameter)
}
