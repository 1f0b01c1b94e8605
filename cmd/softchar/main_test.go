package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ardnew/softchar/device"
	"github.com/ardnew/softchar/pkg"
	"github.com/ardnew/softchar/pkg/config"
)

// execute runs the root command with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSelftestCommand(t *testing.T) {
	out, err := execute(t, "selftest", "--stats")
	require.NoError(t, err, out)

	assert.Contains(t, out, `read 3 13 = "Hello World"`)
	assert.Contains(t, out, `read 4 20 = "Hello World"`)
	assert.Contains(t, out, "26 steps, 0 failed")
	assert.Contains(t, out, "MINOR")
	assert.NotContains(t, out, "FAIL")
}

func TestSelftestRejectsGeometry(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"capacity", config.EnvCapacity, "8"},
		{"minors", config.EnvMinors, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := execute(t, "selftest")
			assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
		})
	}
}

func TestScriptCollectsFailures(t *testing.T) {
	opts := &options{cfg: config.Default()}
	drv, h, names, err := opts.newHost(device.DefaultConfig())
	require.NoError(t, err)
	defer drv.Shutdown()

	var out bytes.Buffer
	s := &script{h: h, out: &out}
	fd := s.open(names[0])
	s.write(fd, "abc")
	s.expect(fd, 3, "xyz")
	s.close(fd)
	s.close(fd)

	err = s.result()
	require.ErrorIs(t, err, errSelftest)
	assert.ErrorIs(t, err, pkg.ErrInvalidHandle)
	assert.ErrorIs(t, err, errMismatch)
	assert.Contains(t, out.String(), "5 steps, 2 failed")
	assert.Contains(t, out.String(), "(errno ")
}

func TestStress(t *testing.T) {
	tests := []struct {
		name     string
		overflow device.OverflowPolicy
	}{
		{"clamp", device.OverflowClamp},
		{"error", device.OverflowError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := device.DefaultConfig()
			cfg.Capacity = 64
			cfg.Overflow = tt.overflow
			cfg.ReadMode = device.ReadModeStream
			drv, err := device.NewDriver(cfg)
			require.NoError(t, err)
			defer drv.Shutdown()

			o := stressOptions{Minor: 1, Writers: 4, Readers: 3, Blocks: 300, BlockSize: 16}
			res, err := runStress(context.Background(), drv, o)
			require.NoError(t, err)

			assert.Equal(t, uint64(4*300*16), res.BytesWritten)
			assert.Zero(t, res.BytesRead%16)
			assert.Equal(t, res.BytesRead/16, res.BlocksRead)
			assert.LessOrEqual(t, res.BytesRead, 3*res.BytesWritten)
			if tt.overflow == device.OverflowClamp {
				assert.Zero(t, res.DataLoss)
			}

			st, err := drv.Stat(1)
			require.NoError(t, err)
			assert.Equal(t, res.BytesWritten, st.Written)
			assert.Zero(t, st.Opens, "stress left files open")
		})
	}
}

func TestStressOptionsValidate(t *testing.T) {
	base := stressOptions{Writers: 1, Readers: 1, Blocks: 1, BlockSize: 16}

	tests := []struct {
		name    string
		mutate  func(*stressOptions)
		wantErr bool
	}{
		{"valid", func(*stressOptions) {}, false},
		{"no readers", func(o *stressOptions) { o.Readers = 0 }, false},
		{"no writers", func(o *stressOptions) { o.Writers = 0 }, true},
		{"no blocks", func(o *stressOptions) { o.Blocks = 0 }, true},
		{"zero block", func(o *stressOptions) { o.BlockSize = 0 }, true},
		{"not a divisor", func(o *stressOptions) { o.BlockSize = 24 }, true},
		{"larger than ring", func(o *stressOptions) { o.BlockSize = 512 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base
			tt.mutate(&o)
			err := o.validate(device.DefaultCapacity)
			if tt.wantErr {
				assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStressCommand(t *testing.T) {
	out, err := execute(t, "stress", "-w", "2", "-r", "2", "-n", "100", "--stats")
	require.NoError(t, err, out)
	assert.Contains(t, out, "written   3.1 KiB")
	assert.Contains(t, out, "data loss 0")
}

func TestNodesCommand(t *testing.T) {
	out, err := execute(t, "nodes")
	require.NoError(t, err, out)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1+device.DefaultMinors)
	assert.Contains(t, lines[1], "/dev/simpleCharDevice0")
	assert.Contains(t, lines[1], "228")
	assert.Contains(t, lines[5], "/dev/simpleCharDevice4")
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "config")
	require.NoError(t, err)

	var got config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, *config.Default(), got)
}

func TestConfigCommandFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "softchar.yaml")
	data := []byte("driver:\n  capacity: 1024\n  read_mode: stream\nnodes:\n  prefix: /dev/sc\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, err := execute(t, "--config", path, "config")
	require.NoError(t, err)

	var got config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1024, got.Driver.Capacity)
	assert.Equal(t, "stream", got.Driver.ReadMode)
	assert.Equal(t, "/dev/sc", got.Nodes.Prefix)
	assert.Equal(t, device.DefaultMinors, got.Driver.Minors)
}

func TestConfigCommandMissingFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "config")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUniform(t *testing.T) {
	assert.True(t, uniform(nil))
	assert.True(t, uniform([]byte{0xff, 0xff, 0xff}))
	assert.False(t, uniform([]byte{0xfe, 0xff}))
	assert.False(t, uniform([]byte{1, 1, 2}))
}
