package host

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softchar/device"
	"github.com/ardnew/softchar/pkg"
)

const devPrefix = "/dev/simpleCharDevice"

func newTestHost(t *testing.T, cfg device.Config) *Host {
	t.Helper()
	d, err := device.NewDriver(cfg)
	require.NoError(t, err)
	t.Cleanup(d.Shutdown)
	return New(d, nil)
}

func mustOpen(t *testing.T, h *Host, name string) int {
	t.Helper()
	fd, err := h.Open(name)
	require.NoError(t, err)
	return fd
}

func mustRead(t *testing.T, h *Host, fd, n int) string {
	t.Helper()
	b, err := h.Read(fd, n)
	require.NoError(t, err)
	return string(b)
}

// TestDeviceScript mirrors the original device test script step for step,
// descriptors included.
func TestDeviceScript(t *testing.T) {
	h := newTestHost(t, device.DefaultConfig())

	devices, err := h.Populate(devPrefix, 2)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	require.NotEqual(t, devices[0], devices[1])

	fd1 := mustOpen(t, h, devices[0])
	n, err := h.Write(fd1, []byte("Hello World"))
	require.NoError(t, err)
	require.Equal(t, 11, n)
	assert.Equal(t, "Hello", mustRead(t, h, fd1, 5))
	assert.Equal(t, " World", mustRead(t, h, fd1, 6), "reads probably restart at 0")
	assert.Equal(t, "Hello World", mustRead(t, h, fd1, 13), "did not loop back")
	assert.Equal(t, "Hello World", mustRead(t, h, fd1, 17), "read too many characters")
	require.NoError(t, h.Close(fd1))

	fd1 = mustOpen(t, h, devices[1])
	_, err = h.Write(fd1, []byte("Second Message"))
	require.NoError(t, err)
	assert.Equal(t, "Second Message", mustRead(t, h, fd1, 14))

	fd2 := mustOpen(t, h, devices[0])
	assert.Equal(t, "Hello World", mustRead(t, h, fd2, 20))
	require.NoError(t, h.Close(fd1))

	fd3 := mustOpen(t, h, devices[0])
	fd4 := mustOpen(t, h, devices[0])
	fd5 := mustOpen(t, h, devices[0])

	assert.Equal(t, "Hello ", mustRead(t, h, fd3, 6))
	assert.Equal(t, "Hello W", mustRead(t, h, fd4, 7))
	assert.Equal(t, "Hello Wo", mustRead(t, h, fd5, 8))

	assert.Equal(t, "World", mustRead(t, h, fd3, 5))
	assert.Equal(t, "orld", mustRead(t, h, fd4, 4))
	assert.Equal(t, "rld", mustRead(t, h, fd5, 3))

	require.NoError(t, h.Close(fd3))
	require.NoError(t, h.Close(fd4))
	require.NoError(t, h.Close(fd5))
	assert.Equal(t, []int{fd2}, h.FDs())
}

func TestPopulateKeepsExistingNodes(t *testing.T) {
	h := newTestHost(t, device.DefaultConfig())
	require.NoError(t, h.Namespace().Mknod(devPrefix+"0", 228, 0))

	names, err := h.Populate(devPrefix, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{devPrefix + "0", devPrefix + "1", devPrefix + "2"}, names)
	assert.Len(t, h.Namespace().Nodes(), 3)
}

func TestHostDescriptorReuse(t *testing.T) {
	h := newTestHost(t, device.DefaultConfig())
	_, err := h.Populate(devPrefix, 1)
	require.NoError(t, err)

	a := mustOpen(t, h, devPrefix+"0")
	b := mustOpen(t, h, devPrefix+"0")
	assert.Equal(t, FirstFD, a)
	assert.Equal(t, FirstFD+1, b)

	require.NoError(t, h.Close(a))
	c := mustOpen(t, h, devPrefix+"0")
	assert.Equal(t, a, c, "lowest free descriptor not reused")
}

func TestHostOpenErrors(t *testing.T) {
	h := newTestHost(t, device.DefaultConfig())
	ns := h.Namespace()
	require.NoError(t, ns.Mknod("/dev/foreign", 10, 0))
	require.NoError(t, ns.Mknod("/dev/unserved", device.DefaultMajor, device.DefaultMinors))

	tests := []struct {
		name    string
		node    string
		wantErr error
	}{
		{"missing node", "/dev/missing", pkg.ErrNoDevice},
		{"foreign major", "/dev/foreign", pkg.ErrInvalidTarget},
		{"unserved minor", "/dev/unserved", pkg.ErrInvalidTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fd, err := h.Open(tt.node)
			assert.Equal(t, -1, fd)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHostBadDescriptor(t *testing.T) {
	h := newTestHost(t, device.DefaultConfig())

	_, err := h.Read(42, 1)
	assert.ErrorIs(t, err, pkg.ErrInvalidHandle)
	_, err = h.ReadContext(context.Background(), 42, 1)
	assert.ErrorIs(t, err, pkg.ErrInvalidHandle)
	_, err = h.Write(42, []byte("x"))
	assert.ErrorIs(t, err, pkg.ErrInvalidHandle)
	_, err = h.Ioctl(42, device.IoctlWritten, 0)
	assert.ErrorIs(t, err, pkg.ErrInvalidHandle)
	assert.ErrorIs(t, h.Close(42), pkg.ErrInvalidHandle)
}

func TestHostDoubleClose(t *testing.T) {
	h := newTestHost(t, device.DefaultConfig())
	_, err := h.Populate(devPrefix, 1)
	require.NoError(t, err)

	fd := mustOpen(t, h, devPrefix+"0")
	require.NoError(t, h.Close(fd))
	assert.ErrorIs(t, h.Close(fd), pkg.ErrInvalidHandle)
}

func TestHostIoctl(t *testing.T) {
	h := newTestHost(t, device.DefaultConfig())
	_, err := h.Populate(devPrefix, 1)
	require.NoError(t, err)

	fd := mustOpen(t, h, devPrefix+"0")
	_, err = h.Write(fd, []byte("abc"))
	require.NoError(t, err)

	v, err := h.Ioctl(fd, device.IoctlWritten, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v)

	_, err = h.Ioctl(fd, device.IoctlCmd(0), 0)
	assert.ErrorIs(t, err, pkg.ErrNotSupported)
}

func TestHostReadContext(t *testing.T) {
	cfg := device.DefaultConfig()
	cfg.ReadMode = device.ReadModeStream
	h := newTestHost(t, cfg)
	_, err := h.Populate(devPrefix, 1)
	require.NoError(t, err)

	r := mustOpen(t, h, devPrefix+"0")
	w := mustOpen(t, h, devPrefix+"0")

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = h.Write(w, []byte("late"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	b, err := h.ReadContext(ctx, r, 8)
	require.NoError(t, err)
	assert.Equal(t, "late", string(b))
}

func TestHostCloseAllAfterShutdown(t *testing.T) {
	d, err := device.NewDriver(device.DefaultConfig())
	require.NoError(t, err)
	h := New(d, nil)
	_, err = h.Populate(devPrefix, 2)
	require.NoError(t, err)

	mustOpen(t, h, devPrefix+"0")
	mustOpen(t, h, devPrefix+"1")

	d.Shutdown()

	err = h.CloseAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, pkg.ErrInvalidHandle)

	merr, ok := err.(*multierror.Error)
	require.True(t, ok, "CloseAll() error type %T", err)
	assert.Len(t, merr.Errors, 2)
	assert.Empty(t, h.FDs())
}

func TestHostCloseAll(t *testing.T) {
	h := newTestHost(t, device.DefaultConfig())
	_, err := h.Populate(devPrefix, 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		mustOpen(t, h, devPrefix+"0")
	}
	require.NoError(t, h.CloseAll())
	assert.Empty(t, h.FDs())
}
