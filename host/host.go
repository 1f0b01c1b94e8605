package host

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/ardnew/softchar/device"
	"github.com/ardnew/softchar/pkg"
)

// FirstFD is the lowest descriptor number handed out; 0-2 are left to the
// standard streams as a process would.
const FirstFD = 3

// Host is the caller's side of the driver: it resolves node names, opens
// files on the driver and hands out integer descriptors for them.
type Host struct {
	driver *device.Driver
	ns     *Namespace

	mutex sync.Mutex
	files map[int]*device.File
}

// New creates a host that opens nodes in ns against d.
func New(d *device.Driver, ns *Namespace) *Host {
	if ns == nil {
		ns = NewNamespace()
	}
	return &Host{
		driver: d,
		ns:     ns,
		files:  make(map[int]*device.File),
	}
}

// Namespace returns the node namespace the host resolves names in.
func (h *Host) Namespace() *Namespace {
	return h.ns
}

// Populate creates nodes prefix0 through prefix{count-1} for the driver's
// major number, skipping names that already exist, and returns every name.
func (h *Host) Populate(prefix string, count int) ([]string, error) {
	names := make([]string, 0, count)
	for minor := 0; minor < count; minor++ {
		name := prefix + strconv.Itoa(minor)
		if !h.ns.Exists(name) {
			if err := h.ns.Mknod(name, h.driver.Major(), minor); err != nil {
				return names, err
			}
		}
		names = append(names, name)
	}
	return names, nil
}

// Open resolves name and opens it on the driver, returning the lowest free
// descriptor. Nodes carrying another major number are not ours.
func (h *Host) Open(name string) (int, error) {
	node, err := h.ns.Resolve(name)
	if err != nil {
		return -1, fmt.Errorf("open: %w", err)
	}
	if node.Major != h.driver.Major() {
		return -1, fmt.Errorf("open %s: major %d not served: %w", name, node.Major, pkg.ErrInvalidTarget)
	}

	f, err := h.driver.Open(node.Minor)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", name, err)
	}

	h.mutex.Lock()
	fd := FirstFD
	for h.files[fd] != nil {
		fd++
	}
	h.files[fd] = f
	h.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentHost, "open",
		"name", name,
		"fd", fd,
		"file", f.ID())

	return fd, nil
}

// file returns the open file behind fd.
func (h *Host) file(fd int) (*device.File, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	f, ok := h.files[fd]
	if !ok {
		return nil, fmt.Errorf("fd %d: %w", fd, pkg.ErrInvalidHandle)
	}
	return f, nil
}

// Read returns up to n bytes from fd without waiting.
func (h *Host) Read(fd, n int) ([]byte, error) {
	f, err := h.file(fd)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	b, err := h.driver.Read(f, n)
	if err != nil {
		return b, fmt.Errorf("read fd %d: %w", fd, err)
	}
	return b, nil
}

// ReadContext returns up to n bytes from fd, waiting for a write when
// nothing is available.
func (h *Host) ReadContext(ctx context.Context, fd, n int) ([]byte, error) {
	f, err := h.file(fd)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if n < 0 {
		return nil, fmt.Errorf("read fd %d: %d bytes: %w", fd, n, pkg.ErrInvalidParameter)
	}
	buf := make([]byte, n)
	k, err := f.ReadContext(ctx, buf)
	if err != nil {
		return buf[:k], fmt.Errorf("read fd %d: %w", fd, err)
	}
	return buf[:k], nil
}

// Write writes p to fd and returns len(p).
func (h *Host) Write(fd int, p []byte) (int, error) {
	f, err := h.file(fd)
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	n, err := h.driver.Write(f, p)
	if err != nil {
		return n, fmt.Errorf("write fd %d: %w", fd, err)
	}
	return n, nil
}

// Ioctl issues a device control command on fd.
func (h *Host) Ioctl(fd int, cmd device.IoctlCmd, arg uint64) (uint64, error) {
	f, err := h.file(fd)
	if err != nil {
		return 0, fmt.Errorf("ioctl: %w", err)
	}
	v, err := f.Ioctl(cmd, arg)
	if err != nil {
		return 0, fmt.Errorf("ioctl fd %d: %w", fd, err)
	}
	return v, nil
}

// Close releases fd. The descriptor number becomes free for reuse.
func (h *Host) Close(fd int) error {
	h.mutex.Lock()
	f, ok := h.files[fd]
	delete(h.files, fd)
	h.mutex.Unlock()

	if !ok {
		return fmt.Errorf("close fd %d: %w", fd, pkg.ErrInvalidHandle)
	}
	if err := h.driver.Close(f); err != nil {
		return fmt.Errorf("close fd %d: %w", fd, err)
	}

	pkg.LogDebug(pkg.ComponentHost, "close", "fd", fd)
	return nil
}

// CloseAll closes every open descriptor and reports each failure.
func (h *Host) CloseAll() error {
	var result *multierror.Error
	for _, fd := range h.FDs() {
		if err := h.Close(fd); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// FDs returns the open descriptors in ascending order.
func (h *Host) FDs() []int {
	h.mutex.Lock()
	fds := make([]int, 0, len(h.files))
	for fd := range h.files {
		fds = append(fds, fd)
	}
	h.mutex.Unlock()

	sort.Ints(fds)
	return fds
}
