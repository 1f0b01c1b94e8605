package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/ardnew/softchar/pkg"
)

// Driver is the entry point the file layer calls into: open, read, write
// and close against minors of a single major number. It owns the registry;
// there is no package-level state.
type Driver struct {
	config   Config
	registry *Registry

	// State
	running bool
	files   map[*File]struct{}
	mutex   sync.RWMutex

	// Parent of every file context; canceled on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewDriver validates cfg and creates a running driver.
func NewDriver(cfg Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("driver config: %w", err)
	}

	d := &Driver{
		config:   cfg,
		registry: NewRegistry(cfg),
		running:  true,
		files:    make(map[*File]struct{}),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	pkg.LogInfo(pkg.ComponentDriver, "driver initialized",
		"major", cfg.Major,
		"minors", cfg.Minors,
		"capacity", cfg.Capacity,
		"overflow", cfg.Overflow,
		"readMode", cfg.ReadMode)

	return d, nil
}

// Config returns the configuration the driver was created with.
func (d *Driver) Config() Config {
	return d.config
}

// Major returns the major number the driver serves.
func (d *Driver) Major() uint32 {
	return d.config.Major
}

// Registry returns the driver's instance registry.
func (d *Driver) Registry() *Registry {
	return d.registry
}

// IsRunning returns true until Shutdown is called.
func (d *Driver) IsRunning() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.running
}

// Open returns a new file on minor with its own cursor. Every call yields
// an independent cursor, including repeated opens of the same minor.
//
// The cursor starts at the oldest retained byte, not at stream position 0.
// A file opened after the ring has wrapped therefore never reports
// pkg.ErrDataLoss for bytes overwritten before it was opened, even under
// OverflowError; only bytes lost while the file is open are reported.
func (d *Driver) Open(minor int) (*File, error) {
	if !d.IsRunning() {
		return nil, fmt.Errorf("open minor %d: %w", minor, pkg.ErrNotRunning)
	}

	inst, err := d.registry.Lookup(minor)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	// Shutdown may have run since the check above.
	if !d.running {
		return nil, fmt.Errorf("open minor %d: %w", minor, pkg.ErrNotRunning)
	}

	f := newFile(d.ctx, d, inst)
	d.files[f] = struct{}{}

	pkg.LogDebug(pkg.ComponentDriver, "open",
		"major", d.config.Major,
		"minor", minor,
		"file", f.id,
		"cursor", f.cursor)

	return f, nil
}

// Read returns up to n bytes from f. The result is empty when nothing is
// available; it never waits.
func (d *Driver) Read(f *File, n int) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("read: nil file: %w", pkg.ErrInvalidHandle)
	}
	if n < 0 {
		return nil, fmt.Errorf("read %d bytes: %w", n, pkg.ErrInvalidParameter)
	}

	buf := make([]byte, n)
	k, err := f.Read(buf)
	return buf[:k], err
}

// Write appends p to the instance behind f and returns len(p).
func (d *Driver) Write(f *File, p []byte) (int, error) {
	if f == nil {
		return 0, fmt.Errorf("write: nil file: %w", pkg.ErrInvalidHandle)
	}
	return f.Write(p)
}

// Close releases f.
func (d *Driver) Close(f *File) error {
	if f == nil {
		return fmt.Errorf("close: nil file: %w", pkg.ErrInvalidHandle)
	}
	return f.Close()
}

// Stat returns a snapshot of minor. A served minor that has never been
// opened reports an empty ring.
func (d *Driver) Stat(minor int) (Stat, error) {
	if minor < 0 || minor >= d.config.Minors {
		return Stat{}, fmt.Errorf("stat minor %d: %w", minor, pkg.ErrInvalidTarget)
	}
	if inst, ok := d.registry.Get(minor); ok {
		return inst.Stat(), nil
	}
	return Stat{Minor: minor, Capacity: d.config.Capacity}, nil
}

// Stats returns snapshots of every instance created so far.
func (d *Driver) Stats() []Stat {
	insts := d.registry.Instances()
	stats := make([]Stat, len(insts))
	for i, inst := range insts {
		stats[i] = inst.Stat()
	}
	return stats
}

// OpenFiles returns the number of files currently open.
func (d *Driver) OpenFiles() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return len(d.files)
}

// Shutdown stops the driver and closes every open file. Later opens fail
// with pkg.ErrNotRunning. Calling Shutdown more than once is harmless.
func (d *Driver) Shutdown() {
	d.mutex.Lock()
	if !d.running {
		d.mutex.Unlock()
		return
	}
	d.running = false
	d.cancel()

	open := make([]*File, 0, len(d.files))
	for f := range d.files {
		open = append(open, f)
	}
	d.mutex.Unlock()

	closed := 0
	for _, f := range open {
		// A concurrent Close may get there first.
		if f.Close() == nil {
			closed++
		}
	}

	pkg.LogInfo(pkg.ComponentDriver, "driver stopped",
		"major", d.config.Major,
		"closed", closed)
}

// forget drops f from the open-file set.
func (d *Driver) forget(f *File) {
	d.mutex.Lock()
	delete(d.files, f)
	d.mutex.Unlock()
}

