package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ardnew/softchar/pkg"
)

// File is the state of one open call: a non-owning reference to an
// instance and a private read cursor. Two files on the same instance never
// share a cursor.
//
// A File is safe for concurrent use, although concurrent reads on one
// File interleave their results the way reads on a shared descriptor do.
type File struct {
	id     uuid.UUID
	inst   *Instance
	driver *Driver

	mutex  sync.Mutex
	cursor uint64
	closed bool

	// Canceled on Close so blocked readers return.
	ctx    context.Context
	cancel context.CancelFunc
}

// newFile binds a fresh file to inst. The cursor starts at the oldest
// retained byte, which is stream position 0 until the ring first wraps.
func newFile(ctx context.Context, d *Driver, inst *Instance) *File {
	f := &File{
		id:     uuid.New(),
		inst:   inst,
		driver: d,
		cursor: inst.Oldest(),
	}
	f.ctx, f.cancel = context.WithCancel(ctx)
	inst.acquire()
	return f
}

// ID returns the correlation id used in log records for this file.
func (f *File) ID() uuid.UUID {
	return f.id
}

// Minor returns the instance number the file was opened on.
func (f *File) Minor() int {
	return f.inst.minor
}

// Cursor returns the stream position of the next byte this file will read.
func (f *File) Cursor() uint64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.cursor
}

// Read copies up to len(p) bytes from the file's cursor and advances it.
// Read never blocks: with nothing to deliver it returns 0 and a nil error.
// A reader that fell behind the retained window gets pkg.ErrDataLoss when
// the driver uses OverflowError; the following read resumes at the oldest
// retained byte.
func (f *File) Read(p []byte) (int, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.closed {
		return 0, fmt.Errorf("read: %w", pkg.ErrInvalidHandle)
	}

	n, next, err := f.inst.ReadAt(f.cursor, p)
	f.cursor = next
	return n, err
}

// ReadContext is the blocking form of Read. When the cursor sits at the
// write front it waits for the next write, for ctx to be done, or for the
// file to be closed.
func (f *File) ReadContext(ctx context.Context, p []byte) (int, error) {
	for {
		n, err := f.Read(p)
		if n > 0 || err != nil || len(p) == 0 {
			return n, err
		}

		wctx, cancel := context.WithCancel(ctx)
		stop := context.AfterFunc(f.ctx, cancel)
		err = f.inst.Wait(wctx, f.Cursor())
		stop()
		cancel()

		if err != nil {
			if ctx.Err() == nil && f.ctx.Err() != nil {
				return 0, fmt.Errorf("read: closed while waiting: %w", pkg.ErrInvalidHandle)
			}
			return 0, err
		}
	}
}

// Write appends p to the instance. Every open file of an instance writes to
// the same stream. The count is always len(p) for an open file.
func (f *File) Write(p []byte) (int, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.closed {
		return 0, fmt.Errorf("write: %w", pkg.ErrInvalidHandle)
	}
	return f.inst.Write(p), nil
}

// Ioctl executes a device control command. The argument is unused by the
// current command set.
func (f *File) Ioctl(cmd IoctlCmd, arg uint64) (uint64, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentFile, "ioctl",
		"file", f.id,
		"minor", f.inst.minor,
		"cmd", cmd,
		"arg", arg)

	if f.closed {
		return 0, fmt.Errorf("ioctl %v: %w", cmd, pkg.ErrInvalidHandle)
	}

	switch cmd {
	case IoctlCapacity:
		return uint64(f.inst.Capacity()), nil
	case IoctlWritten:
		return f.inst.Written(), nil
	case IoctlCursor:
		return f.cursor, nil
	case IoctlRewind:
		f.cursor = f.inst.Oldest()
		return f.cursor, nil
	default:
		return 0, fmt.Errorf("ioctl %v: %w", cmd, pkg.ErrNotSupported)
	}
}

// Close releases the file. The instance and its contents are unaffected.
// Closing twice is a usage error reported as pkg.ErrInvalidHandle.
func (f *File) Close() error {
	f.mutex.Lock()
	if f.closed {
		f.mutex.Unlock()
		return fmt.Errorf("close: %w", pkg.ErrInvalidHandle)
	}
	f.closed = true
	f.cancel()
	f.mutex.Unlock()

	f.inst.release()
	if f.driver != nil {
		f.driver.forget(f)
	}

	pkg.LogDebug(pkg.ComponentFile, "close",
		"file", f.id,
		"minor", f.inst.minor)

	return nil
}
