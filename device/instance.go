package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/ardnew/softchar/pkg"
)

// Instance is one addressable device unit: a minor number owning a ring.
// Writers hold the lock exclusively; readers share it, since a read only
// mutates the caller's own cursor.
type Instance struct {
	minor    int
	ring     *Ring
	overflow OverflowPolicy
	mode     ReadMode

	mutex sync.RWMutex

	// Readers parked in Wait, oldest first. Each element is a
	// chan struct{} closed by the next write. Guarded by mutex.
	waiters *queue.Queue

	opens atomic.Int64
}

// Stat is a point-in-time snapshot of an instance.
type Stat struct {
	Minor    int    // Instance number
	Capacity int    // Ring size in bytes
	Written  uint64 // Total bytes ever written
	Retained int    // Bytes still recoverable
	Oldest   uint64 // Stream position of the oldest recoverable byte
	Opens    int    // Files currently open on the instance
}

// newInstance creates the instance for minor using the ring geometry and
// read semantics in cfg.
func newInstance(minor int, cfg Config) *Instance {
	return &Instance{
		minor:    minor,
		ring:     NewRing(cfg.Capacity),
		overflow: cfg.Overflow,
		mode:     cfg.ReadMode,
		waiters:  queue.New(),
	}
}

// Minor returns the instance number.
func (i *Instance) Minor() int {
	return i.minor
}

// Write appends p to the ring and wakes any parked readers. It never fails
// and never blocks on a full ring: the oldest bytes are overwritten.
func (i *Instance) Write(p []byte) int {
	if len(p) == 0 {
		return 0
	}

	i.mutex.Lock()
	i.ring.Append(p)
	written := i.ring.Written()
	woken := i.waiters.Length()
	for i.waiters.Length() > 0 {
		close(i.waiters.Remove().(chan struct{}))
	}
	i.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentInstance, "write",
		"minor", i.minor,
		"bytes", len(p),
		"written", written,
		"woken", woken)

	return len(p)
}

// ReadAt copies bytes from stream position cursor into dst and returns the
// count together with the cursor the caller should use next.
//
// A cursor behind the retained window is handled per the overflow policy.
// In replay mode a read issued at the write front starts over from the
// oldest retained byte instead of returning nothing.
func (i *Instance) ReadAt(cursor uint64, dst []byte) (n int, next uint64, err error) {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	written := i.ring.Written()
	if cursor > written {
		return 0, cursor, fmt.Errorf("minor %d: cursor %d beyond write front %d: %w",
			i.minor, cursor, written, pkg.ErrInvalidParameter)
	}

	if i.mode == ReadModeReplay && cursor == written && written > 0 {
		cursor = i.ring.Oldest()
	}

	if oldest := i.ring.Oldest(); cursor < oldest {
		lost := oldest - cursor
		if i.overflow == OverflowError {
			pkg.LogDebug(pkg.ComponentInstance, "reader overrun",
				"minor", i.minor,
				"cursor", cursor,
				"lost", lost)
			return 0, oldest, fmt.Errorf("minor %d: %d bytes overwritten: %w",
				i.minor, lost, pkg.ErrDataLoss)
		}
		pkg.LogDebug(pkg.ComponentInstance, "cursor clamped",
			"minor", i.minor,
			"cursor", cursor,
			"skipped", lost)
		cursor = oldest
	}

	n = i.ring.CopyFrom(cursor, dst)
	next = cursor + uint64(n)

	pkg.LogDebug(pkg.ComponentInstance, "read",
		"minor", i.minor,
		"cursor", cursor,
		"requested", len(dst),
		"bytes", n,
		"next", next)

	return n, next, nil
}

// Oldest returns the stream position of the oldest recoverable byte.
func (i *Instance) Oldest() uint64 {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	return i.ring.Oldest()
}

// Written returns the total number of bytes ever written.
func (i *Instance) Written() uint64 {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	return i.ring.Written()
}

// Capacity returns the ring size in bytes.
func (i *Instance) Capacity() int {
	return i.ring.Cap()
}

// Wait blocks until bytes exist past cursor or ctx is done.
func (i *Instance) Wait(ctx context.Context, cursor uint64) error {
	i.mutex.Lock()
	if i.ring.Written() > cursor {
		i.mutex.Unlock()
		return nil
	}
	ready := make(chan struct{})
	i.waiters.Add(ready)
	i.mutex.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		i.dropWaiter(ready)
		return ctx.Err()
	}
}

// dropWaiter removes ready from the waiter queue. A write that already
// closed it has dequeued it too, leaving nothing to remove.
func (i *Instance) dropWaiter(ready chan struct{}) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	for n := i.waiters.Length(); n > 0; n-- {
		w := i.waiters.Remove().(chan struct{})
		if w != ready {
			i.waiters.Add(w)
		}
	}
}

// Stat returns a snapshot of the instance.
func (i *Instance) Stat() Stat {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	return Stat{
		Minor:    i.minor,
		Capacity: i.ring.Cap(),
		Written:  i.ring.Written(),
		Retained: i.ring.Retained(),
		Oldest:   i.ring.Oldest(),
		Opens:    int(i.opens.Load()),
	}
}

// acquire and release track open files for Stat.
func (i *Instance) acquire() { i.opens.Add(1) }
func (i *Instance) release() { i.opens.Add(-1) }
