// Package device implements an in-memory character device driver core.
//
// The driver serves a fixed set of instances (minor numbers) under one major
// number. Each instance owns a fixed-capacity circular byte buffer; every
// open of an instance gets its own read cursor into the instance's
// ever-growing write stream, so concurrent readers never disturb each other.
//
// # Architecture
//
// The package is organized into several layers:
//
//   - [Ring] stores bytes by absolute stream position with wraparound
//   - [Instance] owns one ring and serializes writers against readers
//   - [Registry] maps minor numbers to instances, creating them on demand
//   - [File] is one open call: an instance reference plus a private cursor
//   - [Driver] exposes open, read, write and close to the file layer
//
// # Stream Positions
//
// A ring never resets its write counter. Position p is stored at offset
// p mod capacity, and only the most recent capacity bytes are retained:
//
//	oldest = written - min(written, capacity)
//
// A cursor below oldest has lost data to overwrite. [OverflowClamp] skips
// ahead silently; [OverflowError] reports [github.com/ardnew/softchar/pkg.ErrDataLoss]
// once and resumes at oldest.
//
// # Read Modes
//
// With [ReadModeReplay] (the default) a read issued while the cursor sits
// at the write front starts over from the oldest retained byte, so a short
// message written once can be read again and again:
//
//	f, _ := drv.Open(0)
//	f.Write([]byte("Hello World"))
//	drv.Read(f, 5)  // "Hello"
//	drv.Read(f, 6)  // " World"
//	drv.Read(f, 13) // "Hello World"
//
// With [ReadModeStream] a read at the write front returns no bytes.
// [File.ReadContext] waits for the next write instead.
//
// # Concurrency
//
// Each instance has its own [sync.RWMutex]: writes are exclusive, reads are
// shared. Operations on different instances never contend. A [File] guards
// only its own cursor.
package device
