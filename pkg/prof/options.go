package prof

// Profile names a snapshot profile known to runtime/pprof.
type Profile string

// Snapshot profiles a session can write when it stops.
const (
	ProfileHeap      Profile = "heap"
	ProfileGoroutine Profile = "goroutine"
	ProfileBlock     Profile = "block"
	ProfileMutex     Profile = "mutex"
)

// String returns the pprof name of the profile.
func (p Profile) String() string {
	return string(p)
}

func (p Profile) valid() bool {
	switch p {
	case ProfileHeap, ProfileGoroutine, ProfileBlock, ProfileMutex:
		return true
	}
	return false
}

// DefaultRate is the mutex fraction and block rate used when Options.Rate is
// left at zero. A value of 1 records every event.
const DefaultRate = 1

// Options describes a profiling session.
type Options struct {
	// Dir receives cpu.prof and one <name>.prof file per snapshot.
	Dir string

	// CPU enables the CPU profile.
	CPU bool

	// Snapshots are written when the session stops.
	Snapshots []Profile

	// Rate is the sampling rate applied to mutex and block profiles.
	Rate int
}

func (o Options) withDefaults() Options {
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.Rate <= 0 {
		o.Rate = DefaultRate
	}
	return o
}
