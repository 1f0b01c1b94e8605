// Package prof captures pprof data around a softchar workload.
//
// The package is conditionally compiled using the "profile" build tag:
//
//	go build -tags profile ./cmd/softchar
//
// Without the tag every function is a no-op and [Enabled] is false, so callers
// can leave profiling hooks in place.
//
// A session writes into a single directory:
//
//	err := prof.Start(prof.Options{
//	    Dir:       "out",
//	    CPU:       true,
//	    Snapshots: []prof.Profile{prof.ProfileMutex, prof.ProfileBlock},
//	})
//	// ... run the workload ...
//	err = prof.Stop()
//
// Requesting [ProfileMutex] or [ProfileBlock] turns on the matching runtime
// sampling for the life of the session. Only one session may run at a time;
// a second [Start] returns [ErrActive].
package prof
