//go:build profile

package prof

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Enabled reports whether the binary was built with the "profile" tag.
const Enabled = true

// Profiling errors.
var (
	// ErrActive indicates a session is already running.
	ErrActive = errors.New("profiling session already active")

	// ErrNotActive indicates Stop was called without a running session.
	ErrNotActive = errors.New("profiling session not active")

	// ErrInvalidProfile indicates an unsupported snapshot profile.
	ErrInvalidProfile = errors.New("invalid profile")
)

var (
	mutex   sync.Mutex
	current *session
)

type session struct {
	opts Options
	cpu  *os.File
}

// Start begins a profiling session rooted at opts.Dir.
//
// The CPU profile streams to cpu.prof for the life of the session. Mutex and
// block sampling are enabled when the corresponding snapshot is requested so
// that lock contention on device instances shows up in the output.
func Start(opts Options) error {
	mutex.Lock()
	defer mutex.Unlock()

	if current != nil {
		return ErrActive
	}

	opts = opts.withDefaults()
	for _, p := range opts.Snapshots {
		if !p.valid() {
			return fmt.Errorf("%w: %q", ErrInvalidProfile, p)
		}
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return fmt.Errorf("profile dir: %w", err)
	}

	s := &session{opts: opts}
	if opts.CPU {
		f, err := os.Create(filepath.Join(opts.Dir, "cpu.prof"))
		if err != nil {
			return fmt.Errorf("cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("cpu profile: %w", err)
		}
		s.cpu = f
	}

	for _, p := range opts.Snapshots {
		switch p {
		case ProfileMutex:
			runtime.SetMutexProfileFraction(opts.Rate)
		case ProfileBlock:
			runtime.SetBlockProfileRate(opts.Rate)
		}
	}

	current = s
	return nil
}

// Stop ends the running session, flushing the CPU profile and writing every
// requested snapshot. All write failures are reported together.
func Stop() error {
	mutex.Lock()
	defer mutex.Unlock()

	s := current
	if s == nil {
		return ErrNotActive
	}
	current = nil

	var result error
	if s.cpu != nil {
		pprof.StopCPUProfile()
		if err := s.cpu.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("cpu profile: %w", err))
		}
	}

	for _, p := range s.opts.Snapshots {
		if err := writeSnapshot(s.opts.Dir, p); err != nil {
			result = multierror.Append(result, err)
		}
		switch p {
		case ProfileMutex:
			runtime.SetMutexProfileFraction(0)
		case ProfileBlock:
			runtime.SetBlockProfileRate(0)
		}
	}

	return result
}

// Active reports whether a session is running.
func Active() bool {
	mutex.Lock()
	defer mutex.Unlock()
	return current != nil
}

func writeSnapshot(dir string, p Profile) error {
	prof := pprof.Lookup(string(p))
	if prof == nil {
		return fmt.Errorf("%w: %q", ErrInvalidProfile, p)
	}

	f, err := os.Create(filepath.Join(dir, p.String()+".prof"))
	if err != nil {
		return fmt.Errorf("%s profile: %w", p, err)
	}
	if err := prof.WriteTo(f, 0); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s profile: %w", p, err)
	}
	return f.Close()
}
