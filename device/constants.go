package device

import (
	"fmt"
	"strings"

	"github.com/ardnew/softchar/pkg"
)

// Default driver geometry.
const (
	// DefaultMajor is the major number the driver registers under.
	DefaultMajor = 228

	// DefaultMinors is the number of instances (minor numbers 0 through
	// DefaultMinors-1) the driver serves.
	DefaultMinors = 5

	// DefaultCapacity is the ring size of each instance in bytes.
	DefaultCapacity = 256
)

// OverflowPolicy selects what a read does when the reader's cursor has
// fallen behind the retained window.
type OverflowPolicy uint8

// Overflow policies.
const (
	OverflowClamp OverflowPolicy = iota // Skip to the oldest retained byte silently
	OverflowError                       // Report pkg.ErrDataLoss, then resume at the oldest byte
)

// String returns the configuration name of the policy.
func (p OverflowPolicy) String() string {
	switch p {
	case OverflowClamp:
		return "clamp"
	case OverflowError:
		return "error"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", p)
	}
}

// ParseOverflowPolicy converts a configuration string to an OverflowPolicy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clamp":
		return OverflowClamp, nil
	case "error":
		return OverflowError, nil
	default:
		return OverflowClamp, fmt.Errorf("overflow policy %q: %w", s, pkg.ErrInvalidParameter)
	}
}

// ReadMode selects what happens when a reader reaches the write front.
type ReadMode uint8

// Read modes.
const (
	// ReadModeReplay starts a read issued at the write front over from the
	// oldest retained byte, so a fully consumed stream is read again.
	ReadModeReplay ReadMode = iota

	// ReadModeStream never rewinds; a read at the write front returns no bytes.
	ReadModeStream
)

// String returns the configuration name of the mode.
func (m ReadMode) String() string {
	switch m {
	case ReadModeReplay:
		return "replay"
	case ReadModeStream:
		return "stream"
	default:
		return fmt.Sprintf("ReadMode(%d)", m)
	}
}

// ParseReadMode converts a configuration string to a ReadMode.
func ParseReadMode(s string) (ReadMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replay":
		return ReadModeReplay, nil
	case "stream":
		return ReadModeStream, nil
	default:
		return ReadModeReplay, fmt.Errorf("read mode %q: %w", s, pkg.ErrInvalidParameter)
	}
}

// IoctlCmd is a device control command accepted by [File.Ioctl].
type IoctlCmd uint32

// Control commands.
const (
	IoctlCapacity IoctlCmd = iota + 1 // Report the ring capacity
	IoctlWritten                      // Report the total bytes ever written
	IoctlCursor                       // Report the caller's cursor
	IoctlRewind                       // Move the caller's cursor to the oldest retained byte
)

// String returns a human-readable command name.
func (c IoctlCmd) String() string {
	switch c {
	case IoctlCapacity:
		return "capacity"
	case IoctlWritten:
		return "written"
	case IoctlCursor:
		return "cursor"
	case IoctlRewind:
		return "rewind"
	default:
		return fmt.Sprintf("IoctlCmd(%d)", c)
	}
}

// Config describes the driver geometry and read semantics.
type Config struct {
	Major       uint32         // Major number reported to the node namespace
	Minors      int            // Instances served: minors 0 through Minors-1
	Capacity    int            // Ring size of each instance in bytes
	Overflow    OverflowPolicy // Behavior for cursors behind the retained window
	ReadMode    ReadMode       // Behavior at the write front
	Preallocate bool           // Create every instance up front instead of on first open
}

// DefaultConfig returns the configuration the driver uses when none is given.
func DefaultConfig() Config {
	return Config{
		Major:    DefaultMajor,
		Minors:   DefaultMinors,
		Capacity: DefaultCapacity,
		Overflow: OverflowClamp,
		ReadMode: ReadModeReplay,
	}
}

// Validate reports the first problem with the configuration.
func (c Config) Validate() error {
	switch {
	case c.Minors <= 0:
		return fmt.Errorf("minors %d must be positive: %w", c.Minors, pkg.ErrInvalidParameter)
	case c.Capacity <= 0:
		return fmt.Errorf("capacity %d must be positive: %w", c.Capacity, pkg.ErrInvalidParameter)
	case c.Overflow > OverflowError:
		return fmt.Errorf("overflow %v: %w", c.Overflow, pkg.ErrInvalidParameter)
	case c.ReadMode > ReadModeStream:
		return fmt.Errorf("read mode %v: %w", c.ReadMode, pkg.ErrInvalidParameter)
	}
	return nil
}
