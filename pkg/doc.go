// Package pkg provides shared utilities for the softchar driver.
//
// This package contains common functionality used across the driver core,
// the host-side plumbing and the command line tool, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error values for the driver's error taxonomy
//   - Mapping from those errors to POSIX errno values
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with driver-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogDebug(pkg.ComponentDriver, "open", "minor", 0)
//
// # Errors
//
// Every failure surfaced by the driver wraps one of the sentinel values, so
// callers match with [errors.Is]:
//
//	if errors.Is(err, pkg.ErrDataLoss) {
//	    // reader fell behind the retained window
//	}
//
// [Errno] translates the same errors into the values a read(2) or write(2)
// caller would see from a kernel character device (ENXIO, EBADF, EOVERFLOW,
// and so on).
package pkg
