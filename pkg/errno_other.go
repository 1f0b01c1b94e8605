//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package pkg

import "syscall"

// Errno maps a driver error to an errno value. Platforms without POSIX
// errno semantics report EINVAL for every non-nil error.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	return syscall.EINVAL
}
