//go:build linux || darwin || freebsd || netbsd || openbsd

package pkg

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

var errnos = []struct {
	err   error
	errno syscall.Errno
}{
	{ErrInvalidTarget, unix.ENXIO},
	{ErrInvalidHandle, unix.EBADF},
	{ErrDataLoss, unix.EOVERFLOW},
	{ErrNoDevice, unix.ENOENT},
	{ErrExists, unix.EEXIST},
	{ErrNotSupported, unix.ENOTTY},
	{ErrNotRunning, unix.ESHUTDOWN},
	{ErrInvalidParameter, unix.EINVAL},
}

// Errno maps a driver error to the errno value a read(2)/write(2) caller
// would observe. It returns 0 for nil and unix.EIO for errors outside the
// driver taxonomy.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	for _, e := range errnos {
		if errors.Is(err, e.err) {
			return e.errno
		}
	}
	return unix.EIO
}
