package pkg

import "errors"

// Driver errors.
var (
	// ErrInvalidTarget indicates an open against an instance number the
	// driver does not serve, or a node whose major number is not ours.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrInvalidHandle indicates an operation on a closed or unknown handle.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrDataLoss indicates the reader fell behind the retained window and
	// bytes were overwritten before it could read them.
	ErrDataLoss = errors.New("data lost to overwrite")

	// ErrNoDevice indicates no device node exists under the given name.
	ErrNoDevice = errors.New("no such device node")

	// ErrExists indicates a device node already exists under the given name.
	ErrExists = errors.New("device node exists")

	// ErrNotSupported indicates an unsupported operation or control command.
	ErrNotSupported = errors.New("not supported")

	// ErrNotRunning indicates the driver has been shut down.
	ErrNotRunning = errors.New("driver not running")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")
)

