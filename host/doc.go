// Package host is the caller's side of the softchar driver.
//
// It supplies the plumbing a process normally gets from the kernel: a
// [Namespace] of device nodes that binds names such as
// /dev/simpleCharDevice0 to (major, minor) pairs, and a [Host] that turns
// open(2)-style calls on those names into driver files behind small integer
// descriptors.
//
//	drv, _ := device.NewDriver(device.DefaultConfig())
//	h := host.New(drv, nil)
//	h.Populate("/dev/simpleCharDevice", 2)
//
//	fd, _ := h.Open("/dev/simpleCharDevice0")
//	h.Write(fd, []byte("Hello World"))
//	b, _ := h.Read(fd, 5) // "Hello"
//	h.Close(fd)
//
// Errors wrap the sentinels in [github.com/ardnew/softchar/pkg]; use
// [github.com/ardnew/softchar/pkg.Errno] to see them as errno values.
package host
