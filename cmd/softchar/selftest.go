package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/ardnew/softchar/device"
	"github.com/ardnew/softchar/host"
	"github.com/ardnew/softchar/pkg"
)

// errSelftest reports that at least one scripted step failed.
var errSelftest = errors.New("selftest failed")

// errMismatch reports a step that succeeded with unexpected results.
var errMismatch = errors.New("unexpected result")

// selftestMinCapacity is the largest message the script writes.
const selftestMinCapacity = len("Second Message")

func newSelftestCommand(opts *options) *cobra.Command {
	var stats bool

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Replay the reference open/write/read/close script",
		Long: `Opens two device nodes, writes a message to each and checks that reads
loop over the written content, that every open file keeps its own cursor and
that the two instances never see each other's data. The script needs replay
read mode and at least two minors; replay is forced regardless of the
configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dc, err := opts.cfg.Device()
			if err != nil {
				return err
			}
			dc.ReadMode = device.ReadModeReplay

			if dc.Minors < 2 {
				return fmt.Errorf("selftest needs 2 minors, have %d: %w", dc.Minors, pkg.ErrInvalidParameter)
			}
			if dc.Capacity < selftestMinCapacity {
				return fmt.Errorf("selftest needs capacity %d, have %d: %w",
					selftestMinCapacity, dc.Capacity, pkg.ErrInvalidParameter)
			}

			drv, h, _, err := opts.newHost(dc)
			if err != nil {
				return err
			}
			defer drv.Shutdown()

			s := &script{h: h, out: cmd.OutOrStdout()}
			names, err := h.Populate(opts.cfg.Nodes.Prefix, 2)
			if err != nil {
				return err
			}
			s.run(names[0], names[1])

			if stats {
				if err := printStats(s.out, drv); err != nil {
					return err
				}
			}
			return s.result()
		},
	}

	cmd.Flags().BoolVar(&stats, "stats", false, "print instance statistics after the script")
	return cmd
}

// script runs host operations in order, printing each one and collecting
// every failure instead of stopping at the first.
type script struct {
	h     *host.Host
	out   io.Writer
	steps int
	errs  *multierror.Error
}

func (s *script) run(dev0, dev1 string) {
	fd1 := s.open(dev0)
	s.write(fd1, "Hello World")
	s.expect(fd1, 5, "Hello")
	s.expect(fd1, 6, " World")
	s.expect(fd1, 13, "Hello World")
	s.expect(fd1, 17, "Hello World")
	s.close(fd1)

	fd1 = s.open(dev1)
	s.write(fd1, "Second Message")
	s.expect(fd1, 14, "Second Message")

	fd2 := s.open(dev0)
	s.expect(fd2, 20, "Hello World")
	s.close(fd1)

	fd3 := s.open(dev0)
	fd4 := s.open(dev0)
	fd5 := s.open(dev0)
	s.expect(fd3, 6, "Hello ")
	s.expect(fd4, 7, "Hello W")
	s.expect(fd5, 8, "Hello Wo")
	s.expect(fd3, 5, "World")
	s.expect(fd4, 4, "orld")
	s.expect(fd5, 3, "rld")

	s.close(fd2)
	s.close(fd3)
	s.close(fd4)
	s.close(fd5)
}

func (s *script) fail(err error) {
	s.errs = multierror.Append(s.errs, err)
	if errno := pkg.Errno(err); errno != 0 && !errors.Is(err, errMismatch) {
		fmt.Fprintf(s.out, "  FAIL %v (errno %d: %v)\n", err, int(errno), errno)
		return
	}
	fmt.Fprintf(s.out, "  FAIL %v\n", err)
}

func (s *script) open(name string) int {
	s.steps++
	fd, err := s.h.Open(name)
	if err != nil {
		s.fail(err)
		return fd
	}
	fmt.Fprintf(s.out, "  open %s = %d\n", name, fd)
	return fd
}

func (s *script) write(fd int, msg string) {
	s.steps++
	n, err := s.h.Write(fd, []byte(msg))
	if err != nil {
		s.fail(err)
		return
	}
	if n != len(msg) {
		s.fail(fmt.Errorf("write fd %d: wrote %d of %d bytes: %w", fd, n, len(msg), errMismatch))
		return
	}
	fmt.Fprintf(s.out, "  write %d %q = %d\n", fd, msg, n)
}

func (s *script) expect(fd, n int, want string) {
	s.steps++
	got, err := s.h.Read(fd, n)
	if err != nil {
		s.fail(err)
		return
	}
	if string(got) != want {
		s.fail(fmt.Errorf("read fd %d n %d: got %q, want %q: %w", fd, n, got, want, errMismatch))
		return
	}
	fmt.Fprintf(s.out, "  read %d %d = %q\n", fd, n, got)
}

func (s *script) close(fd int) {
	s.steps++
	if err := s.h.Close(fd); err != nil {
		s.fail(err)
		return
	}
	fmt.Fprintf(s.out, "  close %d\n", fd)
}

// result prints the summary line and returns the collected failures.
func (s *script) result() error {
	failed := 0
	if s.errs != nil {
		failed = len(s.errs.Errors)
	}
	fmt.Fprintf(s.out, "%d steps, %d failed\n", s.steps, failed)
	if failed > 0 {
		return fmt.Errorf("%w: %w", errSelftest, s.errs)
	}
	return nil
}
