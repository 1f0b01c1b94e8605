package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ardnew/softchar/device"
	"github.com/ardnew/softchar/pkg"
)

// errTornRead reports a block that mixed bytes from two writes.
var errTornRead = errors.New("torn read")

// stressOptions configures a stress run.
type stressOptions struct {
	Minor     int
	Writers   int
	Readers   int
	Blocks    int // per writer
	BlockSize int
}

// stressResult summarizes a stress run.
type stressResult struct {
	Elapsed      time.Duration
	BytesWritten uint64
	BytesRead    uint64
	BlocksRead   uint64
	DataLoss     uint64 // ErrDataLoss reports under OverflowError
}

func newStressCommand(opts *options) *cobra.Command {
	so := stressOptions{
		Writers:   4,
		Readers:   4,
		Blocks:    10000,
		BlockSize: 16,
	}
	var stats bool

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run concurrent writers and readers against one minor",
		Long: `Writers append fixed-size blocks, each filled with a single byte value,
while readers consume the same instance in stream mode and verify that no
block they receive mixes two writes. The ring capacity must be a multiple of
the block size so that every stream position stays block aligned.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dc, err := opts.cfg.Device()
			if err != nil {
				return err
			}
			dc.ReadMode = device.ReadModeStream

			drv, err := device.NewDriver(dc)
			if err != nil {
				return err
			}
			defer drv.Shutdown()

			res, err := runStress(cmd.Context(), drv, so)
			if err != nil {
				return err
			}
			printStressResult(cmd.OutOrStdout(), res)
			if stats {
				return printStats(cmd.OutOrStdout(), drv)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&so.Minor, "minor", so.Minor, "minor number to load")
	flags.IntVarP(&so.Writers, "writers", "w", so.Writers, "number of writer goroutines")
	flags.IntVarP(&so.Readers, "readers", "r", so.Readers, "number of reader goroutines")
	flags.IntVarP(&so.Blocks, "blocks", "n", so.Blocks, "blocks written by each writer")
	flags.IntVarP(&so.BlockSize, "block-size", "b", so.BlockSize, "bytes per block")
	flags.BoolVar(&stats, "stats", false, "print instance statistics after the run")
	return cmd
}

func (o stressOptions) validate(capacity int) error {
	switch {
	case o.Writers < 1, o.Readers < 0, o.Blocks < 1:
		return fmt.Errorf("stress: writers %d readers %d blocks %d: %w",
			o.Writers, o.Readers, o.Blocks, pkg.ErrInvalidParameter)
	case o.BlockSize < 1 || o.BlockSize > capacity || capacity%o.BlockSize != 0:
		return fmt.Errorf("stress: block size %d must divide capacity %d: %w",
			o.BlockSize, capacity, pkg.ErrInvalidParameter)
	}
	return nil
}

// runStress drives drv with o and returns once every writer has finished and
// every reader has drained what was left.
func runStress(ctx context.Context, drv *device.Driver, o stressOptions) (stressResult, error) {
	var res stressResult
	if err := o.validate(drv.Config().Capacity); err != nil {
		return res, err
	}

	var read, blocks, lost, written atomic.Uint64

	// Readers open first so that they start at the beginning of the stream.
	readers := make([]*device.File, 0, o.Readers)
	defer func() {
		for _, f := range readers {
			_ = f.Close()
		}
	}()
	for i := 0; i < o.Readers; i++ {
		f, err := drv.Open(o.Minor)
		if err != nil {
			return res, err
		}
		readers = append(readers, f)
	}

	start := time.Now()

	rg, rctx := errgroup.WithContext(ctx)
	readCtx, stopReaders := context.WithCancel(rctx)
	defer stopReaders()

	for _, f := range readers {
		f := f
		rg.Go(func() error {
			buf := make([]byte, o.BlockSize)
			consume := func(n int) error {
				if n == 0 {
					return nil
				}
				if n != o.BlockSize || !uniform(buf[:n]) {
					return fmt.Errorf("%w: file %s at %d: % x",
						errTornRead, f.ID(), f.Cursor()-uint64(n), buf[:n])
				}
				read.Add(uint64(n))
				blocks.Add(1)
				return nil
			}

			for {
				n, err := f.ReadContext(readCtx, buf)
				switch {
				case errors.Is(err, pkg.ErrDataLoss):
					lost.Add(1)
					continue
				case errors.Is(err, context.Canceled) && ctx.Err() == nil:
					// Writers are done; take what is left without waiting.
					for {
						n, err := f.Read(buf)
						if errors.Is(err, pkg.ErrDataLoss) {
							lost.Add(1)
							continue
						}
						if err != nil || n == 0 {
							return err
						}
						if err := consume(n); err != nil {
							return err
						}
					}
				case err != nil:
					return err
				}
				if err := consume(n); err != nil {
					return err
				}
			}
		})
	}

	wg, wctx := errgroup.WithContext(ctx)
	for w := 0; w < o.Writers; w++ {
		w := w
		wg.Go(func() error {
			f, err := drv.Open(o.Minor)
			if err != nil {
				return err
			}
			defer f.Close()

			block := make([]byte, o.BlockSize)
			for i := 0; i < o.Blocks; i++ {
				if err := wctx.Err(); err != nil {
					return err
				}
				// Never 0 so a zeroed buffer cannot pass as a block.
				fill(block, byte((w*o.Blocks+i)%255+1))
				n, err := f.Write(block)
				if err != nil {
					return err
				}
				written.Add(uint64(n))
			}
			return nil
		})
	}

	werr := wg.Wait()
	stopReaders()
	rerr := rg.Wait()

	res = stressResult{
		Elapsed:      time.Since(start),
		BytesWritten: written.Load(),
		BytesRead:    read.Load(),
		BlocksRead:   blocks.Load(),
		DataLoss:     lost.Load(),
	}

	pkg.LogInfo(component, "stress finished",
		"minor", o.Minor,
		"elapsed", res.Elapsed,
		"written", res.BytesWritten,
		"read", res.BytesRead,
		"dataLoss", res.DataLoss)

	if werr != nil {
		return res, werr
	}
	return res, rerr
}

func printStressResult(w io.Writer, res stressResult) {
	rate := func(b uint64) string {
		secs := res.Elapsed.Seconds()
		if secs <= 0 {
			return "-"
		}
		return humanize.IBytes(uint64(float64(b)/secs)) + "/s"
	}

	fmt.Fprintf(w, "elapsed   %s\n", res.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "written   %s (%s)\n", humanize.IBytes(res.BytesWritten), rate(res.BytesWritten))
	fmt.Fprintf(w, "read      %s (%s) in %s blocks\n",
		humanize.IBytes(res.BytesRead), rate(res.BytesRead), humanize.Comma(int64(res.BlocksRead)))
	fmt.Fprintf(w, "data loss %s\n", humanize.Comma(int64(res.DataLoss)))
}

func fill(p []byte, b byte) {
	for i := range p {
		p[i] = b
	}
}

func uniform(p []byte) bool {
	for _, b := range p {
		if b != p[0] {
			return false
		}
	}
	return true
}
