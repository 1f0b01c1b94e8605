package main

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ardnew/softchar/device"
	"github.com/ardnew/softchar/host"
	"github.com/ardnew/softchar/pkg"
	"github.com/ardnew/softchar/pkg/config"
	"github.com/ardnew/softchar/pkg/prof"
)

// options holds the persistent flags shared by every command.
type options struct {
	configPath string
	verbose    bool
	jsonLog    bool
	profileDir string

	// Loaded by the root pre-run hook.
	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "softchar",
		Short:         "In-memory character device driver",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose (debug) logging")
	flags.BoolVar(&opts.jsonLog, "json", false, "use JSON log format")
	flags.StringVar(&opts.profileDir, "profile-dir", "", "write pprof data to this directory")

	root.AddCommand(
		newSelftestCommand(opts),
		newStressCommand(opts),
		newNodesCommand(opts),
		newConfigCommand(opts),
	)

	return root
}

// setup loads the configuration, applies logging flags over it and starts
// profiling when requested.
func (o *options) setup() error {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return err
	}

	if err := cfg.ApplyLogging(); err != nil {
		return err
	}
	if o.verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	}
	if o.jsonLog {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}
	o.cfg = cfg

	pkg.LogDebug(component, "configuration", "config", cfg)

	if o.profileDir != "" {
		if !prof.Enabled {
			pkg.LogWarn(component, "profiling requested but binary built without profile tag")
			return nil
		}
		err := prof.Start(prof.Options{
			Dir:       o.profileDir,
			CPU:       true,
			Snapshots: []prof.Profile{prof.ProfileMutex, prof.ProfileBlock, prof.ProfileHeap},
		})
		if err != nil {
			return fmt.Errorf("profiling: %w", err)
		}
		pkg.LogInfo(component, "profiling started", "dir", o.profileDir)
	}
	return nil
}

func (o *options) teardown() error {
	if !prof.Active() {
		return nil
	}
	if err := prof.Stop(); err != nil {
		return fmt.Errorf("profiling: %w", err)
	}
	pkg.LogInfo(component, "profiles written", "dir", o.profileDir)
	return nil
}

// newHost builds a driver from dc and a host with the configured nodes.
func (o *options) newHost(dc device.Config) (*device.Driver, *host.Host, []string, error) {
	drv, err := device.NewDriver(dc)
	if err != nil {
		return nil, nil, nil, err
	}

	h := host.New(drv, nil)
	count := o.cfg.NodeCount()
	if count > dc.Minors {
		count = dc.Minors
	}
	names, err := h.Populate(o.cfg.Nodes.Prefix, count)
	if err != nil {
		drv.Shutdown()
		return nil, nil, nil, err
	}
	return drv, h, names, nil
}

// printStats writes one line per instance the driver has created.
func printStats(w io.Writer, drv *device.Driver) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MINOR\tCAPACITY\tWRITTEN\tRETAINED\tOLDEST\tOPEN")
	for _, st := range drv.Stats() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			st.Minor,
			humanize.IBytes(uint64(st.Capacity)),
			humanize.IBytes(st.Written),
			humanize.IBytes(uint64(st.Retained)),
			humanize.Comma(int64(st.Oldest)),
			st.Opens)
	}
	return tw.Flush()
}
