package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newNodesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "Create and list the device nodes",
		Long: `Creates one node per configured minor under the configured prefix, the way
mknod would, and lists each node with the major and minor it resolves to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dc, err := opts.cfg.Device()
			if err != nil {
				return err
			}
			drv, h, _, err := opts.newHost(dc)
			if err != nil {
				return err
			}
			defer drv.Shutdown()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NODE\tTYPE\tMAJOR\tMINOR\tCAPACITY")
			for _, n := range h.Namespace().Nodes() {
				fmt.Fprintf(tw, "%s\tc\t%d\t%d\t%s\n",
					n.Name, n.Major, n.Minor, humanize.IBytes(uint64(dc.Capacity)))
			}
			return tw.Flush()
		},
	}
}
