// Command softchar drives the in-memory character device driver from the
// command line.
//
// Usage:
//
//	softchar [flags] <command>
//
// Commands:
//
//	selftest   Replay the reference open/write/read/close script
//	stress     Run concurrent writers and readers against one minor
//	nodes      Create and list the device nodes
//	config     Print the effective configuration as YAML
//
// Global flags:
//
//	-c, --config path      YAML configuration file (default: built-in + env)
//	-v, --verbose          Enable verbose (debug) logging
//	    --json             Use JSON log format
//	    --profile-dir dir  Write pprof data to dir (needs -tags profile)
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardnew/softchar/pkg"
)

// component identifies this executable for structured logging.
const component = pkg.ComponentCLI

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		pkg.LogError(component, "command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
