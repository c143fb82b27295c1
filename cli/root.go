// Package cli implements the livedash command line.
package cli

import (
	"fmt"
	"os"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"github.com/coder/serpent"
)

const envPrefix = "LIVEDASH_"

// RootCmd holds options shared by every subcommand.
type RootCmd struct {
	verbose bool
}

func (r *RootCmd) Command() *serpent.Command {
	return &serpent.Command{
		Use:   "livedash",
		Short: "Realtime analytics dashboard",
		Long: `Serve a live dashboard of active users by browser and operating system,
or watch a running server from the terminal.`,
		Options: serpent.OptionSet{
			{
				Name:          "Verbose",
				Description:   "Output debug-level logs.",
				Flag:          "verbose",
				FlagShorthand: "v",
				Env:           envPrefix + "VERBOSE",
				Default:       "false",
				Value:         serpent.BoolOf(&r.verbose),
			},
		},
		Children: []*serpent.Command{
			r.server(),
			r.watch(),
			r.version(),
		},
	}
}

// Main runs the command line with the process arguments and environment and
// exits non-zero on error.
func (r *RootCmd) Main() {
	err := r.Command().Invoke().WithOS().Run()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (r *RootCmd) logger(inv *serpent.Invocation) slog.Logger {
	logger := slog.Make(sloghuman.Sink(inv.Stderr))
	if r.verbose {
		logger = logger.Leveled(slog.LevelDebug)
	}
	return logger
}
