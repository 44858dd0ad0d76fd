package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds the global flags shared by every subcommand.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string // SQLite path, overrides the config file
	BlobDir    string // blob directory, overrides the config file
	ConfigPath string // optional rewind.cue
}

// outputFormats lists the accepted --format values.
var outputFormats = []string{"text", "json"}

func validFormat(format string) bool {
	return slices.Contains(outputFormats, format)
}

// NewRootCommand creates the root command for the rewind CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rewind",
		Short: "Rewind - bitemporal workspace history",
		Long:  "Reconstruct, replay and prune recorded agent workspace history.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !validFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: expected text or json", opts.Format)
			}
			initLogging(opts.Verbose)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	pf.StringVar(&opts.BlobDir, "blob-dir", "", "path to blob directory (overrides config)")
	pf.StringVar(&opts.ConfigPath, "config", "", "path to rewind.cue config file")

	cmd.AddCommand(NewRehydrateCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewPruneCommand(opts))
	cmd.AddCommand(NewSessionsCommand(opts))

	return cmd
}

// initLogging routes slog to stderr so diagnostics never mix with
// command output on stdout.
func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
