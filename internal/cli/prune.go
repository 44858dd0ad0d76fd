package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/prune"
)

// PruneOptions holds flags for the prune command.
type PruneOptions struct {
	*RootOptions
	RetentionMs int64
	BatchSize   int
	MaxBatches  int
	NoArchive   bool
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PruneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Archive and delete expired history",
		Long: `Delete closed rows whose transaction time ended before the retention
threshold.

Expired rows are archived to the blob store as canonical JSON lines
before any deletion, then deleted in bounded batches. A run capped by
--max-batches can simply be rerun later: the threshold predicate makes
prune resumable.

Examples:
  rewind prune --db ./rewind.db
  rewind prune --db ./rewind.db --retention-ms 86400000
  rewind prune --db ./rewind.db --max-batches 10 --no-archive`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.RetentionMs, "retention-ms", 0, "retention window in milliseconds (0 = use config)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "rows per delete batch (0 = use config)")
	cmd.Flags().IntVar(&opts.MaxBatches, "max-batches", -1, "maximum batches this run, 0 for unbounded (-1 = use config)")
	cmd.Flags().BoolVar(&opts.NoArchive, "no-archive", false, "skip archival before deletion")

	return cmd
}

func runPrune(opts *PruneOptions, cmd *cobra.Command) error {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	// An interrupt stops the run between batches; the threshold
	// predicate makes the next run pick up the remainder.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping after current batch", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	env, err := openEnvironment(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()

	// Flag values win over the config file.
	runOpts := prune.Options{
		RetentionMs: env.cfg.Prune.RetentionMs,
		BatchSize:   env.cfg.Prune.BatchSize,
		MaxBatches:  env.cfg.Prune.MaxBatches,
		Archive:     env.cfg.Prune.Archive && !opts.NoArchive,
	}
	if opts.RetentionMs > 0 {
		runOpts.RetentionMs = opts.RetentionMs
	}
	if opts.BatchSize > 0 {
		runOpts.BatchSize = opts.BatchSize
	}
	if opts.MaxBatches >= 0 {
		runOpts.MaxBatches = opts.MaxBatches
	}

	pruner := prune.New(env.store, env.blobs)

	result, err := pruner.Run(ctx, runOpts)
	if err != nil {
		return WrapExitError(ExitFailure,
			fmt.Sprintf("prune failed after %d deletion(s)", result.Deleted), err)
	}

	if opts.Format == "json" {
		return outputPruneJSON(cmd, result)
	}
	return outputPruneText(cmd, result)
}

// outputPruneJSON outputs the prune result as JSON.
func outputPruneJSON(cmd *cobra.Command, result prune.Result) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputPruneText outputs the prune result as text.
func outputPruneText(cmd *cobra.Command, result prune.Result) error {
	w := cmd.OutOrStdout()

	if result.Deleted == 0 && result.Archived == 0 {
		fmt.Fprintln(w, "✓ No expired history to prune")
		return nil
	}

	fmt.Fprintf(w, "✓ Pruned %d expired row(s) in %d batch(es)\n", result.Deleted, result.Batches)
	if result.ArchiveRef != "" {
		fmt.Fprintf(w, "  archived %d row(s) to %s\n", result.Archived, result.ArchiveRef)
	}

	return nil
}
