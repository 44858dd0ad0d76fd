package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/rehydrate"
	"github.com/roach88/rewind/internal/temporal"
	"github.com/roach88/rewind/internal/tree"
)

// RehydrateOptions holds flags for the rehydrate command.
type RehydrateOptions struct {
	*RootOptions
	SessionID string
	At        int64
	OutPath   string
}

// RehydrateFile is one reconstructed file in the listing.
type RehydrateFile struct {
	Path         string `json:"path"`
	Size         int    `json:"size"`
	LastModified int64  `json:"last_modified"`
}

// RehydrateResult holds the complete rehydrate output.
type RehydrateResult struct {
	SessionID         string                   `json:"session_id"`
	At                int64                    `json:"at"`
	SnapshotAt        int64                    `json:"snapshot_at"`
	SnapshotRecovered bool                     `json:"snapshot_recovered"`
	Applied           int                      `json:"applied"`
	Skipped           []rehydrate.SkippedPatch `json:"skipped"`
	Files             []RehydrateFile          `json:"files"`
	OutPath           string                   `json:"out_path,omitempty"`
}

// NewRehydrateCommand creates the rehydrate command.
func NewRehydrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RehydrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rehydrate",
		Short: "Reconstruct a session's workspace at a point in time",
		Long: `Reconstruct the workspace file tree for a session as of a target time.

Reconstruction starts from the latest snapshot at or before the target
time and applies the recorded diffs that follow it, in order. A diff
that no longer applies is skipped and reported instead of aborting the
whole reconstruction.

The default target time is the open-interval sentinel, which yields
the latest recorded state.

Examples:
  rewind rehydrate --db ./rewind.db --session sess-1
  rewind rehydrate --db ./rewind.db --session sess-1 --at 1700000000000
  rewind rehydrate --db ./rewind.db --session sess-1 --out state.snap`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRehydrate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session id to reconstruct (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().Int64Var(&opts.At, "at", temporal.MaxDate, "target time in epoch milliseconds (default: latest)")
	cmd.Flags().StringVar(&opts.OutPath, "out", "", "write the encoded snapshot to this file")

	return cmd
}

func runRehydrate(opts *RehydrateOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := openEnvironment(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()

	rehydrator := rehydrate.New(env.store, env.blobs, rehydrate.WithRecovery(env.cfg.Recovery))

	res, err := rehydrator.Rehydrate(ctx, opts.SessionID, opts.At)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to rehydrate session", err)
	}

	result := RehydrateResult{
		SessionID:         opts.SessionID,
		At:                opts.At,
		SnapshotAt:        res.SnapshotAt,
		SnapshotRecovered: res.SnapshotRecovered,
		Applied:           res.Applied,
		Skipped:           res.Skipped,
		Files:             listFiles(res.Tree),
	}

	if opts.OutPath != "" {
		encoded, err := tree.EncodeSnapshot(res.Tree)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode snapshot", err)
		}
		if err := os.WriteFile(opts.OutPath, encoded, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write snapshot file", err)
		}
		result.OutPath = opts.OutPath
	}

	if opts.Format == "json" {
		return outputRehydrateJSON(cmd, result)
	}
	return outputRehydrateText(cmd, result)
}

// listFiles flattens the tree into a file listing. Walk visits
// children in sorted order, so the listing is sorted by path.
func listFiles(t *tree.Tree) []RehydrateFile {
	files := []RehydrateFile{}
	_ = t.Walk(func(path string, n tree.Node) error {
		if f, ok := n.(*tree.File); ok {
			files = append(files, RehydrateFile{
				Path:         path,
				Size:         len(f.Content),
				LastModified: f.LastModified,
			})
		}
		return nil
	})
	return files
}

// outputRehydrateJSON outputs the rehydrate result as JSON.
func outputRehydrateJSON(cmd *cobra.Command, result RehydrateResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputRehydrateText outputs the rehydrate result as text.
func outputRehydrateText(cmd *cobra.Command, result RehydrateResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "✓ Rehydrated session %s\n", result.SessionID)
	if result.SnapshotAt > 0 {
		fmt.Fprintf(w, "  base snapshot at %d\n", result.SnapshotAt)
	} else {
		fmt.Fprintln(w, "  no base snapshot (started from an empty tree)")
	}
	if result.SnapshotRecovered {
		fmt.Fprintln(w, "  ! snapshot payload was undecodable, reconstruction started from an empty tree")
	}
	fmt.Fprintf(w, "  %d diff(s) applied, %d skipped\n", result.Applied, len(result.Skipped))
	fmt.Fprintln(w)

	if len(result.Files) == 0 {
		fmt.Fprintln(w, "(empty workspace)")
	} else {
		fmt.Fprintf(w, "%8s  %13s  %s\n", "SIZE", "MODIFIED", "PATH")
		for _, f := range result.Files {
			fmt.Fprintf(w, "%8d  %13d  %s\n", f.Size, f.LastModified, f.Path)
		}
	}

	if len(result.Skipped) > 0 {
		fmt.Fprintln(w)
		for _, s := range result.Skipped {
			fmt.Fprintf(w, "✗ skipped %s at %d: %s\n", s.FilePath, s.VTStart, s.Reason)
		}
	}

	if result.OutPath != "" {
		fmt.Fprintf(w, "\nSnapshot written to %s\n", result.OutPath)
	}

	return nil
}
