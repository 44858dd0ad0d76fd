package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/rehydrate"
	"github.com/roach88/rewind/internal/replay"
	"github.com/roach88/rewind/internal/val"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	SessionID string
	EventID   string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute a recorded tool call and compare outputs",
		Long: `Re-execute a recorded tool call against its reconstructed workspace.

The workspace is rebuilt as of the instant before the recorded call,
then the call runs again with its clock and random source pinned to
the recorded time. The fresh output is compared against the stored
output to verify determinism.

Exit codes:
  0 - replay succeeded and outputs match
  1 - replay failed or outputs diverged
  2 - command error (bad flags, missing database)

Examples:
  rewind replay --db ./rewind.db --session sess-1 --event call-42
  rewind replay --db ./rewind.db --session sess-1 --event call-42 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session id the event belongs to (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().StringVar(&opts.EventID, "event", "", "tool call event id to replay (required)")
	_ = cmd.MarkFlagRequired("event")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
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
	engine := replay.New(env.store, rehydrator)

	report := engine.Replay(ctx, opts.SessionID, opts.EventID)

	if opts.Format == "json" {
		return outputReplayJSON(cmd, report)
	}
	return outputReplayText(cmd, report, opts.Verbose)
}

// outputReplayJSON outputs the replay report as JSON.
func outputReplayJSON(cmd *cobra.Command, report replay.Report) error {
	response := CLIResponse{
		Status: "ok",
		Data:   report,
	}
	switch {
	case !report.Success:
		response.Status = "error"
		response.Error = &CLIError{Code: "REPLAY_FAILED", Message: report.Error}
	case !report.Matches:
		response.Status = "error"
		response.Error = &CLIError{Code: "REPLAY_DIVERGED", Message: "replay output diverged from the recorded output"}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	return replayExitError(report)
}

// outputReplayText outputs the replay report as text.
func outputReplayText(cmd *cobra.Command, report replay.Report, verbose bool) error {
	w := cmd.OutOrStdout()

	if !report.Success {
		fmt.Fprintf(w, "✗ Replay failed: %s\n", report.Error)
		return replayExitError(report)
	}

	if report.SkippedPatches > 0 {
		fmt.Fprintf(w, "! %d patch(es) skipped during reconstruction\n", report.SkippedPatches)
	}

	if report.Matches {
		fmt.Fprintln(w, "✓ Replay matches the recorded output")
		if verbose {
			fmt.Fprintf(w, "  output: %s\n", renderValue(report.ReplayOutput))
		}
		return nil
	}

	fmt.Fprintln(w, "✗ Replay diverged from the recorded output")
	fmt.Fprintf(w, "  recorded: %s\n", renderValue(report.OriginalOutput))
	fmt.Fprintf(w, "  replayed: %s\n", renderValue(report.ReplayOutput))
	return replayExitError(report)
}

// replayExitError maps a report to the command's exit error, nil when
// the replay succeeded and matched.
func replayExitError(report replay.Report) error {
	if !report.Success {
		return NewExitError(ExitFailure, "replay failed: "+report.Error)
	}
	if !report.Matches {
		return NewExitError(ExitFailure, "replay output diverged from the recorded output")
	}
	return nil
}

// renderValue formats a value for text output.
func renderValue(v val.Value) string {
	if v == nil {
		return "null"
	}
	data, err := val.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<unrenderable: %v>", err)
	}
	return string(data)
}
