package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// SessionsOptions holds flags for the sessions command.
type SessionsOptions struct {
	*RootOptions
}

// SessionEntry is one session in the listing.
type SessionEntry struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	VTStart int64  `json:"vt_start"`
}

// SessionsResult holds the sessions command output.
type SessionsResult struct {
	Sessions []SessionEntry `json:"sessions"`
	Count    int            `json:"count"`
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List current sessions",
		Long: `List sessions whose transaction-time interval is still open.

Superseded and deleted session rows are not shown.

Examples:
  rewind sessions --db ./rewind.db
  rewind sessions --db ./rewind.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(opts, cmd)
		},
	}

	return cmd
}

func runSessions(opts *SessionsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := openEnvironment(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.Close()

	sessions, err := env.store.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	result := SessionsResult{
		Sessions: make([]SessionEntry, 0, len(sessions)),
		Count:    len(sessions),
	}
	for _, sess := range sessions {
		result.Sessions = append(result.Sessions, SessionEntry{
			ID:      sess.ID,
			Label:   sess.Label,
			VTStart: sess.VTStart,
		})
	}

	if opts.Format == "json" {
		return outputSessionsJSON(cmd, result)
	}
	return outputSessionsText(cmd, result)
}

// outputSessionsJSON outputs the session listing as JSON.
func outputSessionsJSON(cmd *cobra.Command, result SessionsResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputSessionsText outputs the session listing as text.
func outputSessionsText(cmd *cobra.Command, result SessionsResult) error {
	w := cmd.OutOrStdout()

	if result.Count == 0 {
		fmt.Fprintln(w, "No sessions found")
		return nil
	}

	fmt.Fprintf(w, "Found %d session(s)\n\n", result.Count)
	for _, sess := range result.Sessions {
		fmt.Fprintf(w, "  %s  %13d  %s\n", sess.ID, sess.VTStart, sess.Label)
	}

	return nil
}
