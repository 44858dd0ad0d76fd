package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "rewind", cmd.Use)
	assert.Contains(t, cmd.Long, "workspace history")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"rehydrate", "replay", "prune", "sessions"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"db", "blob-dir", "config"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, "flag %s should exist", name)
		assert.Equal(t, "", flag.DefValue)
	}
}

func TestRehydrateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	rehydrateCmd, _, err := cmd.Find([]string{"rehydrate"})
	require.NoError(t, err)

	sessionFlag := rehydrateCmd.Flags().Lookup("session")
	require.NotNil(t, sessionFlag)
	// --session is required, so default is empty
	assert.Equal(t, "", sessionFlag.DefValue)

	atFlag := rehydrateCmd.Flags().Lookup("at")
	require.NotNil(t, atFlag)
	assert.Equal(t, "253402300799999", atFlag.DefValue)

	outFlag := rehydrateCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag)
}

func TestReplayCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	replayCmd, _, err := cmd.Find([]string{"replay"})
	require.NoError(t, err)

	sessionFlag := replayCmd.Flags().Lookup("session")
	require.NotNil(t, sessionFlag)

	eventFlag := replayCmd.Flags().Lookup("event")
	require.NotNil(t, eventFlag)
}

func TestPruneCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	pruneCmd, _, err := cmd.Find([]string{"prune"})
	require.NoError(t, err)

	retentionFlag := pruneCmd.Flags().Lookup("retention-ms")
	require.NotNil(t, retentionFlag)
	assert.Equal(t, "0", retentionFlag.DefValue)

	batchFlag := pruneCmd.Flags().Lookup("batch-size")
	require.NotNil(t, batchFlag)
	assert.Equal(t, "0", batchFlag.DefValue)

	maxFlag := pruneCmd.Flags().Lookup("max-batches")
	require.NotNil(t, maxFlag)
	assert.Equal(t, "-1", maxFlag.DefValue)

	archiveFlag := pruneCmd.Flags().Lookup("no-archive")
	require.NotNil(t, archiveFlag)
	assert.Equal(t, "false", archiveFlag.DefValue)
}

func TestFormatValidation(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		assert.True(t, validFormat(format), format)
	}
	// Matching is exact, no case folding.
	for _, format := range []string{"xml", "", "TEXT", "Text"} {
		assert.False(t, validFormat(format), format)
	}
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "sessions"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootRunsSubcommandWithGlobalFlags(t *testing.T) {
	env := newTestEnv(t)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"sessions", "--db", env.dbPath, "--blob-dir", env.blobDir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No sessions found")
}
