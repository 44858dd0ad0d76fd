package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitError_Error(t *testing.T) {
	plain := NewExitError(ExitFailure, "replay diverged")
	assert.Equal(t, "replay diverged", plain.Error())

	wrapped := WrapExitError(ExitCommandError, "failed to open database", errors.New("disk gone"))
	assert.Equal(t, "failed to open database: disk gone", wrapped.Error())
}

func TestExitError_Unwrap(t *testing.T) {
	inner := errors.New("disk gone")
	wrapped := WrapExitError(ExitCommandError, "failed to open database", inner)
	assert.ErrorIs(t, wrapped, inner)

	plain := NewExitError(ExitFailure, "boom")
	assert.Nil(t, plain.Unwrap())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "boom")))

	// Exit errors survive further wrapping.
	wrapped := fmt.Errorf("outer: %w", NewExitError(ExitFailure, "inner"))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))

	// Anything else comes from flag parsing and is a usage error.
	assert.Equal(t, ExitCommandError, GetExitCode(errors.New("unknown flag: --bogus")))
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
	assert.Nil(t, decoded.Error)
}

func TestCLIResponse_JSONError(t *testing.T) {
	resp := CLIResponse{
		Status: "error",
		Error: &CLIError{
			Code:    "REPLAY_DIVERGED",
			Message: "replay output diverged from the recorded output",
		},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "error", decoded.Status)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, "REPLAY_DIVERGED", decoded.Error.Code)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "E003",
		Message: "prune.batch_size: must be positive",
		Details: []string{"rewind.cue"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "E003", decoded.Code)
	assert.Equal(t, "prune.batch_size: must be positive", decoded.Message)
}
