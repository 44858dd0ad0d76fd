package patch

import (
	"errors"
	"fmt"
)

// ApplyErrorCode classifies why a patch could not be applied.
type ApplyErrorCode string

const (
	// ErrCodeParseFailed indicates the patch text is not a unified diff.
	ErrCodeParseFailed ApplyErrorCode = "PARSE_FAILED"

	// ErrCodeEmptyPatch indicates the patch contained no hunks.
	ErrCodeEmptyPatch ApplyErrorCode = "EMPTY_PATCH"

	// ErrCodeTargetMissing indicates the target file does not exist and
	// the patch is not a pure addition.
	ErrCodeTargetMissing ApplyErrorCode = "TARGET_MISSING"

	// ErrCodeTargetInvalid indicates the target path cannot hold a file,
	// for example a directory or a path escaping the root.
	ErrCodeTargetInvalid ApplyErrorCode = "TARGET_INVALID"

	// ErrCodeContextMismatch indicates a context or deletion line did
	// not match the target content at the expected position.
	ErrCodeContextMismatch ApplyErrorCode = "CONTEXT_MISMATCH"
)

// ApplyError reports a failed patch application. Hunk is the 1-based
// index of the failing hunk, or 0 when the failure is not specific to
// one hunk.
type ApplyError struct {
	Path    string
	Hunk    int
	Code    ApplyErrorCode
	Message string
}

func (e *ApplyError) Error() string {
	if e.Hunk > 0 {
		return fmt.Sprintf("patch apply failed [%s] %s hunk %d: %s", e.Code, e.Path, e.Hunk, e.Message)
	}
	return fmt.Sprintf("patch apply failed [%s] %s: %s", e.Code, e.Path, e.Message)
}

// IsApplyFailure reports whether err is any patch application failure.
func IsApplyFailure(err error) bool {
	var ae *ApplyError
	return errors.As(err, &ae)
}
