package tree

import (
	"errors"
	"fmt"
)

// PathError reports a failed tree operation.
//
// Path failures include:
//   - Absent files or directories (NOT_FOUND)
//   - Type confusion: reading a directory as a file or vice versa
//   - Traversal attempts: any ".." segment is rejected before resolution
type PathError struct {
	// Op is the operation that failed ("read", "readdir", "write", "mkdir").
	Op string

	// Path is the path as the caller supplied it.
	Path string

	// Code identifies the failure category.
	Code PathErrorCode
}

// PathErrorCode categorizes path failures.
type PathErrorCode string

const (
	// ErrCodeNotFound indicates the path does not exist.
	ErrCodeNotFound PathErrorCode = "NOT_FOUND"

	// ErrCodeNotADirectory indicates a directory operation hit a file.
	ErrCodeNotADirectory PathErrorCode = "NOT_A_DIRECTORY"

	// ErrCodeIsADirectory indicates a file operation hit a directory.
	ErrCodeIsADirectory PathErrorCode = "IS_A_DIRECTORY"

	// ErrCodeEscapesRoot indicates the path contained a ".." segment.
	ErrCodeEscapesRoot PathErrorCode = "PATH_ESCAPES_ROOT"

	// ErrCodeEmptyPath indicates the path had no segments where some
	// were required (e.g. writing to "/").
	ErrCodeEmptyPath PathErrorCode = "EMPTY_PATH"
)

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %s %q", e.Code, e.Op, e.Path)
}

// IsNotFound returns true if the error is a NOT_FOUND path error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var pe *PathError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeNotFound
	}
	return false
}

// IsTraversal returns true if the error is a PATH_ESCAPES_ROOT error.
// Uses errors.As to handle wrapped errors.
func IsTraversal(err error) bool {
	var pe *PathError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeEscapesRoot
	}
	return false
}

// SnapshotDecodeError reports that snapshot bytes decoded under
// neither wire format. Both causes are kept so the caller can see why
// each attempt failed.
type SnapshotDecodeError struct {
	// Compressed is the gzip+JSON attempt's failure.
	Compressed error

	// Legacy is the raw-JSON attempt's failure.
	Legacy error
}

// Error implements the error interface.
func (e *SnapshotDecodeError) Error() string {
	return fmt.Sprintf("snapshot decodes under no known format: compressed: %v; legacy: %v", e.Compressed, e.Legacy)
}

// IsSnapshotDecodeError returns true if the error is a snapshot decode
// failure. Uses errors.As to handle wrapped errors.
func IsSnapshotDecodeError(err error) bool {
	var de *SnapshotDecodeError
	return errors.As(err, &de)
}
