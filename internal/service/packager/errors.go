package packager

import (
	"errors"
	"fmt"

	"github.com/oshokin/distpack/internal/domain/release"
)

var (
	// ErrWantFile is returned when a manifest file entry is a directory.
	ErrWantFile = errors.New("expected a regular file")
	// ErrWantDir is returned when a manifest directory entry is not a directory.
	ErrWantDir = errors.New("expected a directory")
	// ErrDestInsideSource is returned when a recursively copied directory
	// contains the destination root, which would copy the staging directory into itself.
	ErrDestInsideSource = errors.New("destination root is inside a copied directory")
)

// MissingInputError reports a manifest entry that is absent from the source
// root or has the wrong kind.
type MissingInputError struct {
	// Path is the manifest path relative to the source root.
	Path string
	// Err is fs.ErrNotExist, ErrWantFile, ErrWantDir or the stat error.
	Err error
}

// Error implements error.
func (e *MissingInputError) Error() string {
	return fmt.Sprintf("input %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *MissingInputError) Unwrap() error {
	return e.Err
}

// StepError records the pipeline step a failure happened in.
type StepError struct {
	// Step is the failed pipeline step.
	Step release.Step
	// Err is the underlying error.
	Err error
}

// Error implements error.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s step: %v", e.Step, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StepError) Unwrap() error {
	return e.Err
}
