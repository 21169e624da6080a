package copier

import (
	"errors"
	"io/fs"
)

var (
	// ErrNotRegular is returned if a file is expected but the source is not a regular file.
	ErrNotRegular = errors.New("source is not a regular file")

	// ErrNotDir is returned if a directory is expected but the source is not one.
	ErrNotDir = errors.New("source is not a directory")
)

// PathError records an error and the operation and file path that caused it.
type PathError = fs.PathError

func pathError(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}
