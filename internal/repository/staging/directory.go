package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oshokin/distpack/internal/logger"
)

// Policy decides what happens when the staging directory already exists.
type Policy string

// Supported policies.
const (
	// PolicyFail refuses to reuse a leftover staging directory.
	PolicyFail Policy = "fail"
	// PolicyClean removes a leftover staging directory and starts fresh.
	PolicyClean Policy = "clean"
	// PolicyReuse copies on top of whatever is left over.
	PolicyReuse Policy = "reuse"
)

// DirMode is the permission of the staging directory.
const DirMode fs.FileMode = 0o755

var (
	// ErrStagingExists is returned by Prepare under PolicyFail when the directory exists.
	ErrStagingExists = errors.New("staging directory already exists")
	// ErrNotDirectory is returned when the staging path exists but is not a directory.
	ErrNotDirectory = errors.New("staging path is not a directory")
)

// Directory is the staging area of one release under the destination root.
type Directory struct {
	// path is the location of the staging directory.
	path string
	// policy applies when path already exists.
	policy Policy
}

// NewDirectory returns the staging directory named name under root.
func NewDirectory(root, name string, policy Policy) *Directory {
	return &Directory{
		path:   filepath.Join(filepath.Clean(root), name),
		policy: policy,
	}
}

// Path returns the location of the staging directory.
func (d *Directory) Path() string {
	return d.path
}

// Exists reports whether the staging directory is present on disk.
func (d *Directory) Exists() (bool, error) {
	info, err := os.Lstat(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("stat staging directory: %w", err)
	}

	if !info.IsDir() {
		return true, fmt.Errorf("%s: %w", d.path, ErrNotDirectory)
	}

	return true, nil
}

// Prepare creates the staging directory, applying the policy when it is
// already there.
func (d *Directory) Prepare(ctx context.Context) error {
	exists, err := d.Exists()
	if err != nil {
		return err
	}

	if exists {
		switch d.policy {
		case PolicyClean:
			logger.WarnKV(ctx, "Removing leftover staging directory", "path", d.path)

			if err = os.RemoveAll(d.path); err != nil {
				return fmt.Errorf("remove leftover staging directory: %w", err)
			}
		case PolicyReuse:
			logger.WarnKV(ctx, "Reusing existing staging directory, stale files may end up in the archive",
				"path", d.path)

			return nil
		default:
			return fmt.Errorf("%s: %w", d.path, ErrStagingExists)
		}
	}

	if err = os.MkdirAll(d.path, DirMode); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	logger.DebugKV(ctx, "Created staging directory", "path", d.path)

	return nil
}

// Subdir creates and returns a directory inside the staging directory.
func (d *Directory) Subdir(name string) (string, error) {
	path := filepath.Join(d.path, name)
	if err := os.MkdirAll(path, DirMode); err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}

	return path, nil
}

// Remove deletes the staging directory and everything in it.
func (d *Directory) Remove(ctx context.Context) error {
	if err := os.RemoveAll(d.path); err != nil {
		return fmt.Errorf("remove staging directory: %w", err)
	}

	logger.DebugKV(ctx, "Removed staging directory", "path", d.path)

	return nil
}
