package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/distpack/internal/logger"
)

// lockFileMode is the permission of the lock file.
const lockFileMode fs.FileMode = 0o644

// acquireAttempts bounds how often Acquire retries after taking over a stale lock.
const acquireAttempts = 3

var (
	// ErrLocked indicates that another live process is packaging the same release.
	ErrLocked = errors.New("release is being packaged by another process")

	errNoOwner = errors.New("lock has no owner")
)

// processAlive reports whether a process with the given PID is running.
func processAlive(pid int) (bool, error) {
	process, err := ps.FindProcess(pid)
	if err != nil {
		return false, err
	}

	return process != nil, nil
}

// Lock is a PID marker file next to the staging directory.
type Lock struct {
	// path is the lock file location.
	path string
	// alive checks whether the recorded owner is still running.
	alive func(pid int) (bool, error)
}

// NewLock returns the lock guarding release name under root.
func NewLock(root, name string) *Lock {
	return &Lock{
		path:  filepath.Join(filepath.Clean(root), "."+name+".lock"),
		alive: processAlive,
	}
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Acquire creates the lock file. A lock left behind by a process that is no
// longer running is taken over. A lock held by a live process, or one whose
// owner cannot be read, yields ErrLocked.
func (l *Lock) Acquire(ctx context.Context) error {
	for attempt := 0; attempt < acquireAttempts; attempt++ {
		err := l.create()
		if !errors.Is(err, fs.ErrExist) {
			return err
		}

		pid, err := readOwner(l.path)
		if errors.Is(err, fs.ErrNotExist) {
			// Released between our attempt and the read.
			continue
		}

		if err != nil {
			logger.WarnKV(ctx, "Lock owner is unreadable", "path", l.path, "error", err)
			return fmt.Errorf("%s has no readable owner, remove it if no run is active: %w", l.path, ErrLocked)
		}

		alive, err := l.alive(pid)
		if err != nil {
			return fmt.Errorf("check lock owner %d: %w", pid, err)
		}

		if alive {
			return fmt.Errorf("%s held by pid %d: %w", l.path, pid, ErrLocked)
		}

		logger.WarnKV(ctx, "Taking over stale lock", "path", l.path, "pid", pid)

		if err = l.takeOver(pid); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s keeps changing: %w", l.path, ErrLocked)
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}

	return nil
}

// create writes the PID to a temporary file and links it into place, so the
// lock never exists without an owner.
func (l *Lock) create() error {
	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create lock: %w", err)
	}

	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err = tmp.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write lock: %w", err)
	}

	if err = tmp.Chmod(lockFileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod lock: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close lock: %w", err)
	}

	if err = os.Link(tmp.Name(), l.path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fs.ErrExist
		}

		return fmt.Errorf("create lock: %w", err)
	}

	return nil
}

// takeOver removes a stale lock owned by pid. The lock is first renamed to a
// name private to this process; if it turns out to belong to someone else by
// then, it is linked back instead of removed.
func (l *Lock) takeOver(pid int) error {
	claimed := l.path + "." + strconv.Itoa(os.Getpid()) + ".stale"

	if err := os.Rename(l.path, claimed); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("claim stale lock: %w", err)
	}

	defer func() {
		_ = os.Remove(claimed)
	}()

	owner, err := readOwner(claimed)
	if err == nil && owner == pid {
		return nil
	}

	if err = os.Link(claimed, l.path); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("restore lock: %w", err)
	}

	return nil
}

// readOwner returns the PID recorded in the lock file at path.
func readOwner(path string) (int, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0, fmt.Errorf("parse owner: %w", err)
	}

	if pid <= 0 {
		return 0, fmt.Errorf("parse owner %d: %w", pid, errNoOwner)
	}

	return pid, nil
}
