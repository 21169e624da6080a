package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/distpack/internal/logger"
)

// publish moves the finished temporary archive to dest. An existing archive
// is replaced through go-update, which verifies the checksum of the new
// contents and swaps the files atomically.
func publish(ctx context.Context, tmpPath, dest string) error {
	if err := os.Chmod(tmpPath, FileMode); err != nil {
		return fmt.Errorf("chmod temporary archive: %w", err)
	}

	exists, err := Exists(dest)
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	if !exists {
		if err = os.Rename(tmpPath, dest); err != nil {
			return fmt.Errorf("publish archive: %w", err)
		}

		return nil
	}

	logger.InfoKV(ctx, "Replacing existing archive", "path", dest)

	checksum, err := Checksum(tmpPath)
	if err != nil {
		return err
	}

	source, err := os.Open(filepath.Clean(tmpPath))
	if err != nil {
		return fmt.Errorf("open temporary archive: %w", err)
	}

	defer func() {
		_ = source.Close()
	}()

	options := goupdate.Options{
		TargetPath: dest,
		TargetMode: FileMode,
		Checksum:   checksum,
		Hash:       ChecksumFunction,
	}

	if err = goupdate.Apply(source, options); err != nil {
		return fmt.Errorf("replace archive: %w", err)
	}

	if err = os.Remove(tmpPath); err != nil {
		logger.WarnKV(ctx, "Unable to remove temporary archive", "path", tmpPath, "error", err)
	}

	return nil
}
