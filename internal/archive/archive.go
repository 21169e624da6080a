package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/oshokin/distpack/internal/logger"
)

// FileMode is the permission of published archives.
const FileMode fs.FileMode = 0o644

// Options describe one archive to build.
type Options struct {
	// Source is the staging directory to archive.
	Source string
	// Prefix is the top-level directory name inside the archive.
	Prefix string
	// Dest is the final archive path.
	Dest string
	// Format is release.FormatTarGz or release.FormatCPIOGz.
	Format string
	// ModTime is stamped on every entry.
	ModTime time.Time
}

// Result summarizes a built archive.
type Result struct {
	// Path is the published archive location.
	Path string
	// Entries is the number of entries written, directories included.
	Entries int
	// Size is the archive size in bytes.
	Size int64
}

// Build writes the archive described by opts. The archive is assembled in a
// temporary file in the destination directory and published to opts.Dest
// only when complete; on failure nothing is left at opts.Dest.
func Build(ctx context.Context, opts *Options) (*Result, error) {
	info, err := os.Stat(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("stat archive source: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", opts.Source, ErrSourceNotDir)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = filepath.Base(opts.Source)
	}

	tmp, err := os.CreateTemp(filepath.Dir(opts.Dest), "."+filepath.Base(opts.Dest)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temporary archive: %w", err)
	}

	tmpPath := tmp.Name()

	entries, err := writeArchive(ctx, tmp, opts, prefix)
	if closeErr := tmp.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close temporary archive: %w", closeErr)
	}

	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}

	if err = publish(ctx, tmpPath, opts.Dest); err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}

	published, err := os.Stat(opts.Dest)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	logger.DebugKV(ctx, "Archive written", "path", opts.Dest, "entries", entries, "size", published.Size())

	return &Result{
		Path:    opts.Dest,
		Entries: entries,
		Size:    published.Size(),
	}, nil
}

func writeArchive(ctx context.Context, file *os.File, opts *Options, prefix string) (int, error) {
	writer, err := NewWriter(file, opts.Format, opts.ModTime)
	if err != nil {
		return 0, err
	}

	entries, err := walk(ctx, writer, opts.Source, prefix)
	if err != nil {
		_ = writer.Close()
		return 0, err
	}

	if err = writer.Close(); err != nil {
		return 0, err
	}

	return entries, nil
}

// walk writes every entry under root, in lexical order, named below prefix.
func walk(ctx context.Context, writer Writer, root, prefix string) (int, error) {
	var entries int

	err := filepath.WalkDir(root, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		name := path.Join(prefix, filepath.ToSlash(rel))

		info, err := entry.Info()
		if err != nil {
			return err
		}

		switch {
		case entry.IsDir():
			err = writer.WriteDirectory(name, info.Mode())
		case entry.Type()&fs.ModeSymlink != 0:
			err = writeLink(writer, p, name)
		case entry.Type().IsRegular():
			err = writeRegular(writer, p, name, info.Mode())
		default:
			logger.DebugKV(ctx, "Skipping special file", "path", p)
			return nil
		}

		if err != nil {
			return err
		}

		entries++

		return nil
	})

	return entries, err
}

func writeLink(writer Writer, p, name string) error {
	target, err := os.Readlink(p)
	if err != nil {
		return fmt.Errorf("read link: %w", err)
	}

	return writer.WriteLink(name, target)
}

func writeRegular(writer Writer, p, name string, mode fs.FileMode) error {
	source, err := os.Open(filepath.Clean(p))
	if err != nil {
		return fmt.Errorf("open %s: %w", p, err)
	}

	defer func() {
		_ = source.Close()
	}()

	return writer.WriteRegular(name, source, mode)
}

// Exists reports whether a file is present at name.
func Exists(name string) (bool, error) {
	_, err := os.Stat(name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}
