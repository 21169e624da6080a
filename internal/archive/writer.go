package archive

import (
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/oshokin/distpack/internal/domain/release"
)

// Writer defines the archive writer interface.
type Writer interface {
	WriteDirectory(name string, mode fs.FileMode) error
	WriteRegular(name string, source fs.File, mode fs.FileMode) error
	WriteLink(name, target string) error
	Close() error
}

// NewWriter returns the Writer for format, compressing into w. A zero
// modTime is replaced with the Unix epoch, which both formats can encode.
//
//nolint:ireturn // The format is only known at runtime.
func NewWriter(w io.Writer, format string, modTime time.Time) (Writer, error) {
	if modTime.IsZero() {
		modTime = time.Unix(0, 0).UTC()
	}

	gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}

	switch format {
	case "", release.FormatTarGz:
		return newTarWriter(gz, modTime), nil
	case release.FormatCPIOGz:
		return newCPIOWriter(gz, modTime), nil
	default:
		return nil, fmt.Errorf("%q: %w", format, release.ErrUnknownFormat)
	}
}

// closeAll closes the archive writer and then the gzip stream under it.
func closeAll(archiveCloser io.Closer, gz *gzip.Writer) error {
	if err := archiveCloser.Close(); err != nil {
		_ = gz.Close()
		return fmt.Errorf("close archive: %w", err)
	}

	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}

	return nil
}
