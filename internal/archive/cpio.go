package archive

import (
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/cavaliergopher/cpio"
	"github.com/klauspost/compress/gzip"
)

const numLinks = 2

// CPIOWriter implements [Writer] for gzip-compressed newc cpio archives.
type CPIOWriter struct {
	gz      *gzip.Writer
	cw      *cpio.Writer
	modTime time.Time
}

func newCPIOWriter(gz *gzip.Writer, modTime time.Time) *CPIOWriter {
	return &CPIOWriter{
		gz:      gz,
		cw:      cpio.NewWriter(gz),
		modTime: modTime,
	}
}

// Close writes the cpio trailer and flushes the gzip stream.
func (w *CPIOWriter) Close() error {
	return closeAll(w.cw, w.gz)
}

// WriteDirectory adds a directory entry.
func (w *CPIOWriter) WriteDirectory(name string, mode fs.FileMode) error {
	return w.writeHeader(&cpio.Header{
		Name:    name,
		Mode:    cpio.TypeDir | cpio.FileMode(mode.Perm()),
		Links:   numLinks,
		ModTime: w.modTime,
	})
}

// WriteLink adds a symbolic link named name pointing to target.
func (w *CPIOWriter) WriteLink(name, target string) error {
	err := w.writeHeader(&cpio.Header{
		Name:    name,
		Mode:    cpio.TypeSymlink | cpio.ModePerm,
		Size:    int64(len(target)),
		ModTime: w.modTime,
	})
	if err != nil {
		return err
	}

	// Body of a link is the path of the target file.
	if _, err = w.cw.Write([]byte(target)); err != nil {
		return fmt.Errorf("write body for %s: %w", name, err)
	}

	return nil
}

// WriteRegular copies source into the archive as name.
func (w *CPIOWriter) WriteRegular(name string, source fs.File, mode fs.FileMode) error {
	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("read info: %w", err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", name, ErrNotRegular)
	}

	err = w.writeHeader(&cpio.Header{
		Name:    name,
		Mode:    cpio.TypeReg | cpio.FileMode(mode.Perm()),
		Size:    info.Size(),
		Links:   1,
		ModTime: w.modTime,
	})
	if err != nil {
		return err
	}

	if _, err = io.Copy(w.cw, source); err != nil {
		return fmt.Errorf("write body for %s: %w", name, err)
	}

	return nil
}

func (w *CPIOWriter) writeHeader(hdr *cpio.Header) error {
	if err := w.cw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header for %s: %w", hdr.Name, err)
	}

	return nil
}
