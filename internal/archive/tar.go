package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/klauspost/compress/gzip"
)

// TarWriter implements [Writer] for gzip-compressed tar archives.
type TarWriter struct {
	gz      *gzip.Writer
	tw      *tar.Writer
	modTime time.Time
}

func newTarWriter(gz *gzip.Writer, modTime time.Time) *TarWriter {
	return &TarWriter{
		gz:      gz,
		tw:      tar.NewWriter(gz),
		modTime: modTime,
	}
}

// Close flushes the tar trailer and the gzip stream.
func (w *TarWriter) Close() error {
	return closeAll(w.tw, w.gz)
}

// WriteDirectory adds a directory entry. Tar directory names end with a slash.
func (w *TarWriter) WriteDirectory(name string, mode fs.FileMode) error {
	return w.writeHeader(&tar.Header{
		Typeflag: tar.TypeDir,
		Name:     name + "/",
		Mode:     int64(mode.Perm()),
		ModTime:  w.modTime,
	})
}

// WriteLink adds a symbolic link named name pointing to target.
func (w *TarWriter) WriteLink(name, target string) error {
	return w.writeHeader(&tar.Header{
		Typeflag: tar.TypeSymlink,
		Name:     name,
		Linkname: target,
		Mode:     int64(fs.ModePerm),
		ModTime:  w.modTime,
	})
}

// WriteRegular copies source into the archive as name.
func (w *TarWriter) WriteRegular(name string, source fs.File, mode fs.FileMode) error {
	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("read info: %w", err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", name, ErrNotRegular)
	}

	err = w.writeHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     info.Size(),
		Mode:     int64(mode.Perm()),
		ModTime:  w.modTime,
	})
	if err != nil {
		return err
	}

	if _, err = io.Copy(w.tw, source); err != nil {
		return fmt.Errorf("write body for %s: %w", name, err)
	}

	return nil
}

func (w *TarWriter) writeHeader(hdr *tar.Header) error {
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header for %s: %w", hdr.Name, err)
	}

	return nil
}
