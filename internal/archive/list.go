package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cavaliergopher/cpio"
	"github.com/klauspost/compress/gzip"
)

// Magic numbers at the start of the decompressed stream.
var (
	cpioNewcMagic = []byte("070701")
	tarUstarMagic = []byte("ustar")
)

// tarMagicOffset is where the ustar magic sits in a tar header block.
const tarMagicOffset = 257

// Entry describes one member of an archive.
type Entry struct {
	// Name is the slash-separated path without a trailing slash.
	Name string
	// Mode holds the type and permission bits.
	Mode fs.FileMode
	// Size is the length of a regular file's contents.
	Size int64
	// Linkname is the target of a symbolic link.
	Linkname string
}

// EntryVisitor is called for each member; contents is only readable for
// regular files and only until the visitor returns.
type EntryVisitor func(entry Entry, contents io.Reader) error

// List returns the members of the archive at path in archive order.
func List(path string) ([]Entry, error) {
	var entries []Entry

	err := Walk(path, func(entry Entry, _ io.Reader) error {
		entries = append(entries, entry)
		return nil
	})

	return entries, err
}

// Walk decompresses the archive at path and calls visit for every member.
// The format is detected from the contents, not from the file name.
func Walk(path string, visit EntryVisitor) error {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}

	defer func() {
		_ = gz.Close()
	}()

	buffered := bufio.NewReaderSize(gz, tarMagicOffset+len(tarUstarMagic))

	head, err := buffered.Peek(tarMagicOffset + len(tarUstarMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read archive header: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, cpioNewcMagic):
		return walkCPIO(buffered, visit)
	case len(head) >= tarMagicOffset+len(tarUstarMagic) &&
		bytes.Equal(head[tarMagicOffset:], tarUstarMagic):
		return walkTar(buffered, visit)
	default:
		return fmt.Errorf("%s: %w", path, ErrUnknownArchive)
	}
}

func walkTar(r io.Reader, visit EntryVisitor) error {
	tr := tar.NewReader(r)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		entry := Entry{
			Name:     strings.TrimSuffix(hdr.Name, "/"),
			Mode:     hdr.FileInfo().Mode(),
			Linkname: hdr.Linkname,
		}
		if entry.Mode.IsRegular() {
			entry.Size = hdr.Size
		}

		if err = visit(entry, tr); err != nil {
			return err
		}
	}
}

func walkCPIO(r io.Reader, visit EntryVisitor) error {
	cr := cpio.NewReader(r)

	for {
		hdr, err := cr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read cpio header: %w", err)
		}

		entry := Entry{
			Name:     hdr.Name,
			Mode:     hdr.FileInfo().Mode(),
			Linkname: hdr.Linkname,
		}
		if entry.Mode.IsRegular() {
			entry.Size = hdr.Size
		}

		if err = visit(entry, cr); err != nil {
			return err
		}
	}
}
