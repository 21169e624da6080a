package archive

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/distpack/internal/domain/release"
)

// stagingFixture builds a small staging tree and returns its path.
func stagingFixture(t *testing.T) string {
	t.Helper()

	staging := filepath.Join(t.TempDir(), "Dist_1.0")

	files := map[string]string{
		"A.txt":              "alpha",
		"lib/x.jar":          "jar",
		"scripts/run.sh":     "#!/bin/sh\n",
		"src/bioc/Main.java": "class Main {}",
	}
	for name, content := range files {
		path := filepath.Join(staging, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	require.NoError(t, os.Symlink("Main.java", filepath.Join(staging, "src", "bioc", "Alias.java")))

	return staging
}

func names(entries []Entry) []string {
	result := make([]string, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.Name)
	}

	return result
}

// TestBuildTarGz archives a staging tree and lists it back in lexical order.
func TestBuildTarGz(t *testing.T) {
	t.Parallel()

	staging := stagingFixture(t)
	dest := filepath.Join(t.TempDir(), "Dist_1.0.tar.gz")

	result, err := Build(context.Background(), &Options{
		Source: staging,
		Prefix: "Dist_1.0",
		Dest:   dest,
		Format: release.FormatTarGz,
	})
	require.NoError(t, err)
	assert.Equal(t, dest, result.Path)
	assert.Equal(t, 10, result.Entries)
	assert.Positive(t, result.Size)

	entries, err := List(dest)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Dist_1.0",
		"Dist_1.0/A.txt",
		"Dist_1.0/lib",
		"Dist_1.0/lib/x.jar",
		"Dist_1.0/scripts",
		"Dist_1.0/scripts/run.sh",
		"Dist_1.0/src",
		"Dist_1.0/src/bioc",
		"Dist_1.0/src/bioc/Alias.java",
		"Dist_1.0/src/bioc/Main.java",
	}, names(entries))

	assert.True(t, entries[0].Mode.IsDir())
	assert.Equal(t, int64(len("alpha")), entries[1].Size)
	assert.Equal(t, "Main.java", entries[8].Linkname)
	assert.Equal(t, fs.ModeSymlink, entries[8].Mode.Type())

	// No temporary files remain next to the archive.
	siblings, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, siblings, 1)
}

// TestBuildContents verifies file bodies survive the round trip.
func TestBuildContents(t *testing.T) {
	t.Parallel()

	staging := stagingFixture(t)
	dest := filepath.Join(t.TempDir(), "Dist_1.0.tar.gz")

	_, err := Build(context.Background(), &Options{Source: staging, Dest: dest})
	require.NoError(t, err)

	contents := make(map[string]string)
	err = Walk(dest, func(entry Entry, r io.Reader) error {
		if !entry.Mode.IsRegular() {
			return nil
		}

		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}

		contents[entry.Name] = string(data)

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "class Main {}", contents["Dist_1.0/src/bioc/Main.java"])
	assert.Equal(t, "jar", contents["Dist_1.0/lib/x.jar"])
}

// TestBuildDeterministic checks that two builds of the same tree are byte-identical.
func TestBuildDeterministic(t *testing.T) {
	t.Parallel()

	for _, format := range []string{release.FormatTarGz, release.FormatCPIOGz} {
		format := format

		t.Run(format, func(t *testing.T) {
			t.Parallel()

			staging := stagingFixture(t)
			stamp := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

			build := func() []byte {
				dest := filepath.Join(t.TempDir(), "Dist_1.0."+format)
				_, err := Build(context.Background(), &Options{
					Source:  staging,
					Prefix:  "Dist_1.0",
					Dest:    dest,
					Format:  format,
					ModTime: stamp,
				})
				require.NoError(t, err)

				data, err := os.ReadFile(dest)
				require.NoError(t, err)

				return data
			}

			first := build()

			// Touch a file so only the on-disk mtime differs.
			later := time.Now().Add(time.Hour)
			require.NoError(t, os.Chtimes(filepath.Join(staging, "A.txt"), later, later))

			assert.True(t, bytes.Equal(first, build()))
		})
	}
}

// TestBuildCPIO archives in cpio format and lists it back.
func TestBuildCPIO(t *testing.T) {
	t.Parallel()

	staging := stagingFixture(t)
	dest := filepath.Join(t.TempDir(), "Dist_1.0.cpio.gz")

	_, err := Build(context.Background(), &Options{
		Source: staging,
		Prefix: "Dist_1.0",
		Dest:   dest,
		Format: release.FormatCPIOGz,
	})
	require.NoError(t, err)

	entries, err := List(dest)
	require.NoError(t, err)
	assert.Contains(t, names(entries), "Dist_1.0/lib/x.jar")
	assert.Contains(t, names(entries), "Dist_1.0/scripts/run.sh")
	assert.Equal(t, "Dist_1.0", entries[0].Name)
	assert.True(t, entries[0].Mode.IsDir())
}

// TestBuildMissingSource leaves nothing at the destination.
func TestBuildMissingSource(t *testing.T) {
	t.Parallel()

	destDir := t.TempDir()
	dest := filepath.Join(destDir, "Dist_1.0.tar.gz")

	_, err := Build(context.Background(), &Options{
		Source: filepath.Join(destDir, "Dist_1.0"),
		Dest:   dest,
	})
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.NoFileExists(t, dest)
}

// TestBuildCanceled removes the temporary archive when the context is done.
func TestBuildCanceled(t *testing.T) {
	t.Parallel()

	staging := stagingFixture(t)
	destDir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, &Options{Source: staging, Dest: filepath.Join(destDir, "Dist_1.0.tar.gz")})
	require.ErrorIs(t, err, context.Canceled)

	siblings, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Empty(t, siblings)
}

// TestBuildReplacesExisting overwrites a previous archive with verified contents.
func TestBuildReplacesExisting(t *testing.T) {
	t.Parallel()

	staging := stagingFixture(t)
	destDir := t.TempDir()
	dest := filepath.Join(destDir, "Dist_1.0.tar.gz")
	require.NoError(t, os.WriteFile(dest, []byte("previous release"), 0o644))

	_, err := Build(context.Background(), &Options{Source: staging, Dest: dest})
	require.NoError(t, err)

	entries, err := List(dest)
	require.NoError(t, err)
	assert.Equal(t, "Dist_1.0", entries[0].Name)

	siblings, err := os.ReadDir(destDir)
	require.NoError(t, err)

	for _, s := range siblings {
		assert.False(t, strings.HasSuffix(s.Name(), ".tmp"), s.Name())
	}
}

// TestListUnknown rejects gzip streams that hold neither tar nor cpio.
func TestListUnknown(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plain.gz")

	var buf bytes.Buffer

	w, err := NewWriter(&buf, release.FormatTarGz, time.Time{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// An empty tar is two zero blocks without magic.
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	_, err = List(path)
	require.ErrorIs(t, err, ErrUnknownArchive)
}

// TestWriteChecksumFile writes a sha512sum compatible sidecar.
func TestWriteChecksumFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Dist_1.0.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("archive"), 0o644))

	sidecar, digest, err := WriteChecksumFile(path)
	require.NoError(t, err)
	assert.Equal(t, path+ChecksumExtension, sidecar)

	sum, err := Checksum(path)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum), digest)

	contents, err := os.ReadFile(sidecar)
	require.NoError(t, err)
	assert.Equal(t, digest+"  Dist_1.0.tar.gz\n", string(contents))
}

// TestNewWriterUnknownFormat rejects unsupported formats.
func TestNewWriterUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := NewWriter(io.Discard, "zip", time.Time{})
	require.ErrorIs(t, err, release.ErrUnknownFormat)
}
