package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/distpack/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

// TestInitWritesDefaultConfig writes and then refuses to overwrite the config.
func TestInitWritesDefaultConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "distpack.toml")

	out, err := execute(t, "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultRelease, cfg.Release)

	_, err = execute(t, "init", path)
	require.ErrorIs(t, err, errConfigExists)

	_, err = execute(t, "init", "--force", path)
	require.NoError(t, err)
}

// TestPackAndInspect packages a tree through the CLI and lists the archive.
func TestPackAndInspect(t *testing.T) {
	t.Parallel()

	source := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(source, "README.txt"), []byte("readme"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(source, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(source, "src", "Main.java"), []byte("class Main {}"), 0o644))

	cfg := &config.Config{
		Release:  "Tool_1.0",
		Manifest: config.Default().Manifest,
	}
	cfg.Manifest.Files = []string{"README.txt"}
	cfg.Manifest.LibraryDir = ""
	cfg.Manifest.ScriptsDir = ""
	cfg.Manifest.SampleOutput = ""
	cfg.Manifest.Dirs = []string{"src"}

	cfgPath := filepath.Join(t.TempDir(), "distpack.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	dest := t.TempDir()

	_, err := execute(t, "-c", cfgPath, "-s", source, "-d", dest)
	require.NoError(t, err)

	out, err := execute(t, "inspect", filepath.Join(dest, "Tool_1.0.tar.gz"))
	require.NoError(t, err)
	assert.Contains(t, out, "Tool_1.0/README.txt")
	assert.Contains(t, out, "Tool_1.0/src/Main.java")
}

// TestPackMissingInputFails returns an error for an absent source tree.
func TestPackMissingInputFails(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()

	_, err := execute(t, "Dist_1.0", "-s", t.TempDir(), "-d", dest, "-c", writeDefaultConfig(t))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dest, "Dist_1.0.tar.gz"))
}

func writeDefaultConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "distpack.yaml")
	require.NoError(t, config.Save(path, config.Default()))

	return path
}
