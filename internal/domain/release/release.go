package release

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Archive formats supported by the packager.
const (
	FormatTarGz  = "tar.gz"
	FormatCPIOGz = "cpio.gz"
)

// Fixed staging subdirectories for the filtered categories.
const (
	ScriptsDirName = "scripts"
	OutputDirName  = "output"
)

// DefaultScriptPattern selects shell scripts from the scripts directory.
const DefaultScriptPattern = "*.sh"

var (
	// ErrEmptyID is returned for a blank release identifier.
	ErrEmptyID = errors.New("release identifier is empty")
	// ErrInvalidID is returned when the identifier cannot be used as a directory name.
	ErrInvalidID = errors.New("release identifier is not a valid directory name")
	// ErrUnknownFormat is returned for an unsupported archive format.
	ErrUnknownFormat = errors.New("unknown archive format")
	// ErrInvalidPath is returned for manifest paths that leave the source root.
	ErrInvalidPath = errors.New("manifest path must be relative to the source root")
	// ErrDuplicateName is returned when two manifest entries land on the same staging path.
	ErrDuplicateName = errors.New("manifest entries share a staging name")
)

// ID names a distribution. It is used both as the staging directory name and
// as the archive base name.
type ID string

// Validate reports whether the identifier can be used as a single path element.
func (id ID) Validate() error {
	s := string(id)
	if strings.TrimSpace(s) == "" {
		return ErrEmptyID
	}

	if s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("%q: %w", s, ErrInvalidID)
	}

	return nil
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// ArchiveName returns the file name of the archive for the given format.
func (id ID) ArchiveName(format string) (string, error) {
	switch format {
	case "", FormatTarGz:
		return string(id) + "." + FormatTarGz, nil
	case FormatCPIOGz:
		return string(id) + "." + FormatCPIOGz, nil
	default:
		return "", fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
}

// Manifest is the categorized list of paths, relative to the source root,
// that make up a distribution. Empty categories are skipped.
type Manifest struct {
	// Files are copied directly into the staging root.
	Files []string `toml:"files" yaml:"files"`
	// LibraryDir is copied recursively into the staging root.
	LibraryDir string `toml:"library_dir" yaml:"library_dir"`
	// ScriptsDir entries matching ScriptPattern are copied into the scripts subdirectory.
	ScriptsDir string `toml:"scripts_dir" yaml:"scripts_dir"`
	// ScriptPattern is a filepath.Match pattern applied to script base names.
	ScriptPattern string `toml:"script_pattern" yaml:"script_pattern"`
	// SampleOutput is copied into the output subdirectory.
	SampleOutput string `toml:"sample_output" yaml:"sample_output"`
	// Dirs are copied recursively into the staging root.
	Dirs []string `toml:"dirs" yaml:"dirs"`
}

// Validate checks that every path stays inside the source root, that no two
// entries are copied to the same place in the staging root and that the
// script pattern is well formed.
func (m *Manifest) Validate() error {
	for _, p := range m.Paths() {
		if err := validatePath(p); err != nil {
			return err
		}
	}

	if err := m.validateNames(); err != nil {
		return err
	}

	if m.ScriptPattern != "" {
		if _, err := filepath.Match(m.ScriptPattern, ""); err != nil {
			return fmt.Errorf("script pattern %q: %w", m.ScriptPattern, err)
		}
	}

	return nil
}

// Pattern returns the script pattern, falling back to DefaultScriptPattern.
func (m *Manifest) Pattern() string {
	if m.ScriptPattern == "" {
		return DefaultScriptPattern
	}

	return m.ScriptPattern
}

// Paths returns every non-empty path referenced by the manifest.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Files)+len(m.Dirs)+3)
	paths = append(paths, m.Files...)

	for _, p := range []string{m.LibraryDir, m.ScriptsDir, m.SampleOutput} {
		if p != "" {
			paths = append(paths, p)
		}
	}

	return append(paths, m.Dirs...)
}

// Requirement is a manifest path together with the kind of entry it must be.
type Requirement struct {
	Path  string
	IsDir bool
	// Recursive is set for directories copied with everything below them.
	Recursive bool
}

// Requirements lists what has to exist under the source root before packaging starts.
func (m *Manifest) Requirements() []Requirement {
	reqs := make([]Requirement, 0, len(m.Files)+len(m.Dirs)+3)

	for _, f := range m.Files {
		reqs = append(reqs, Requirement{Path: f})
	}

	if m.LibraryDir != "" {
		reqs = append(reqs, Requirement{Path: m.LibraryDir, IsDir: true, Recursive: true})
	}

	if m.ScriptsDir != "" {
		reqs = append(reqs, Requirement{Path: m.ScriptsDir, IsDir: true})
	}

	if m.SampleOutput != "" {
		reqs = append(reqs, Requirement{Path: m.SampleOutput})
	}

	for _, d := range m.Dirs {
		reqs = append(reqs, Requirement{Path: d, IsDir: true, Recursive: true})
	}

	return reqs
}

// validateNames rejects entries whose copies would overwrite each other in
// the staging root. Files and directories keep their base name there; the
// scripts and sample output go to fixed subdirectories.
func (m *Manifest) validateNames() error {
	owners := make(map[string]string, len(m.Files)+len(m.Dirs)+3)

	claim := func(name, path string) error {
		if prev, ok := owners[name]; ok {
			return fmt.Errorf("%s and %s both become %q: %w", prev, path, name, ErrDuplicateName)
		}

		owners[name] = path

		return nil
	}

	for _, f := range m.Files {
		if err := claim(filepath.Base(f), f); err != nil {
			return err
		}
	}

	if m.LibraryDir != "" {
		if err := claim(filepath.Base(m.LibraryDir), m.LibraryDir); err != nil {
			return err
		}
	}

	if m.ScriptsDir != "" {
		if err := claim(ScriptsDirName, m.ScriptsDir); err != nil {
			return err
		}
	}

	if m.SampleOutput != "" {
		if err := claim(OutputDirName, m.SampleOutput); err != nil {
			return err
		}
	}

	for _, d := range m.Dirs {
		if err := claim(filepath.Base(d), d); err != nil {
			return err
		}
	}

	return nil
}

func validatePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path: %w", ErrInvalidPath)
	}

	if filepath.IsAbs(p) || !filepath.IsLocal(p) {
		return fmt.Errorf("%s: %w", p, ErrInvalidPath)
	}

	return nil
}
