package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/distpack/internal/domain/release"
)

// Config describes one packaging run.
type Config struct {
	// Release names the staging directory and the archive.
	Release string `toml:"release" yaml:"release"`
	// SourceRoot is the directory every manifest path is relative to.
	SourceRoot string `toml:"source_root" yaml:"source_root"`
	// DestRoot receives the staging directory and the archive.
	DestRoot string `toml:"dest_root" yaml:"dest_root"`
	// Manifest lists what goes into the distribution.
	Manifest release.Manifest `toml:"manifest" yaml:"manifest"`
	// Format is the archive format, tar.gz or cpio.gz.
	Format string `toml:"format" yaml:"format"`
	// StagingPolicy controls what happens when the staging directory already exists.
	StagingPolicy string `toml:"staging_policy" yaml:"staging_policy"`
	// CleanupOnFailure removes the staging directory even when a step fails.
	CleanupOnFailure bool `toml:"cleanup_on_failure" yaml:"cleanup_on_failure"`
	// ModTime is stamped on every archive entry. Unix epoch when unset.
	ModTime *time.Time `toml:"mod_time,omitempty" yaml:"mod_time,omitempty"`
	// Checksum writes a SHA-512 sidecar next to the archive.
	Checksum bool `toml:"checksum" yaml:"checksum"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// Staging policies.
const (
	// StagingFail refuses to run when the staging directory exists.
	StagingFail = "fail"
	// StagingClean removes a leftover staging directory before copying.
	StagingClean = "clean"
	// StagingReuse copies on top of a leftover staging directory.
	StagingReuse = "reuse"
)

const (
	// DefaultConfigFilename is the configuration looked up in the working directory.
	DefaultConfigFilename = "distpack.yaml"

	// DefaultRelease is the release identifier of the built-in configuration.
	DefaultRelease = "BioC_Java_1.0"

	// DefaultFilePermissions is used when writing configuration files.
	DefaultFilePermissions = 0o644

	tomlExtension = ".toml"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// ErrUnknownStagingPolicy is returned for an unsupported staging policy.
	ErrUnknownStagingPolicy = errors.New("unknown staging policy")
)

// Default returns the configuration of the BioC Java 1.0 distribution.
func Default() *Config {
	return &Config{
		Release:    DefaultRelease,
		SourceRoot: ".",
		DestRoot:   ".",
		Manifest: release.Manifest{
			Files:         []string{".classpath", ".gitignore", ".project", "BioC.dtd", "LICENSE.txt", "README.txt"},
			LibraryDir:    "lib",
			ScriptsDir:    "scripts",
			ScriptPattern: release.DefaultScriptPattern,
			SampleOutput:  filepath.Join("output", "everything-nolib.xml"),
			Dirs:          []string{"bin", "src", "xml"},
		},
		Format:        release.FormatTarGz,
		StagingPolicy: StagingFail,
	}
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if isTOML(path) {
		err = toml.Unmarshal(contents, &cfg)
	} else {
		err = yaml.Unmarshal(contents, &cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault loads path when given. With an empty path it loads
// DefaultConfigFilename if present and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	if _, err := os.Stat(DefaultConfigFilename); errors.Is(err, fs.ErrNotExist) {
		cfg := Default()

		return cfg, Validate(cfg)
	}

	return Load(DefaultConfigFilename)
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)

	if isTOML(path) {
		var buf bytes.Buffer

		err = toml.NewEncoder(&buf).Encode(cfg)
		data = buf.Bytes()
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := release.ID(cfg.Release).Validate(); err != nil {
		return err
	}

	if cfg.SourceRoot == "" {
		cfg.SourceRoot = "."
	}

	if cfg.DestRoot == "" {
		cfg.DestRoot = "."
	}

	if cfg.Format == "" {
		cfg.Format = release.FormatTarGz
	}

	if _, err := release.ID(cfg.Release).ArchiveName(cfg.Format); err != nil {
		return err
	}

	cfg.StagingPolicy = strings.ToLower(strings.TrimSpace(cfg.StagingPolicy))
	switch cfg.StagingPolicy {
	case "":
		cfg.StagingPolicy = StagingFail
	case StagingFail, StagingClean, StagingReuse:
	default:
		return fmt.Errorf("%q: %w", cfg.StagingPolicy, ErrUnknownStagingPolicy)
	}

	if err := cfg.Manifest.Validate(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}

	return nil
}

// ArchiveModTime returns the timestamp stamped on archive entries.
func (c *Config) ArchiveModTime() time.Time {
	if c.ModTime == nil || c.ModTime.IsZero() {
		return time.Unix(0, 0).UTC()
	}

	return c.ModTime.UTC().Truncate(time.Second)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), tomlExtension)
}
