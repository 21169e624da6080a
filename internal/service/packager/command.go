package packager

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/distpack/internal/config"
	"github.com/oshokin/distpack/internal/logger"
)

// Options contains inputs for the packager entry point. Non-empty fields
// override the values loaded from the configuration file.
type Options struct {
	// ConfigPath is an optional configuration file (defaults to distpack.yaml when present).
	ConfigPath string
	// Release overrides the release identifier.
	Release string
	// SourceRoot overrides the directory manifest paths are relative to.
	SourceRoot string
	// DestRoot overrides where the staging directory and archive are created.
	DestRoot string
	// Format overrides the archive format.
	Format string
	// StagingPolicy overrides the policy for a leftover staging directory.
	StagingPolicy string
	// Checksum requests a SHA-512 sidecar file.
	Checksum bool
	// CleanupOnFailure removes the staging directory even when a step fails.
	CleanupOnFailure bool
	// LogLevel overrides the log level from the configuration.
	LogLevel string
}

// errUnknownLogLevel is returned for a log level ParseLogLevel does not know.
var errUnknownLogLevel = errors.New("unknown log level")

// Run loads the configuration, applies overrides and packages the release.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "distpack")

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts.apply(cfg)

	if err = config.Validate(cfg); err != nil {
		return err
	}

	if cfg.LogLevel != "" {
		level, ok := logger.ParseLogLevel(cfg.LogLevel)
		if !ok {
			return fmt.Errorf("%q: %w", cfg.LogLevel, errUnknownLogLevel)
		}

		logger.SetLevel(level)
	}

	result, err := Package(ctx, cfg)
	if err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	kvs := []any{
		"archive", result.Archive,
		"entries", result.Entries,
		"size", result.Size,
		"duration", result.Duration,
	}
	if result.Checksum != "" {
		kvs = append(kvs, "sha512", result.Checksum)
	}

	logger.InfoKV(ctx, "Distribution ready", kvs...)

	return nil
}

func (o *Options) apply(cfg *config.Config) {
	if o.Release != "" {
		cfg.Release = o.Release
	}

	if o.SourceRoot != "" {
		cfg.SourceRoot = o.SourceRoot
	}

	if o.DestRoot != "" {
		cfg.DestRoot = o.DestRoot
	}

	if o.Format != "" {
		cfg.Format = o.Format
	}

	if o.StagingPolicy != "" {
		cfg.StagingPolicy = o.StagingPolicy
	}

	if o.Checksum {
		cfg.Checksum = true
	}

	if o.CleanupOnFailure {
		cfg.CleanupOnFailure = true
	}

	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
}
