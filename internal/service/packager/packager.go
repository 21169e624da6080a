package packager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/distpack/internal/archive"
	"github.com/oshokin/distpack/internal/config"
	"github.com/oshokin/distpack/internal/copier"
	"github.com/oshokin/distpack/internal/domain/release"
	"github.com/oshokin/distpack/internal/logger"
	"github.com/oshokin/distpack/internal/repository/staging"
)

// destDirMode is used when the destination root has to be created.
const destDirMode fs.FileMode = 0o755

// Result describes a finished distribution.
type Result struct {
	// Archive is the path of the published archive.
	Archive string
	// Entries is the number of archive members, directories included.
	Entries int
	// Size is the archive size in bytes.
	Size int64
	// Scripts are the script names that matched the pattern.
	Scripts []string
	// Checksum is the hex SHA-512 of the archive when a sidecar was requested.
	Checksum string
	// ChecksumFile is the sidecar path when one was written.
	ChecksumFile string
	// Duration is the wall time of the run.
	Duration time.Duration
}

// packager runs the pipeline for a single release.
// Callers use Package or Run.
type packager struct {
	// cfg is the validated configuration.
	cfg *config.Config
	// id is the release identifier.
	id release.ID
	// staging is the directory the distribution is assembled in.
	staging *staging.Directory
	// lock guards the staging directory against concurrent runs.
	lock *staging.Lock
	// archivePath is where the archive is published.
	archivePath string
	// staged is set once this run created or took over the staging directory.
	staged bool
	// build produces the archive; replaced in tests.
	build func(ctx context.Context, opts *archive.Options) (*archive.Result, error)
}

// Package builds the distribution described by cfg: it stages the manifest
// under cfg.DestRoot, writes <release>.<format> there and removes the
// staging directory. On failure no archive is published.
func Package(ctx context.Context, cfg *config.Config) (*Result, error) {
	p, err := newPackager(cfg)
	if err != nil {
		return nil, err
	}

	return p.Run(ctx)
}

func newPackager(cfg *config.Config) (*packager, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	id := release.ID(cfg.Release)

	archiveName, err := id.ArchiveName(cfg.Format)
	if err != nil {
		return nil, err
	}

	return &packager{
		cfg:         cfg,
		id:          id,
		staging:     staging.NewDirectory(cfg.DestRoot, id.String(), staging.Policy(cfg.StagingPolicy)),
		lock:        staging.NewLock(cfg.DestRoot, id.String()),
		archivePath: filepath.Join(cfg.DestRoot, archiveName),
		build:       archive.Build,
	}, nil
}

// Run executes stage → files → library → scripts → output → dirs → archive → cleanup.
func (p *packager) Run(ctx context.Context) (result *Result, err error) {
	started := time.Now()
	ctx = logger.WithKV(ctx, "release", p.id.String())

	logger.InfoKV(ctx, "Packaging distribution",
		"source_root", p.cfg.SourceRoot, "dest_root", p.cfg.DestRoot, "format", p.cfg.Format)

	if err = p.preflight(ctx); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(p.cfg.DestRoot, destDirMode); err != nil {
		return nil, fmt.Errorf("create destination root: %w", err)
	}

	if err = p.lock.Acquire(ctx); err != nil {
		return nil, err
	}

	defer func() {
		if releaseErr := p.lock.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Unable to release lock", "path", p.lock.Path(), "error", releaseErr)
		}
	}()

	defer func() {
		if err != nil {
			p.handleFailure(ctx)
		}
	}()

	result = new(Result)

	if err = p.step(ctx, release.StepStage, p.stage); err != nil {
		return nil, err
	}

	if err = p.step(ctx, release.StepFiles, p.copyFiles); err != nil {
		return nil, err
	}

	if err = p.step(ctx, release.StepLibrary, p.copyLibrary); err != nil {
		return nil, err
	}

	err = p.step(ctx, release.StepScripts, func(ctx context.Context) error {
		scripts, scriptsErr := p.copyScripts(ctx)
		result.Scripts = scripts

		return scriptsErr
	})
	if err != nil {
		return nil, err
	}

	if err = p.step(ctx, release.StepOutput, p.copySampleOutput); err != nil {
		return nil, err
	}

	if err = p.step(ctx, release.StepDirs, p.copyDirs); err != nil {
		return nil, err
	}

	err = p.step(ctx, release.StepArchive, func(ctx context.Context) error {
		return p.writeArchive(ctx, result)
	})
	if err != nil {
		return nil, err
	}

	if err = p.step(ctx, release.StepCleanup, p.staging.Remove); err != nil {
		return nil, err
	}

	p.staged = false
	result.Duration = time.Since(started)

	return result, nil
}

// step runs fn and tags its error with the step.
func (p *packager) step(ctx context.Context, step release.Step, fn func(context.Context) error) error {
	logger.DebugKV(ctx, "Running step", "step", step.String())

	if err := fn(ctx); err != nil {
		return &StepError{Step: step, Err: err}
	}

	return nil
}

// preflight checks every manifest entry before anything is written, so a
// missing input never leaves a staging directory or an archive behind.
func (p *packager) preflight(ctx context.Context) error {
	info, err := os.Stat(p.cfg.SourceRoot)
	if err != nil {
		return &MissingInputError{Path: p.cfg.SourceRoot, Err: err}
	}

	if !info.IsDir() {
		return &MissingInputError{Path: p.cfg.SourceRoot, Err: ErrWantDir}
	}

	dest, err := resolvePath(p.cfg.DestRoot)
	if err != nil {
		return fmt.Errorf("resolve destination root: %w", err)
	}

	var errs []error

	for _, req := range p.cfg.Manifest.Requirements() {
		if err = p.checkInput(req, dest); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		logger.ErrorKV(ctx, "Manifest inputs are missing", "count", len(errs))
		return errors.Join(errs...)
	}

	return nil
}

// checkInput verifies one manifest entry. dest is the resolved destination
// root, which must not lie below a directory that is copied recursively.
func (p *packager) checkInput(req release.Requirement, dest string) error {
	info, err := os.Stat(p.source(req.Path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &MissingInputError{Path: req.Path, Err: fs.ErrNotExist}
		}

		return &MissingInputError{Path: req.Path, Err: err}
	}

	switch {
	case req.IsDir && !info.IsDir():
		return &MissingInputError{Path: req.Path, Err: ErrWantDir}
	case !req.IsDir && !info.Mode().IsRegular():
		return &MissingInputError{Path: req.Path, Err: ErrWantFile}
	case req.Recursive:
		return p.checkNesting(req.Path, dest)
	default:
		return nil
	}
}

func (p *packager) checkNesting(rel, dest string) error {
	src, err := resolvePath(p.source(rel))
	if err != nil {
		return &MissingInputError{Path: rel, Err: err}
	}

	if isWithin(src, dest) {
		return fmt.Errorf("%s contains %s: %w", rel, p.cfg.DestRoot, ErrDestInsideSource)
	}

	return nil
}

// resolvePath returns the absolute form of name with symbolic links in its
// existing leading part evaluated. The destination root may not exist yet.
func resolvePath(name string) (string, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", err
	}

	existing, rest := abs, ""

	for {
		resolved, evalErr := filepath.EvalSymlinks(existing)
		if evalErr == nil {
			return filepath.Join(resolved, rest), nil
		}

		if !errors.Is(evalErr, fs.ErrNotExist) {
			return "", evalErr
		}

		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}

		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
}

// isWithin reports whether target is dir itself or lies below it.
func isWithin(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)

	return err == nil && filepath.IsLocal(rel)
}

func (p *packager) stage(ctx context.Context) error {
	if err := p.staging.Prepare(ctx); err != nil {
		return err
	}

	p.staged = true

	return nil
}

func (p *packager) copyFiles(ctx context.Context) error {
	logger.InfoKV(ctx, "Copying files", "count", len(p.cfg.Manifest.Files))

	for _, name := range p.cfg.Manifest.Files {
		if _, err := copier.File(ctx, p.source(name), p.staging.Path()); err != nil {
			return err
		}
	}

	return nil
}

func (p *packager) copyLibrary(ctx context.Context) error {
	lib := p.cfg.Manifest.LibraryDir
	if lib == "" {
		return nil
	}

	logger.InfoKV(ctx, "Copying library directory", "path", lib)

	return copier.Tree(ctx, p.source(lib), filepath.Join(p.staging.Path(), filepath.Base(lib)))
}

func (p *packager) copyScripts(ctx context.Context) ([]string, error) {
	scriptsDir := p.cfg.Manifest.ScriptsDir
	if scriptsDir == "" {
		return nil, nil
	}

	dst, err := p.staging.Subdir(release.ScriptsDirName)
	if err != nil {
		return nil, err
	}

	pattern := p.cfg.Manifest.Pattern()

	scripts, err := copier.Matching(ctx, p.source(scriptsDir), dst, pattern)
	if err != nil {
		return scripts, err
	}

	logger.InfoKV(ctx, "Copied scripts", "pattern", pattern, "count", len(scripts))

	return scripts, nil
}

func (p *packager) copySampleOutput(ctx context.Context) error {
	sample := p.cfg.Manifest.SampleOutput
	if sample == "" {
		return nil
	}

	dst, err := p.staging.Subdir(release.OutputDirName)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Copying sample output", "path", sample)

	_, err = copier.File(ctx, p.source(sample), dst)

	return err
}

func (p *packager) copyDirs(ctx context.Context) error {
	for _, dir := range p.cfg.Manifest.Dirs {
		logger.InfoKV(ctx, "Copying directory", "path", dir)

		if err := copier.Tree(ctx, p.source(dir), filepath.Join(p.staging.Path(), filepath.Base(dir))); err != nil {
			return err
		}
	}

	return nil
}

func (p *packager) writeArchive(ctx context.Context, result *Result) error {
	logger.InfoKV(ctx, "Writing archive", "path", p.archivePath)

	built, err := p.build(ctx, &archive.Options{
		Source:  p.staging.Path(),
		Prefix:  p.id.String(),
		Dest:    p.archivePath,
		Format:  p.cfg.Format,
		ModTime: p.cfg.ArchiveModTime(),
	})
	if err != nil {
		return err
	}

	result.Archive = built.Path
	result.Entries = built.Entries
	result.Size = built.Size

	if !p.cfg.Checksum {
		return nil
	}

	sidecar, digest, err := archive.WriteChecksumFile(built.Path)
	if err != nil {
		return err
	}

	result.Checksum = digest
	result.ChecksumFile = sidecar

	return nil
}

// handleFailure keeps the staging directory for inspection unless cleanup on
// failure was requested. A directory this run did not create is never touched.
func (p *packager) handleFailure(ctx context.Context) {
	if !p.staged {
		return
	}

	if !p.cfg.CleanupOnFailure {
		logger.WarnKV(ctx, "Staging directory left in place for inspection", "path", p.staging.Path())
		return
	}

	if err := p.staging.Remove(ctx); err != nil {
		logger.ErrorKV(ctx, "Unable to remove staging directory", "path", p.staging.Path(), "error", err)
	}
}

func (p *packager) source(rel string) string {
	return filepath.Join(p.cfg.SourceRoot, rel)
}
