package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrymomot/filedrop/core/logger"
	"github.com/dmitrymomot/filedrop/core/pathguard"
	"github.com/dmitrymomot/filedrop/core/quota"
)

const (
	stagingDirName = "staging"
	chunksDirName  = "chunks"
)

// Committed describes a file that was atomically moved into the storage root.
type Committed struct {
	SessionID string
	// Path is slash separated and relative to the storage root.
	Path     string
	Absolute string
	Size     int64
}

// CommitHook runs after a file has been committed. Hook errors are logged and
// never undo the commit.
type CommitHook func(ctx context.Context, c Committed) error

// Engine ingests single-shot and chunked uploads into the storage root.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	cfg     Config
	guard   *pathguard.Guard
	disk    *quota.Disk
	tracker *quota.Tracker
	logger  *slog.Logger
	now     func() time.Time
	hooks   []CommitHook

	stagingDir string
	chunksDir  string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source used for chunk set ageing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithCommitHook registers a hook called after every successful commit.
func WithCommitHook(h CommitHook) Option {
	return func(e *Engine) {
		if h != nil {
			e.hooks = append(e.hooks, h)
		}
	}
}

// New creates an Engine and prepares its work directory.
func New(cfg Config, guard *pathguard.Guard, disk *quota.Disk, tracker *quota.Tracker, opts ...Option) (*Engine, error) {
	if guard == nil || disk == nil || tracker == nil {
		return nil, errors.New("ingest: guard, disk and tracker are required")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(guard.Root(), DefaultWorkDirName)
	}
	if cfg.CopyBuffer <= 0 {
		cfg.CopyBuffer = DefaultConfig().CopyBuffer
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = DefaultConfig().MaxChunks
	}
	if cfg.ChunkMaxAge <= 0 {
		cfg.ChunkMaxAge = DefaultConfig().ChunkMaxAge
	}

	e := &Engine{
		cfg:        cfg,
		guard:      guard,
		disk:       disk,
		tracker:    tracker,
		logger:     logger.Nop(),
		now:        time.Now,
		stagingDir: filepath.Join(cfg.WorkDir, stagingDirName),
		chunksDir:  filepath.Join(cfg.WorkDir, chunksDirName),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logger.Component("ingest"))

	for _, dir := range []string{e.stagingDir, e.chunksDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("ingest: prepare work dir: %w", err)
		}
	}

	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Storage returns current storage metrics for the root.
func (e *Engine) Storage() quota.StorageInfo {
	return e.disk.Info()
}

// target resolves the raw target directory and checks it is a directory.
func (e *Engine) target(raw string) (pathguard.Resolved, error) {
	res, err := e.guard.Resolve(raw)
	if err != nil {
		return pathguard.Resolved{}, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	info, err := os.Stat(res.Absolute)
	if err != nil {
		return pathguard.Resolved{}, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	if !info.IsDir() {
		return pathguard.Resolved{}, fmt.Errorf("%w: %q is not a directory", ErrInvalidPath, res.Relative)
	}
	return res, nil
}

// plan is a sanitized destination that has not touched the disk yet.
type plan struct {
	target pathguard.Resolved
	relDir string
	base   string
	clean  string
}

// planDestination sanitizes the client names and rejects names that already
// exist. Nothing is created: directories are made by commitTo once the file
// is staged, so a failed upload leaves no trace under the root.
func (e *Engine) planDestination(target pathguard.Resolved, name, relativePath string) (plan, error) {
	clean := sanitizeUploadPath(name, relativePath)
	if clean == "" {
		return plan{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	p := plan{target: target, clean: clean}
	p.relDir, p.base = splitDir(clean)

	// A lookup error other than "exists" is left for commitTo, which
	// resolves the directories under the guard.
	if _, err := os.Lstat(filepath.Join(target.Absolute, filepath.FromSlash(clean))); err == nil {
		return plan{}, fmt.Errorf("%w: %s", ErrDuplicate, clean)
	}
	return p, nil
}

// commitTo creates the directories of p, re-validates confinement and
// renames the staged artifact into place. Directories created here are
// removed again when the commit fails.
func (e *Engine) commitTo(ctx context.Context, t *tx, staged string, p plan) (destination, error) {
	dirRes := p.target
	var created []string
	if p.relDir != "" {
		var err error
		dirRes, created, err = e.guard.MkdirAllTracked(p.target, p.relDir, e.cfg.DirMode.Perm())
		if err != nil {
			if errors.Is(err, pathguard.ErrInvalidPath) {
				return destination{}, fmt.Errorf("%w: %w", ErrInvalidPath, err)
			}
			return destination{}, fmt.Errorf("%w: create directories: %w", ErrIO, err)
		}
	}

	abs := filepath.Join(dirRes.Absolute, p.base)
	err := func() error {
		if !pathguard.IsWithinRoot(e.guard.Root(), filepath.Dir(abs)) {
			return fmt.Errorf("%w: %q escapes the storage root", ErrInvalidPath, p.clean)
		}
		if err := t.commit(staged, abs); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return fmt.Errorf("%w: %s", err, p.clean)
			}
			return err
		}
		return nil
	}()
	if err != nil {
		if rmErr := pathguard.RemoveDirs(created); rmErr != nil {
			e.logger.WarnContext(context.WithoutCancel(ctx), "failed to remove created directories",
				logger.Target(p.clean),
				logger.Error(rmErr))
		}
		return destination{}, err
	}

	return destination{
		Absolute:  abs,
		Relative:  joinRel(dirRes.Relative, p.base),
		Sanitized: p.clean,
	}, nil
}

type destination struct {
	Absolute string
	// Relative is relative to the storage root.
	Relative string
	// Sanitized is relative to the upload target directory.
	Sanitized string
}

func ensureAbsent(path string) error {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return ErrDuplicate
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}

// admit applies the byte checks shared by both upload flows.
func (e *Engine) admit(ctx context.Context, sessionID string, size int64) error {
	if size > e.cfg.MaxFileSize {
		return fmt.Errorf("%w: %s > %s", ErrSizeLimit, formatBytes(size), formatBytes(e.cfg.MaxFileSize))
	}
	if err := e.tracker.Allow(ctx, sessionID, size); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// finalize runs after a successful rename: ownership policy, session
// counter and commit hooks. None of these can undo the commit.
func (e *Engine) finalize(ctx context.Context, sessionID string, dest destination, size int64) {
	ctx = context.WithoutCancel(ctx)
	e.applyOwnership(dest.Absolute)

	if _, err := e.tracker.Add(ctx, sessionID, size); err != nil {
		e.logger.ErrorContext(ctx, "failed to update session usage",
			logger.SessionID(sessionID),
			logger.Target(dest.Relative),
			logger.Error(err))
	}

	c := Committed{SessionID: sessionID, Path: dest.Relative, Absolute: dest.Absolute, Size: size}
	for _, h := range e.hooks {
		if err := h(ctx, c); err != nil {
			e.logger.WarnContext(ctx, "commit hook failed",
				logger.Target(dest.Relative),
				logger.Error(err))
		}
	}

	e.logger.InfoContext(ctx, "file committed",
		logger.SessionID(sessionID),
		logger.Target(dest.Relative),
		logger.Bytes(size))
}

func (e *Engine) applyOwnership(path string) {
	if err := os.Chmod(path, e.cfg.FileMode.Perm()); err != nil {
		e.logger.Warn("failed to apply file mode", logger.Target(path), logger.Error(err))
	}
	if e.cfg.FileUID >= 0 || e.cfg.FileGID >= 0 {
		if err := os.Chown(path, e.cfg.FileUID, e.cfg.FileGID); err != nil {
			e.logger.Warn("failed to apply file owner", logger.Target(path), logger.Error(err))
		}
	}
}
