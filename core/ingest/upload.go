package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrymomot/filedrop/core/logger"
	"github.com/dmitrymomot/filedrop/core/pathguard"
	"github.com/dmitrymomot/filedrop/core/quota"
)

// FileInput is one file of a single-shot upload batch.
type FileInput struct {
	// Name is the client supplied file name.
	Name string
	// Size is the declared size in bytes.
	Size int64
	// RelativePath is set for folder uploads and preserves the folder structure.
	RelativePath string
	// Open returns the file content.
	Open func() (io.ReadCloser, error)
	// TransportErr is set when the transport failed to receive the file.
	TransportErr error
}

// FileResult is the outcome for one file of a batch.
type FileResult struct {
	// Name is the sanitized path relative to the target directory on
	// success and the client supplied name otherwise.
	Name string
	// Path is the committed path relative to the storage root.
	Path string
	Size int64
	Err  error
}

// OK reports whether the file was committed.
func (r FileResult) OK() bool {
	return r.Err == nil
}

// BatchResult is the outcome of a single-shot upload.
type BatchResult struct {
	Results []FileResult
	Storage quota.StorageInfo
}

// Upload stores every file of the batch under targetDir. Outcomes are
// independent per file; the returned error is only set when the target
// directory itself is invalid.
func (e *Engine) Upload(ctx context.Context, sessionID, targetDir string, files []FileInput) (BatchResult, error) {
	results := make([]FileResult, 0, len(files))

	if !e.cfg.Enabled {
		for _, f := range files {
			results = append(results, FileResult{Name: f.Name, Err: ErrPolicyDisabled})
		}
		return BatchResult{Results: results, Storage: e.disk.Info()}, nil
	}

	target, err := e.target(targetDir)
	if err != nil {
		return BatchResult{}, err
	}

	for _, f := range files {
		res := e.uploadOne(ctx, sessionID, target, f)
		if res.Err != nil {
			e.logger.WarnContext(ctx, "file upload failed",
				logger.SessionID(sessionID),
				logger.Filename(f.Name),
				logger.Target(target.Relative),
				logger.Error(res.Err))
		}
		results = append(results, res)
	}

	return BatchResult{Results: results, Storage: e.disk.Info()}, nil
}

func (e *Engine) uploadOne(ctx context.Context, sessionID string, target pathguard.Resolved, f FileInput) FileResult {
	fail := func(err error) FileResult {
		return FileResult{Name: f.Name, Err: err}
	}

	if f.TransportErr != nil {
		return fail(fmt.Errorf("%w: %w", ErrTransport, f.TransportErr))
	}
	if f.Size < 0 || f.Open == nil {
		return fail(fmt.Errorf("%w: unknown file size", ErrTransport))
	}
	if err := e.admit(ctx, sessionID, f.Size); err != nil {
		return fail(err)
	}

	p, err := e.planDestination(target, f.Name, f.RelativePath)
	if err != nil {
		return fail(err)
	}
	if !e.disk.HasEnoughSpace(f.Size) {
		return fail(fmt.Errorf("%w: %s required", ErrInsufficientSpace, formatBytes(f.Size)))
	}

	t := e.begin()
	defer t.rollback()

	staged, err := e.stage(ctx, t, f)
	if err != nil {
		return fail(err)
	}

	// Nothing may reach the destination once the client is gone.
	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrClientAborted, err))
	}

	dest, err := e.commitTo(ctx, t, staged, p)
	if err != nil {
		return fail(err)
	}

	e.finalize(ctx, sessionID, dest, f.Size)
	return FileResult{Name: dest.Sanitized, Path: dest.Relative, Size: f.Size}
}

// stage copies the incoming stream into a staging artifact and returns its
// path. The copied byte count must equal the declared size.
func (e *Engine) stage(ctx context.Context, t *tx, f FileInput) (string, error) {
	src, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer src.Close()

	dst, err := t.create()
	if err != nil {
		return "", err
	}
	name := dst.Name()

	buf := make([]byte, e.cfg.CopyBuffer)
	n, copyErr := io.CopyBuffer(dst, io.LimitReader(src, f.Size+1), buf)
	if copyErr == nil {
		copyErr = dst.Sync()
	}
	if err := errors.Join(copyErr, dst.Close()); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ErrClientAborted, ctxErr)
		}
		return "", fmt.Errorf("%w: stage %s: %w", ErrIO, f.Name, err)
	}
	if n != f.Size {
		t.discard(name)
		return "", fmt.Errorf("%w: received %d of %d bytes", ErrTransport, n, f.Size)
	}

	return name, nil
}
