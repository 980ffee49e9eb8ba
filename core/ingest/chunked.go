package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/dmitrymomot/filedrop/core/logger"
	"github.com/dmitrymomot/filedrop/core/pathguard"
	"github.com/dmitrymomot/filedrop/core/quota"
)

const chunkSuffix = ".part"

// Status is the resumption state of a chunked upload.
type Status struct {
	Exists         bool
	NextChunkIndex int
}

// ChunkInput is one chunk of a chunked upload.
type ChunkInput struct {
	UploadID     string
	Index        int
	Total        int
	Filename     string
	RelativePath string
	TargetDir    string
	// Size is the declared chunk size; negative when unknown.
	Size         int64
	Open         func() (io.ReadCloser, error)
	TransportErr error
}

// ChunkResult reports a stored chunk or, for the final chunk, the merged file.
type ChunkResult struct {
	Index    int
	Total    int
	Complete bool
	// Name is the sanitized path relative to the target directory.
	Name string
	// Path is the committed path relative to the storage root.
	Path    string
	Size    int64
	Storage quota.StorageInfo
}

// CheckStatus reports how many contiguous chunks starting at index 0 are
// stored for uploadID. A client resumes by sending NextChunkIndex.
func (e *Engine) CheckStatus(_ context.Context, uploadID string) (Status, error) {
	if err := ValidateUploadID(uploadID); err != nil {
		return Status{}, err
	}

	dir := e.chunkDir(uploadID)
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if !info.IsDir() {
		return Status{}, nil
	}

	next := 0
	for {
		if _, err := os.Stat(chunkPath(dir, next)); err != nil {
			break
		}
		next++
	}
	return Status{Exists: true, NextChunkIndex: next}, nil
}

// ReceiveChunk stores one chunk and merges the set when the final chunk
// arrives. Gaps are only detected at merge time.
func (e *Engine) ReceiveChunk(ctx context.Context, sessionID string, in ChunkInput) (ChunkResult, error) {
	if !e.cfg.Enabled {
		return ChunkResult{}, ErrPolicyDisabled
	}
	if err := ValidateUploadID(in.UploadID); err != nil {
		return ChunkResult{}, err
	}
	if in.Total <= 0 || in.Index < 0 || in.Index >= in.Total {
		return ChunkResult{}, fmt.Errorf("%w: %d of %d", ErrInvalidChunk, in.Index, in.Total)
	}
	if in.Total > e.maxChunks() {
		return ChunkResult{}, fmt.Errorf("%w: %d chunks exceed the limit of %d", ErrInvalidChunk, in.Total, e.maxChunks())
	}
	if in.TransportErr != nil {
		return ChunkResult{}, fmt.Errorf("%w: %w", ErrTransport, in.TransportErr)
	}
	if in.Open == nil {
		return ChunkResult{}, fmt.Errorf("%w: empty chunk body", ErrTransport)
	}
	if in.Size > e.cfg.MaxChunkSize {
		return ChunkResult{}, fmt.Errorf("%w: chunk %s > %s", ErrSizeLimit, formatBytes(in.Size), formatBytes(e.cfg.MaxChunkSize))
	}

	target, err := e.target(in.TargetDir)
	if err != nil {
		return ChunkResult{}, err
	}

	log := e.logger.With(logger.UploadID(in.UploadID), logger.Chunk(in.Index, in.Total))

	if in.Index == 0 {
		if n, err := e.CollectGarbage(ctx); err != nil {
			log.WarnContext(ctx, "chunk garbage collection failed", logger.Error(err))
		} else if n > 0 {
			log.InfoContext(ctx, "removed stale chunk sets", logger.Count("removed", n))
		}
	}

	dir := e.chunkDir(in.UploadID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return ChunkResult{}, fmt.Errorf("%w: create chunk dir: %w", ErrIO, err)
	}

	if err := e.writeChunk(ctx, dir, in); err != nil {
		if errors.Is(err, ErrClientAborted) {
			e.removeChunkDir(ctx, in.UploadID)
		}
		return ChunkResult{}, err
	}

	if err := ctx.Err(); err != nil {
		e.removeChunkDir(ctx, in.UploadID)
		return ChunkResult{}, fmt.Errorf("%w: %w", ErrClientAborted, err)
	}

	// Chunk sets are aged against the engine clock, not the filesystem's.
	now := e.now()
	if err := os.Chtimes(dir, now, now); err != nil {
		log.DebugContext(ctx, "failed to touch chunk dir", logger.Error(err))
	}

	if in.Index+1 < in.Total {
		return ChunkResult{Index: in.Index, Total: in.Total}, nil
	}

	return e.merge(ctx, sessionID, target, in)
}

// Abort discards every stored chunk of uploadID.
func (e *Engine) Abort(ctx context.Context, uploadID string) error {
	if err := ValidateUploadID(uploadID); err != nil {
		return err
	}
	if err := os.RemoveAll(e.chunkDir(uploadID)); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	e.logger.InfoContext(ctx, "chunked upload aborted", logger.UploadID(uploadID))
	return nil
}

// writeChunk stores the chunk under a temporary name and renames it to
// "<index>.part", so CheckStatus never counts a partially written chunk.
func (e *Engine) writeChunk(ctx context.Context, dir string, in ChunkInput) error {
	src, err := in.Open()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer src.Close()

	final := chunkPath(dir, in.Index)
	tmp := final + "." + uuid.NewString() + stagingSuffix
	dst, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("%w: create chunk: %w", ErrIO, err)
	}
	defer os.Remove(tmp)

	buf := make([]byte, e.cfg.CopyBuffer)
	n, copyErr := io.CopyBuffer(dst, io.LimitReader(src, e.cfg.MaxChunkSize+1), buf)
	if copyErr == nil {
		copyErr = dst.Sync()
	}
	if err := errors.Join(copyErr, dst.Close()); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrClientAborted, ctxErr)
		}
		return fmt.Errorf("%w: write chunk %d: %w", ErrIO, in.Index, err)
	}
	if n > e.cfg.MaxChunkSize {
		return fmt.Errorf("%w: chunk larger than %s", ErrSizeLimit, formatBytes(e.cfg.MaxChunkSize))
	}
	if in.Size >= 0 && n != in.Size {
		return fmt.Errorf("%w: chunk %d received %d of %d bytes", ErrTransport, in.Index, n, in.Size)
	}

	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("%w: store chunk %d: %w", ErrIO, in.Index, err)
	}
	return nil
}

// merge assembles all chunks into a staging artifact and commits it. The
// chunk set is removed on every outcome.
func (e *Engine) merge(ctx context.Context, sessionID string, target pathguard.Resolved, in ChunkInput) (ChunkResult, error) {
	defer e.removeChunkDir(ctx, in.UploadID)

	dir := e.chunkDir(in.UploadID)
	var sizes []int64
	var total int64
	for i := range in.Total {
		info, err := os.Stat(chunkPath(dir, i))
		if err != nil {
			return ChunkResult{}, fmt.Errorf("%w %d", ErrMissingChunk, i)
		}
		sizes = append(sizes, info.Size())
		total += info.Size()
	}

	if err := e.admit(ctx, sessionID, total); err != nil {
		return ChunkResult{}, err
	}
	p, err := e.planDestination(target, in.Filename, in.RelativePath)
	if err != nil {
		return ChunkResult{}, err
	}
	if !e.disk.HasEnoughSpace(total) {
		return ChunkResult{}, fmt.Errorf("%w: %s required", ErrInsufficientSpace, formatBytes(total))
	}

	t := e.begin()
	defer t.rollback()

	dst, err := t.create()
	if err != nil {
		return ChunkResult{}, err
	}
	staged := dst.Name()

	if err := e.copyChunks(ctx, dst, dir, sizes); err != nil {
		_ = dst.Close()
		return ChunkResult{}, err
	}
	if err := errors.Join(dst.Sync(), checkIntegrity(dst, total), dst.Close()); err != nil {
		if errors.Is(err, ErrIntegrity) {
			return ChunkResult{}, err
		}
		return ChunkResult{}, fmt.Errorf("%w: finish merge: %w", ErrIO, err)
	}

	dest, err := e.commitTo(ctx, t, staged, p)
	if err != nil {
		return ChunkResult{}, err
	}
	e.finalize(ctx, sessionID, dest, total)

	return ChunkResult{
		Index:    in.Index,
		Total:    in.Total,
		Complete: true,
		Name:     dest.Sanitized,
		Path:     dest.Relative,
		Size:     total,
		Storage:  e.disk.Info(),
	}, nil
}

// copyChunks appends the chunks in order. The client connection is checked
// after every chunk.
func (e *Engine) copyChunks(ctx context.Context, dst io.Writer, dir string, sizes []int64) error {
	buf := make([]byte, e.cfg.CopyBuffer)
	for i, size := range sizes {
		if err := copyChunk(dst, chunkPath(dir, i), size, buf); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrClientAborted, err)
		}
	}
	return nil
}

func copyChunk(dst io.Writer, path string, size int64, buf []byte) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open chunk: %w", ErrIO, err)
	}
	defer src.Close()

	n, err := io.CopyBuffer(dst, src, buf)
	if err != nil {
		return fmt.Errorf("%w: copy chunk: %w", ErrIO, err)
	}
	if n != size {
		return fmt.Errorf("%w: chunk %s changed during merge", ErrIntegrity, filepath.Base(path))
	}
	return nil
}

// checkIntegrity compares the size of the merged artifact with the sum of
// the chunk sizes.
func checkIntegrity(f *os.File, want int64) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() != want {
		return fmt.Errorf("%w: %d bytes written, %d expected", ErrIntegrity, info.Size(), want)
	}
	return nil
}

func (e *Engine) removeChunkDir(ctx context.Context, uploadID string) {
	if err := os.RemoveAll(e.chunkDir(uploadID)); err != nil {
		e.logger.WarnContext(context.WithoutCancel(ctx), "failed to remove chunk dir",
			logger.UploadID(uploadID),
			logger.Error(err))
	}
}

// maxChunks bounds totalChunks. Every chunk but an empty file's single one
// carries at least one byte, so more chunks than MaxFileSize bytes can never
// merge.
func (e *Engine) maxChunks() int {
	return int(min(int64(e.cfg.MaxChunks), max(e.cfg.MaxFileSize, 1)))
}

func (e *Engine) chunkDir(uploadID string) string {
	return filepath.Join(e.chunksDir, uploadID)
}

func chunkPath(dir string, index int) string {
	return filepath.Join(dir, strconv.Itoa(index)+chunkSuffix)
}
