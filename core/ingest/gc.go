package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrymomot/filedrop/core/logger"
)

// CollectGarbage removes chunk sets with no activity for longer than
// Config.ChunkMaxAge and staging artifacts left behind by a crashed process.
// It returns the number of removed entries.
func (e *Engine) CollectGarbage(ctx context.Context) (int, error) {
	cutoff := e.now().Add(-e.cfg.ChunkMaxAge)

	removedChunks, chunkErr := e.sweep(e.chunksDir, func(entry os.DirEntry) bool {
		return entry.IsDir()
	}, cutoff)
	removedStaging, stagingErr := e.sweep(e.stagingDir, func(entry os.DirEntry) bool {
		return !entry.IsDir() && strings.HasSuffix(entry.Name(), stagingSuffix)
	}, cutoff)

	removed := removedChunks + removedStaging
	if removed > 0 {
		e.logger.DebugContext(ctx, "garbage collected",
			logger.Count("chunk_sets", removedChunks),
			logger.Count("staging_files", removedStaging))
	}
	return removed, errors.Join(chunkErr, stagingErr)
}

func (e *Engine) sweep(dir string, match func(os.DirEntry) bool, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: read %s: %w", ErrIO, dir, err)
	}

	var (
		removed int
		errs    []error
	)
	for _, entry := range entries {
		if !match(entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
