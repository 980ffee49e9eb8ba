package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/dmitrymomot/filedrop/core/logger"
	"github.com/dmitrymomot/filedrop/core/sanitizer"
)

const stagingSuffix = ".tmp"

// tx tracks the staging artifacts of one request. Every artifact that was
// not committed is removed by rollback, which callers defer right after
// begin.
type tx struct {
	dir     string
	logger  *slog.Logger
	pending map[string]struct{}
}

func (e *Engine) begin() *tx {
	return &tx{
		dir:     e.stagingDir,
		logger:  e.logger,
		pending: make(map[string]struct{}),
	}
}

// create opens a new uniquely named staging artifact.
func (t *tx) create() (*os.File, error) {
	name := filepath.Join(t.dir, uuid.NewString()+stagingSuffix)
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: create staging file: %w", ErrIO, err)
	}
	t.pending[name] = struct{}{}
	return f, nil
}

// commit renames a staged artifact into place. The destination is checked
// again right before the rename since another request may have committed the
// same name after validation.
func (t *tx) commit(staged, dest string) error {
	if err := ensureAbsent(dest); err != nil {
		return err
	}
	if err := os.Rename(staged, dest); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrIO, err)
	}
	delete(t.pending, staged)
	return nil
}

// discard removes a single artifact ahead of rollback.
func (t *tx) discard(staged string) {
	t.remove(staged)
	delete(t.pending, staged)
}

func (t *tx) rollback() {
	for name := range t.pending {
		t.remove(name)
		delete(t.pending, name)
	}
}

func (t *tx) remove(name string) {
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.Warn("failed to remove staging artifact", logger.Path(name), logger.Error(err))
	}
}

// sanitizeUploadPath picks folder-preserving or flat sanitization.
func sanitizeUploadPath(name, relativePath string) string {
	if strings.TrimSpace(relativePath) != "" {
		return sanitizer.RelativePath(relativePath)
	}
	return sanitizer.Filename(name)
}

func splitDir(p string) (dir, base string) {
	dir, base = path.Split(p)
	return strings.TrimSuffix(dir, "/"), base
}

func joinRel(dir, base string) string {
	if dir == "" {
		return base
	}
	return dir + "/" + base
}

func formatBytes(n int64) string {
	return humanize.IBytes(uint64(max(n, 0)))
}
