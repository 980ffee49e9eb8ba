package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filedrop/core/ingest"
	"github.com/dmitrymomot/filedrop/core/pathguard"
	"github.com/dmitrymomot/filedrop/core/quota"
)

const sessionID = "session-1"

type fixture struct {
	engine *ingest.Engine
	root   string
	work   string
	store  *quota.MemoryStore
}

type fixtureOptions struct {
	cfg          func(*ingest.Config)
	sessionLimit int64
	free         uint64
	probeErr     error
	engineOpts   []ingest.Option
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()

	root := t.TempDir()
	work := filepath.Join(root, ingest.DefaultWorkDirName)
	require.NoError(t, os.MkdirAll(work, 0o700))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))

	guard, err := pathguard.New(root, pathguard.WithReservedDir(work))
	require.NoError(t, err)

	free := opts.free
	if free == 0 {
		free = 1 << 40
	}
	disk := quota.NewDisk(guard.Root(), quota.WithProber(func(string) (uint64, uint64, error) {
		if opts.probeErr != nil {
			return 0, 0, opts.probeErr
		}
		return 2 << 40, free, nil
	}))

	cfg := ingest.DefaultConfig()
	cfg.MaxFileSize = 1 << 20
	cfg.MaxChunkSize = 1 << 20
	cfg.CopyBuffer = 4096
	if opts.cfg != nil {
		opts.cfg(&cfg)
	}

	store := quota.NewMemoryStore()
	tracker := quota.NewTracker(store, opts.sessionLimit)

	engine, err := ingest.New(cfg, guard, disk, tracker, opts.engineOpts...)
	require.NoError(t, err)

	return &fixture{
		engine: engine,
		root:   guard.Root(),
		work:   filepath.Join(guard.Root(), ingest.DefaultWorkDirName),
		store:  store,
	}
}

func (f *fixture) path(rel string) string {
	return filepath.Join(f.root, filepath.FromSlash(rel))
}

func (f *fixture) chunkDir(uploadID string) string {
	return filepath.Join(f.work, "chunks", uploadID)
}

func (f *fixture) stagingEntries(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(f.work, "staging"))
	require.NoError(t, err)
	return entries
}

func (f *fixture) used(t *testing.T) int64 {
	t.Helper()
	n, err := f.store.Get(context.Background(), sessionID)
	require.NoError(t, err)
	return n
}

func fileInput(name string, data []byte) ingest.FileInput {
	return ingest.FileInput{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func chunkInput(uploadID string, index, total int, name string, data []byte) ingest.ChunkInput {
	return ingest.ChunkInput{
		UploadID:  uploadID,
		Index:     index,
		Total:     total,
		Filename:  name,
		TargetDir: "docs",
		Size:      int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func split(data []byte, size int) [][]byte {
	var parts [][]byte
	for len(data) > size {
		parts = append(parts, data[:size])
		data = data[size:]
	}
	return append(parts, data)
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

// countdownContext reports cancellation once Err has been called more than
// allowed times.
type countdownContext struct {
	context.Context
	remaining atomic.Int32
}

func newCountdownContext(allowed int32) *countdownContext {
	c := &countdownContext{Context: context.Background()}
	c.remaining.Store(allowed)
	return c
}

func (c *countdownContext) Err() error {
	if c.remaining.Add(-1) < 0 {
		return context.Canceled
	}
	return nil
}

// failingReader returns data and then err.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

var errBoom = errors.New("boom")

func advancedClock(d time.Duration) func() time.Time {
	return func() time.Time { return time.Now().Add(d) }
}

// newFixtureOn creates a second engine sharing the root and work dir of f.
func newFixtureOn(t *testing.T, f *fixture, cfg ingest.Config, opts ...ingest.Option) *ingest.Engine {
	t.Helper()

	guard, err := pathguard.New(f.root, pathguard.WithReservedDir(f.work))
	require.NoError(t, err)
	disk := quota.NewDisk(f.root, quota.WithProber(func(string) (uint64, uint64, error) {
		return 2 << 40, 1 << 40, nil
	}))

	engine, err := ingest.New(cfg, guard, disk, quota.NewTracker(f.store, 0), opts...)
	require.NoError(t, err)
	return engine
}
