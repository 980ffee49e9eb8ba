package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
)

// ErrQuotaExceeded is returned when a write would push a session past its ceiling.
var ErrQuotaExceeded = errors.New("quota: session quota exceeded")

// UsageStore persists the cumulative committed byte count of a session.
type UsageStore interface {
	Get(ctx context.Context, sessionID string) (int64, error)
	Put(ctx context.Context, sessionID string, n int64) error
}

// Incrementer is implemented by stores that can add to a counter in one
// step. Tracker.Add prefers it over a Get followed by a Put.
type Incrementer interface {
	Increment(ctx context.Context, sessionID string, n int64) (int64, error)
}

// Tracker enforces a per-session byte ceiling over a UsageStore.
// A limit of zero or less disables the ceiling; usage is still counted.
type Tracker struct {
	store UsageStore
	limit int64
}

// NewTracker creates a Tracker with the given per-session limit in bytes.
func NewTracker(store UsageStore, limit int64) *Tracker {
	return &Tracker{store: store, limit: limit}
}

// Limit returns the configured ceiling.
func (t *Tracker) Limit() int64 {
	return t.limit
}

// Used returns the bytes already committed by the session.
func (t *Tracker) Used(ctx context.Context, sessionID string) (int64, error) {
	n, err := t.store.Get(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("quota: read session usage: %w", err)
	}
	return n, nil
}

// Allow checks that n more bytes fit into the session ceiling.
// It does not change the counter.
func (t *Tracker) Allow(ctx context.Context, sessionID string, n int64) error {
	if t.limit <= 0 {
		return nil
	}

	used, err := t.Used(ctx, sessionID)
	if err != nil {
		return err
	}
	if used+n > t.limit {
		return fmt.Errorf("%w: %s used of %s, %s requested", ErrQuotaExceeded,
			humanize.IBytes(uint64(max(used, 0))),
			humanize.IBytes(uint64(t.limit)),
			humanize.IBytes(uint64(max(n, 0))))
	}
	return nil
}

// Add increments the session counter by n and returns the new total.
func (t *Tracker) Add(ctx context.Context, sessionID string, n int64) (int64, error) {
	if inc, ok := t.store.(Incrementer); ok {
		total, err := inc.Increment(ctx, sessionID, n)
		if err != nil {
			return 0, fmt.Errorf("quota: write session usage: %w", err)
		}
		return total, nil
	}

	used, err := t.Used(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	total := used + n
	if err := t.store.Put(ctx, sessionID, total); err != nil {
		return used, fmt.Errorf("quota: write session usage: %w", err)
	}
	return total, nil
}

// MemoryStore is an in-process UsageStore.
type MemoryStore struct {
	mu    sync.RWMutex
	usage map[string]int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{usage: make(map[string]int64)}
}

// Get implements UsageStore.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage[sessionID], nil
}

// Put implements UsageStore.
func (s *MemoryStore) Put(_ context.Context, sessionID string, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[sessionID] = n
	return nil
}

// Increment implements Incrementer.
func (s *MemoryStore) Increment(_ context.Context, sessionID string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[sessionID] += n
	return s.usage[sessionID], nil
}
