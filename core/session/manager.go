package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager handles session creation, lookup, persistence and expiration.
type Manager[Data any] struct {
	store Store[Data]
	cfg   Config

	// mu serializes Update so read-modify-write cycles from one process
	// do not interleave.
	mu sync.Mutex
}

// NewManager creates a session manager backed by store.
func NewManager[Data any](store Store[Data], opts ...Option) *Manager[Data] {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Manager[Data]{store: store, cfg: cfg}
}

// New creates an unsaved session. It is persisted by Store.
func (m *Manager[Data]) New(_ context.Context, params NewSessionParams) (Session[Data], error) {
	return New[Data](params, m.cfg.TTL)
}

// GetByID retrieves a session by ID and validates expiration.
func (m *Manager[Data]) GetByID(ctx context.Context, id uuid.UUID) (Session[Data], error) {
	sess, err := m.store.GetByID(ctx, id)
	if err != nil {
		return Session[Data]{}, err
	}
	if sess.IsExpired() {
		return Session[Data]{}, ErrExpired
	}
	return *sess, nil
}

// GetByToken retrieves a session by token and validates expiration.
func (m *Manager[Data]) GetByToken(ctx context.Context, token string) (Session[Data], error) {
	sess, err := m.store.GetByToken(ctx, token)
	if err != nil {
		return Session[Data]{}, err
	}
	if sess.IsExpired() {
		return Session[Data]{}, ErrExpired
	}
	return *sess, nil
}

// Store touches sess and saves it when modified. Deleted sessions are
// removed from the store. It returns the session as persisted.
func (m *Manager[Data]) Store(ctx context.Context, sess Session[Data]) (Session[Data], error) {
	if sess.IsDeleted() {
		if err := m.store.Delete(ctx, sess.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return sess, errors.Join(ErrDeleteSession, err)
		}
		return sess, nil
	}

	sess.Touch(m.cfg.TTL, m.cfg.TouchInterval)
	if !sess.IsModified() {
		return sess, nil
	}
	if err := m.store.Save(ctx, &sess); err != nil {
		return sess, errors.Join(ErrSaveSession, err)
	}
	sess.isModified = false
	return sess, nil
}

// Update loads the session, applies fn to its data and saves the result.
func (m *Manager[Data]) Update(ctx context.Context, id uuid.UUID, fn func(*Data)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	data := sess.Data
	fn(&data)
	sess.SetData(data)
	if err := m.store.Save(ctx, &sess); err != nil {
		return errors.Join(ErrSaveSession, err)
	}
	return nil
}

// Delete removes a session from the store.
func (m *Manager[Data]) Delete(ctx context.Context, id uuid.UUID) error {
	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Join(ErrDeleteSession, err)
	}
	return nil
}

// CleanupExpired removes all expired sessions from the store.
func (m *Manager[Data]) CleanupExpired(ctx context.Context) (int64, error) {
	return m.store.DeleteExpired(ctx)
}

// TTL returns the session time-to-live.
func (m *Manager[Data]) TTL() time.Duration {
	return m.cfg.TTL
}

// CleanupInterval returns how often expired sessions should be purged.
func (m *Manager[Data]) CleanupInterval() time.Duration {
	return m.cfg.CleanupInterval
}
