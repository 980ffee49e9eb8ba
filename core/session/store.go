package session

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists sessions. Implementations must be safe for concurrent use
// and return ErrNotFound for unknown sessions.
type Store[Data any] interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Session[Data], error)
	GetByToken(ctx context.Context, token string) (*Session[Data], error)
	Save(ctx context.Context, session *Session[Data]) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteExpired removes expired sessions and returns how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}

// MemoryStore keeps sessions in process memory.
type MemoryStore[Data any] struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]Session[Data]
	byToken map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore[Data any]() *MemoryStore[Data] {
	return &MemoryStore[Data]{
		byID:    make(map[uuid.UUID]Session[Data]),
		byToken: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore[Data]) GetByID(_ context.Context, id uuid.UUID) (*Session[Data], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *MemoryStore[Data]) GetByToken(ctx context.Context, token string) (*Session[Data], error) {
	s.mu.RLock()
	id, ok := s.byToken[token]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *MemoryStore[Data]) Save(_ context.Context, sess *Session[Data]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byID[sess.ID]; ok && prev.Token != sess.Token {
		delete(s.byToken, prev.Token)
	}
	stored := *sess
	stored.isModified = false
	s.byID[sess.ID] = stored
	s.byToken[sess.Token] = sess.ID
	return nil
}

func (s *MemoryStore[Data]) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byToken, sess.Token)
	return nil
}

func (s *MemoryStore[Data]) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var n int64
	maps.DeleteFunc(s.byID, func(id uuid.UUID, sess Session[Data]) bool {
		if now.After(sess.ExpiresAt) {
			delete(s.byToken, sess.Token)
			n++
			return true
		}
		return false
	})
	return n, nil
}
