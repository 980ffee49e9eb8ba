package filedrop

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/filedrop/core/quota"
	"github.com/dmitrymomot/filedrop/core/session"
)

// SessionData is the per-client state kept in the session.
type SessionData struct {
	// UploadedBytes is the cumulative size of files committed in this session.
	UploadedBytes int64 `json:"uploaded_bytes"`
}

// usageStore exposes the session counter to the quota tracker.
type usageStore struct {
	sessions *session.Manager[SessionData]
}

var (
	_ quota.UsageStore  = usageStore{}
	_ quota.Incrementer = usageStore{}
)

func (s usageStore) Get(ctx context.Context, sessionID string) (int64, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return 0, fmt.Errorf("parse session id: %w", err)
	}
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return sess.Data.UploadedBytes, nil
}

func (s usageStore) Put(ctx context.Context, sessionID string, n int64) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("parse session id: %w", err)
	}
	return s.sessions.Update(ctx, id, func(d *SessionData) {
		d.UploadedBytes = n
	})
}

func (s usageStore) Increment(ctx context.Context, sessionID string, n int64) (int64, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return 0, fmt.Errorf("parse session id: %w", err)
	}
	var total int64
	err = s.sessions.Update(ctx, id, func(d *SessionData) {
		d.UploadedBytes += n
		total = d.UploadedBytes
	})
	return total, err
}
