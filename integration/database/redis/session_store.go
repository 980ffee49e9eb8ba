package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/filedrop/core/session"
)

const defaultScanBatch = 1000

// SessionStore keeps sessions as JSON values with a token index. Both keys
// expire together with the session, so Redis evicts them on its own.
type SessionStore[Data any] struct {
	client    redis.UniversalClient
	prefix    string
	scanBatch int64
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*sessionStoreOptions)

type sessionStoreOptions struct {
	prefix    string
	scanBatch int64
}

// WithKeyPrefix namespaces every key written by the store.
func WithKeyPrefix(prefix string) SessionStoreOption {
	return func(o *sessionStoreOptions) { o.prefix = prefix }
}

// WithScanBatchSize sets the COUNT hint used while sweeping stale token keys.
func WithScanBatchSize(n int64) SessionStoreOption {
	return func(o *sessionStoreOptions) {
		if n > 0 {
			o.scanBatch = n
		}
	}
}

// NewSessionStore creates a Redis-backed session.Store.
func NewSessionStore[Data any](client redis.UniversalClient, opts ...SessionStoreOption) *SessionStore[Data] {
	o := sessionStoreOptions{scanBatch: defaultScanBatch}
	for _, opt := range opts {
		opt(&o)
	}
	return &SessionStore[Data]{client: client, prefix: o.prefix, scanBatch: o.scanBatch}
}

// NewSessionStoreFromConfig creates a store using the prefix and scan batch of cfg.
func NewSessionStoreFromConfig[Data any](client redis.UniversalClient, cfg Config) *SessionStore[Data] {
	return NewSessionStore[Data](client, WithKeyPrefix(cfg.KeyPrefix), WithScanBatchSize(cfg.ScanBatchSize))
}

var _ session.Store[struct{}] = (*SessionStore[struct{}])(nil)

func (s *SessionStore[Data]) GetByID(ctx context.Context, id uuid.UUID) (*session.Session[Data], error) {
	raw, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return decodeSession[Data](raw)
}

func (s *SessionStore[Data]) GetByToken(ctx context.Context, token string) (*session.Session[Data], error) {
	rawID, err := s.client.Get(ctx, s.tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session token: %w", err)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, session.ErrNotFound
	}

	sess, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// A refreshed session leaves its old token key behind until it expires.
	if sess.Token != token {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

func (s *SessionStore[Data]) Save(ctx context.Context, sess *session.Session[Data]) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, sess.ID)
	}

	raw, err := json.Marshal(sess)
	if err != nil {
		return errors.Join(ErrSessionCodec, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.ID), raw, ttl)
		pipe.Set(ctx, s.tokenKey(sess.Token), sess.ID.String(), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

func (s *SessionStore[Data]) Delete(ctx context.Context, id uuid.UUID) error {
	sess, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.client.Del(ctx, s.sessionKey(id), s.tokenKey(sess.Token)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes token keys that no longer point at a live session
// with the same token. Session keys themselves expire through their TTL.
func (s *SessionStore[Data]) DeleteExpired(ctx context.Context) (int64, error) {
	var removed int64
	iter := s.client.Scan(ctx, 0, s.prefix+"token:*", s.scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		token := key[len(s.prefix+"token:"):]

		_, err := s.GetByToken(ctx, token)
		if err == nil {
			continue
		}
		if !errors.Is(err, session.ErrNotFound) {
			return removed, err
		}

		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("redis delete stale token: %w", err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan tokens: %w", err)
	}
	return removed, nil
}

func (s *SessionStore[Data]) sessionKey(id uuid.UUID) string {
	return s.prefix + "session:" + id.String()
}

func (s *SessionStore[Data]) tokenKey(token string) string {
	return s.prefix + "token:" + token
}

func decodeSession[Data any](raw []byte) (*session.Session[Data], error) {
	var sess session.Session[Data]
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, errors.Join(ErrSessionCodec, err)
	}
	return &sess, nil
}
