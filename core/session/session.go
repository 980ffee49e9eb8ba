package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is an anonymous client session carrying application data.
type Session[Data any] struct {
	// ID never changes during the session lifecycle.
	ID uuid.UUID `json:"id"`
	// Token is the secret sent to the client (32 random bytes, base64url).
	Token string `json:"token"`

	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`

	Data Data `json:"data"`

	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	DeletedAt time.Time `json:"deleted_at,omitzero"`

	isModified bool
}

// NewSessionParams contains parameters for creating a new session.
type NewSessionParams struct {
	IP        string
	UserAgent string
}

// New creates a session with a fresh ID and token, marked as modified.
func New[Data any](params NewSessionParams, ttl time.Duration) (Session[Data], error) {
	if params.IP == "" {
		return Session[Data]{}, ErrMissingIP
	}

	token, err := generateToken()
	if err != nil {
		return Session[Data]{}, errors.Join(ErrTokenGeneration, err)
	}

	now := time.Now()
	return Session[Data]{
		ID:         uuid.New(),
		Token:      token,
		IP:         params.IP,
		UserAgent:  params.UserAgent,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
		isModified: true,
	}, nil
}

// Refresh rotates the token and keeps the ID.
func (s *Session[Data]) Refresh() error {
	token, err := generateToken()
	if err != nil {
		return errors.Join(ErrTokenGeneration, err)
	}
	s.Token = token
	s.UpdatedAt = time.Now()
	s.isModified = true
	return nil
}

// Logout marks the session for deletion.
func (s *Session[Data]) Logout() {
	s.DeletedAt = time.Now()
	s.isModified = true
}

// SetData replaces the session's data.
func (s *Session[Data]) SetData(data Data) {
	s.Data = data
	s.UpdatedAt = time.Now()
	s.isModified = true
}

// Touch extends the expiration once touchInterval has elapsed since the
// last update.
func (s *Session[Data]) Touch(ttl, touchInterval time.Duration) {
	if time.Since(s.UpdatedAt) >= touchInterval {
		now := time.Now()
		s.ExpiresAt = now.Add(ttl)
		s.UpdatedAt = now
		s.isModified = true
	}
}

// IsDeleted returns true if the session is marked for deletion.
func (s Session[Data]) IsDeleted() bool {
	return !s.DeletedAt.IsZero()
}

// IsModified returns true if the session needs saving.
func (s Session[Data]) IsModified() bool {
	return s.isModified
}

// IsExpired returns true if the session has expired.
func (s Session[Data]) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
