// Package auth grants staff sessions. Any non-empty identifier is accepted;
// this is a convenience for the dashboard, not a security boundary.
package auth

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyIdentifier = errors.New("staff identifier is required")
	ErrNoSession       = errors.New("no such session")
)

// DefaultTTL is how long a session lasts: one long duty shift.
const DefaultTTL = 12 * time.Hour

type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	BusName   string    `json:"busName"`
	StartedAt time.Time `json:"startedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Sessions struct {
	busName string
	ttl     time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]Session
}

type Option func(*Sessions)

// WithTTL sets the session lifetime. Non-positive values keep DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Sessions) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sessions) { s.now = now }
}

// NewSessions returns a session table whose conductors are assigned to busName.
func NewSessions(busName string, opts ...Option) *Sessions {
	s := &Sessions{busName: busName, ttl: DefaultTTL, now: time.Now, sessions: make(map[string]Session)}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sessions) Login(identifier string) (Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Session{}, ErrEmptyIdentifier
	}
	now := s.now()
	sess := Session{
		Token:     uuid.NewString(),
		Username:  identifier,
		BusName:   s.busName,
		StartedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.mu.Lock()
	s.pruneLocked(now)
	s.sessions[sess.Token] = sess
	s.mu.Unlock()
	return sess, nil
}

// Lookup returns the live session for token. Expired sessions are removed.
func (s *Sessions) Lookup(token string) (Session, error) {
	now := s.now()
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return Session{}, ErrNoSession
	}
	if !now.Before(sess.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// Len is the number of stored sessions, expired ones included until pruned.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Sessions) pruneLocked(now time.Time) {
	for token, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
}

func (s *Sessions) Logout(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return ErrNoSession
	}
	delete(s.sessions, token)
	return nil
}
