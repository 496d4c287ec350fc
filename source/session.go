package source

import (
	"context"
	"sync"

	"github.com/arloliu/credshare/types"
)

// TokenSession is an in-process types.Session.
//
// It holds the bearer token handed out by the authentication collaborator
// and closes its LoggedOut channel exactly once when Logout is called.
type TokenSession struct {
	mu        sync.RWMutex
	token     string
	loggedOut chan struct{}
	once      sync.Once
}

var _ types.Session = (*TokenSession)(nil)

// NewTokenSession creates a session holding token.
func NewTokenSession(token string) *TokenSession {
	return &TokenSession{token: token, loggedOut: make(chan struct{})}
}

// Token returns the current token.
//
// Returns ErrUnauthenticated once logged out or while no token is set.
func (s *TokenSession) Token(_ context.Context) (string, error) {
	select {
	case <-s.loggedOut:
		return "", types.ErrUnauthenticated
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return "", types.ErrUnauthenticated
	}

	return s.token, nil
}

// SetToken replaces the token, for example after the auth layer rotated it.
func (s *TokenSession) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

// Logout ends the session. Safe to call more than once.
func (s *TokenSession) Logout() {
	s.once.Do(func() {
		s.mu.Lock()
		s.token = ""
		s.mu.Unlock()
		close(s.loggedOut)
	})
}

// LoggedOut returns a channel closed by Logout.
func (s *TokenSession) LoggedOut() <-chan struct{} {
	return s.loggedOut
}
