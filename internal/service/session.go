package service

import (
	"sync"
	"time"

	"github.com/jjcims/jjcims/internal/domain"
	"github.com/jjcims/jjcims/pkg/idx"
)

// SessionContext is the single-slot process-wide authenticated state.
// Unset at start, set on successful login, cleared on logout or before
// re-authentication. Mutation is serialized; only the login flow writes.
type SessionContext struct {
	mu  sync.Mutex
	cur *domain.Session
}

// Set installs the authenticated session, replacing any previous one.
func (c *SessionContext) Set(user string, level domain.AccessLevel) domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := domain.Session{
		ID:              idx.New(),
		User:            user,
		Level:           level,
		AuthenticatedAt: time.Now().UTC(),
	}
	c.cur = &s
	return s
}

// Get returns the current session, if any.
func (c *SessionContext) Get() (domain.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur == nil {
		return domain.Session{}, false
	}
	return *c.cur, true
}

// Clear drops the current session.
func (c *SessionContext) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = nil
}
