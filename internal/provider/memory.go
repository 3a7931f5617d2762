// ABOUTME: In-process auth provider for demos and tests
// ABOUTME: Holds one session and emits change notifications on sign-in, refresh and sign-out

package provider

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/authflow/internal/lifecycle"
)

type subscriber struct {
	id string
	fn func(Change)
}

// MemorySource is a Source backed by memory. Notifications are delivered
// synchronously on the calling goroutine.
type MemorySource struct {
	mu          sync.Mutex
	session     lifecycle.Session
	lookupDelay time.Duration
	lookupErr   error
	subscribers []subscriber
}

// NewMemorySource creates a source whose current session is initial (nil for
// signed out).
func NewMemorySource(initial lifecycle.Session) *MemorySource {
	return &MemorySource{session: initial}
}

// SetLookup makes GetSession wait delay and then fail with err when non-nil.
func (m *MemorySource) SetLookup(delay time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookupDelay = delay
	m.lookupErr = err
}

func (m *MemorySource) GetSession(ctx context.Context) (lifecycle.Session, error) {
	m.mu.Lock()
	delay, err := m.lookupDelay, m.lookupErr
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, nil
}

func (m *MemorySource) OnChange(fn func(Change)) (unsubscribe func()) {
	id := uuid.New().String()

	m.mu.Lock()
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.subscribers = slices.DeleteFunc(m.subscribers, func(s subscriber) bool {
			return s.id == id
		})
	}
}

// SignIn makes s current and emits SIGNED_IN.
func (m *MemorySource) SignIn(s lifecycle.Session) {
	m.set(s, KindSignedIn)
}

// SignOut clears the session and emits SIGNED_OUT.
func (m *MemorySource) SignOut() {
	m.set(nil, KindSignedOut)
}

// Refresh replaces the session with a renewed one and emits TOKEN_REFRESHED.
func (m *MemorySource) Refresh(s lifecycle.Session) {
	m.set(s, KindTokenRefreshed)
}

// UpdateUser replaces the session after a profile change and emits USER_UPDATED.
func (m *MemorySource) UpdateUser(s lifecycle.Session) {
	m.set(s, KindUserUpdated)
}

// Emit delivers c as is, without touching the current session. It assigns an
// ID when c has none and returns the delivered change.
func (m *MemorySource) Emit(c Change) Change {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	m.mu.Lock()
	subs := slices.Clone(m.subscribers)
	m.mu.Unlock()

	for _, s := range subs {
		s.fn(c)
	}
	return c
}

func (m *MemorySource) set(s lifecycle.Session, kind Kind) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	m.Emit(Change{Kind: kind, Session: s})
}
