// ABOUTME: Shared fixtures for lifecycle tests
// ABOUTME: Test session type, context payload, discard logger and a listener recorder

package lifecycle

import (
	"io"
	"log/slog"
	"sync"
)

type testSession struct {
	id    string
	token string
}

func (s *testSession) UserID() string { return s.id }

func session(id, token string) *testSession {
	return &testSession{id: id, token: token}
}

type profile struct {
	Role  string
	Count int
}

type view struct {
	Label string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects the statuses seen by a listener.
type recorder struct {
	mu       sync.Mutex
	statuses []Status
	apps     []AppState[profile, view]
}

func (r *recorder) listen(s State[profile], app AppState[profile, view]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s.Status())
	r.apps = append(r.apps, app)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}

func (r *recorder) seen() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.statuses))
	copy(out, r.statuses)
	return out
}

func (r *recorder) last() AppState[profile, view] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apps[len(r.apps)-1]
}
