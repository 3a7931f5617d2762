// ABOUTME: Mock JournalStore implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory JournalStore implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	transitions []TransitionRecord
	closed      bool

	// SaveErr, when set, is returned by SaveTransition.
	SaveErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// SaveTransition stores a copy of r.
func (m *MockStore) SaveTransition(ctx context.Context, r *TransitionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.transitions = append(m.transitions, *r)
	return nil
}

// GetTransition retrieves a transition by ID.
func (m *MockStore) GetTransition(ctx context.Context, id string) (*TransitionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.transitions {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (f TransitionFilter) matches(r TransitionRecord) bool {
	switch {
	case f.RunID != nil && r.RunID != *f.RunID:
		return false
	case f.UserID != nil && r.UserID != *f.UserID:
		return false
	case f.ToStatus != nil && r.ToStatus != *f.ToStatus:
		return false
	case f.Since != nil && r.CreatedAt.Before(*f.Since):
		return false
	case f.SkipNoop && r.Noop:
		return false
	}
	return true
}

func (m *MockStore) filtered(f TransitionFilter) []TransitionRecord {
	var out []TransitionRecord
	for _, r := range m.transitions {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// ListTransitions returns matching transitions oldest first.
func (m *MockStore) ListTransitions(ctx context.Context, f TransitionFilter) ([]TransitionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.filtered(f)
	if limit := normalizeLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []TransitionRecord{}
	}
	return out, nil
}

// CountTransitions returns the number of matching transitions.
func (m *MockStore) CountTransitions(ctx context.Context, f TransitionFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filtered(f)), nil
}

// ListRuns summarizes every run, most recently active first.
func (m *MockStore) ListRuns(ctx context.Context) ([]RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byRun := make(map[string]*RunSummary)
	lastSeq := make(map[string]uint64)
	for _, r := range m.transitions {
		sum, ok := byRun[r.RunID]
		if !ok {
			sum = &RunSummary{RunID: r.RunID, FirstAt: r.CreatedAt, LastAt: r.CreatedAt}
			byRun[r.RunID] = sum
		}
		sum.Transitions++
		if r.CreatedAt.Before(sum.FirstAt) {
			sum.FirstAt = r.CreatedAt
		}
		if r.CreatedAt.After(sum.LastAt) {
			sum.LastAt = r.CreatedAt
		}
		if r.Seq >= lastSeq[r.RunID] {
			lastSeq[r.RunID] = r.Seq
			sum.LastStatus = r.ToStatus
		}
	}

	runs := make([]RunSummary, 0, len(byRun))
	for _, sum := range byRun {
		runs = append(runs, *sum)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].LastAt.After(runs[j].LastAt)
	})
	return runs, nil
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Compile-time interface checks
var (
	_ JournalStore = (*SQLiteStore)(nil)
	_ JournalStore = (*MockStore)(nil)
)
