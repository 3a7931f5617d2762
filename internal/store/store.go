// ABOUTME: Journal store interface and record types for lifecycle transitions
// ABOUTME: Append-only audit of what the auth lifecycle did, never read back into a Core

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// TransitionRecord is one applied lifecycle event.
type TransitionRecord struct {
	ID         string    // UUID v4
	RunID      string    // Core instance that applied the event
	Seq        uint64    // per-run application order, starting at 1
	FromStatus string    // status before the event
	ToStatus   string    // status after the event
	Event      string    // event type
	UserID     string    // user of the resulting state, empty when signed out
	Generation uint64    // task generation that produced the event, 0 for external events
	Error      string    // error carried by an ERROR_* result
	Noop       bool      // the event left the state value unchanged
	CreatedAt  time.Time // when the event was applied
}

// TransitionFilter specifies filtering options for listing transitions.
type TransitionFilter struct {
	RunID    *string    // only this run
	UserID   *string    // only transitions into states of this user
	ToStatus *string    // only transitions landing on this status
	Since    *time.Time // applied at or after this time
	SkipNoop bool       // leave out no-op applications
	Limit    int        // max results (default 100, max 1000)
}

// RunSummary aggregates the transitions of one run.
type RunSummary struct {
	RunID       string
	Transitions int
	FirstAt     time.Time
	LastAt      time.Time
	LastStatus  string
}

// JournalStore persists transition records.
type JournalStore interface {
	// SaveTransition appends a record, filling ID and CreatedAt when empty.
	SaveTransition(ctx context.Context, r *TransitionRecord) error
	// GetTransition returns the record with the given ID or ErrNotFound.
	GetTransition(ctx context.Context, id string) (*TransitionRecord, error)
	// ListTransitions returns matching records oldest first.
	ListTransitions(ctx context.Context, f TransitionFilter) ([]TransitionRecord, error)
	// CountTransitions returns the number of records matching f, ignoring its limit.
	CountTransitions(ctx context.Context, f TransitionFilter) (int, error)
	// ListRuns summarizes every run, most recent first.
	ListRuns(ctx context.Context) ([]RunSummary, error)
	Close() error
}

// normalizeLimit applies default (100) and cap (1000) to a list limit.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}
