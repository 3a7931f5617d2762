// ABOUTME: Asynchronous transition journal fed by the lifecycle core observer
// ABOUTME: Buffers records in a channel and persists them from a single writer goroutine

package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/authflow/internal/lifecycle"
	"github.com/2389/authflow/internal/store"
)

// DefaultBufferSize is the number of records held while the writer catches up.
const DefaultBufferSize = 256

// Options configures a Journal.
type Options struct {
	BufferSize   int
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Journal persists transition records off the dispatch path.
type Journal struct {
	store        store.JournalStore
	records      chan store.TransitionRecord
	done         chan struct{}
	writeTimeout time.Duration
	logger       *slog.Logger

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
	written atomic.Uint64
}

// New starts a Journal writing into s.
func New(s store.JournalStore, opts Options) *Journal {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	j := &Journal{
		store:        s,
		records:      make(chan store.TransitionRecord, opts.BufferSize),
		done:         make(chan struct{}),
		writeTimeout: opts.WriteTimeout,
		logger:       logger.With("component", "journal"),
	}
	go j.run()
	return j
}

// Record queues r for writing. It never blocks and reports whether r was
// accepted.
func (j *Journal) Record(r store.TransitionRecord) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		j.dropped.Add(1)
		return false
	}

	select {
	case j.records <- r:
		return true
	default:
		j.dropped.Add(1)
		j.logger.Debug("journal buffer full, dropping record",
			"run_id", r.RunID,
			"seq", r.Seq,
			"event", r.Event,
		)
		return false
	}
}

// Dropped returns how many records were discarded.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Written returns how many records reached the store.
func (j *Journal) Written() uint64 {
	return j.written.Load()
}

// Close stops accepting records and waits for the buffered ones to be
// written, or for ctx to end. It does not close the underlying store.
func (j *Journal) Close(ctx context.Context) error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.records)
	}
	j.mu.Unlock()

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Journal) run() {
	defer close(j.done)

	for r := range j.records {
		ctx, cancel := context.WithTimeout(context.Background(), j.writeTimeout)
		err := j.store.SaveTransition(ctx, &r)
		cancel()
		if err != nil {
			j.logger.Error("failed to save transition",
				"run_id", r.RunID,
				"seq", r.Seq,
				"error", err,
			)
			continue
		}
		j.written.Add(1)
	}
}

// Observer returns a lifecycle observer that records every transition of
// the core identified by runID into j.
func Observer[C any](j *Journal, runID string) func(lifecycle.Transition[C]) {
	return func(t lifecycle.Transition[C]) {
		j.Record(NewRecord(runID, t))
	}
}

// NewRecord converts a transition into a journal record.
func NewRecord[C any](runID string, t lifecycle.Transition[C]) store.TransitionRecord {
	r := store.TransitionRecord{
		RunID:      runID,
		Seq:        t.Seq,
		FromStatus: string(t.From.Status()),
		ToStatus:   string(t.To.Status()),
		Event:      string(t.Event.Type()),
		Generation: t.Generation,
		Noop:       t.Noop,
		CreatedAt:  t.At,
	}
	if s := lifecycle.SessionOf(t.To); s != nil {
		r.UserID = s.UserID()
	}
	if err := lifecycle.ErrOf(t.To); err != nil {
		r.Error = err.Error()
	}
	return r
}
