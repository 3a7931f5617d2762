// ABOUTME: TTL window for suppressing repeated auth provider change notifications
// ABOUTME: Bounded by size with oldest-first eviction and periodic expiry sweeps

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key  string
	seen time.Time
}

// Window remembers keys for a fixed TTL. It is safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Window keeping at most maxSize keys for ttl each, and starts a
// sweeper that drops expired keys every sweep interval. A sweep <= 0 disables
// the sweeper; expired keys are still ignored on lookup.
func New(ttl time.Duration, maxSize int, sweep time.Duration) *Window {
	if maxSize <= 0 {
		maxSize = 1
	}
	w := &Window{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if sweep > 0 {
		go w.sweepLoop(sweep)
	}
	return w
}

// Seen reports whether key was recorded within the TTL, recording it if not.
// The check and the record happen atomically.
func (w *Window) Seen(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if el, ok := w.entries[key]; ok {
		e := el.Value.(*entry)
		if now.Sub(e.seen) < w.ttl {
			return true
		}
		// expired: refresh in place
		e.seen = now
		w.order.MoveToBack(el)
		return false
	}

	if len(w.entries) >= w.maxSize {
		w.evictOldest()
	}
	w.entries[key] = w.order.PushBack(&entry{key: key, seen: now})
	return false
}

// Len returns the number of keys currently held, expired or not.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// evictOldest must be called with mu held.
func (w *Window) evictOldest() {
	front := w.order.Front()
	if front == nil {
		return
	}
	w.order.Remove(front)
	delete(w.entries, front.Value.(*entry).key)
}

func (w *Window) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Sweep()
		case <-w.done:
			return
		}
	}
}

// Sweep drops every expired key. Keys are ordered by last record time, so
// the walk stops at the first live one.
func (w *Window) Sweep() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for el := w.order.Front(); el != nil; {
		e := el.Value.(*entry)
		if now.Sub(e.seen) < w.ttl {
			return
		}
		next := el.Next()
		w.order.Remove(el)
		delete(w.entries, e.key)
		el = next
	}
}

// Close stops the sweeper. It is safe to call multiple times.
func (w *Window) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}
