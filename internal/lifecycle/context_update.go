// ABOUTME: In-place context mutation once the lifecycle reaches AUTH_READY
// ABOUTME: UpdateContext applies an updater, RefreshContext reloads via LoadContext

package lifecycle

import (
	"context"
	"fmt"
)

// UpdateContext replaces the ready context with updater's result. It is a
// no-op unless the state is AUTH_READY with a non-nil context. When updater
// returns the same pointer nothing is notified; otherwise the new context is
// swapped in under the same session and listeners are notified. Updaters must
// return a new value rather than mutate the one they receive.
//
// If the state moves on while updater runs, the result is discarded and
// ErrStaleContext is returned. Like Dispatch, it waits for listeners to be
// notified and must not be called from a listener.
func (c *Core[C, D]) UpdateContext(ctx context.Context, updater func(ctx context.Context, current *C) (*C, error)) error {
	if c.closed.Load() {
		return ErrClosed
	}

	ready, ok := c.Snapshot().(*Ready[C])
	if !ok || ready.Context == nil {
		c.logger.Debug("updateContext ignored", "status", c.Snapshot().Status())
		return nil
	}

	next, err := callSafely(ctx, func(ctx context.Context) (*C, error) {
		return updater(ctx, ready.Context)
	})
	if err != nil {
		return fmt.Errorf("update context: %w", err)
	}
	if next == ready.Context {
		return nil
	}

	if !c.swapReady(ready, &Ready[C]{Session: ready.Session, Context: next}) {
		return ErrStaleContext
	}
	c.logger.Debug("context updated", "user_id", ready.Session.UserID())
	return nil
}

// RefreshContext re-runs LoadContext for session (the current session when
// nil) and atomically swaps in the new session and context. It is valid only
// in AUTH_READY and returns ErrNotReady elsewhere.
//
// A failed refresh is already logged and leaves the ready state untouched, so
// callers may ignore the returned *PhaseError; it is reported only for those
// that want to surface the failure.
func (c *Core[C, D]) RefreshContext(ctx context.Context, session Session) error {
	if c.closed.Load() {
		return ErrClosed
	}

	ready, ok := c.Snapshot().(*Ready[C])
	if !ok {
		return ErrNotReady
	}
	if session == nil {
		session = ready.Session
	}

	load := c.opts.LoadContext
	if load == nil {
		if !c.swapReady(ready, &Ready[C]{Session: session, Context: ready.Context}) {
			return ErrStaleContext
		}
		return nil
	}

	loaded, err := runWithTimeout(WithSession(ctx, session), PhaseRefresh, c.timeouts.LoadContext,
		func(ctx context.Context) (*C, error) {
			return load(ctx, session)
		})
	if err != nil {
		c.logger.Error("refreshContext failed, keeping current context",
			"user_id", session.UserID(),
			"error", err,
		)
		return &PhaseError{Phase: PhaseRefresh, Err: err}
	}
	if loaded == nil {
		loaded = new(C)
	}

	if !c.swapReady(ready, &Ready[C]{Session: session, Context: loaded}) {
		c.logger.Warn("state changed during refreshContext, discarding result", "user_id", session.UserID())
		return ErrStaleContext
	}
	c.logger.Debug("context refreshed", "user_id", session.UserID())
	return nil
}

// swapReady replaces old with next if old is still current and waits for
// listeners to be notified. It reports whether the swap happened.
func (c *Core[C, D]) swapReady(old, next *Ready[C]) bool {
	c.mu.Lock()
	if c.state != State[C](old) {
		c.mu.Unlock()
		return false
	}
	c.state = next
	c.seq++
	c.mu.Unlock()

	done := make(chan struct{})
	c.enqueue(func() {
		defer close(done)
		if !c.closed.Load() {
			c.notify(c.Snapshot())
		}
	})
	<-done
	return true
}
