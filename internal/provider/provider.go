// ABOUTME: Bridges an auth provider's session API onto the lifecycle event vocabulary
// ABOUTME: Resolves the initial session under a deadline and forwards deduplicated changes

package provider

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/authflow/internal/dedupe"
	"github.com/2389/authflow/internal/lifecycle"
)

// DefaultGetSessionTimeout bounds the initial session lookup.
const DefaultGetSessionTimeout = 10 * time.Second

// ErrGetSessionTimeout is reported through SESSION_CHECK_FAILED when the
// initial lookup does not finish in time.
var ErrGetSessionTimeout = errors.New("provider: getSession timeout")

// Kind is an auth provider change notification type.
type Kind string

const (
	KindInitialSession       Kind = "INITIAL_SESSION"
	KindSignedIn             Kind = "SIGNED_IN"
	KindSignedOut            Kind = "SIGNED_OUT"
	KindTokenRefreshed       Kind = "TOKEN_REFRESHED"
	KindUserUpdated          Kind = "USER_UPDATED"
	KindPasswordRecovery     Kind = "PASSWORD_RECOVERY"
	KindMFAChallengeVerified Kind = "MFA_CHALLENGE_VERIFIED"
)

// Change is one notification from the provider. ID, when set, identifies the
// notification so replays can be suppressed.
type Change struct {
	ID      string
	Kind    Kind
	Session lifecycle.Session
}

// Source is the slice of an auth provider the adapter needs.
type Source interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (lifecycle.Session, error)
	// OnChange registers fn for change notifications and returns a function
	// that removes it.
	OnChange(fn func(Change)) (unsubscribe func())
}

// Dispatcher receives lifecycle events. *lifecycle.Core satisfies it.
type Dispatcher interface {
	Dispatch(event lifecycle.Event)
}

// Options configures Attach.
type Options struct {
	// GetSessionTimeout bounds the initial lookup; zero uses the default.
	GetSessionTimeout time.Duration
	// Dedupe, when set, drops changes whose ID was already forwarded.
	Dedupe *dedupe.Window
	Logger *slog.Logger
}

// EventFor maps a change to the lifecycle event it produces. The second
// result is false for changes that produce no event.
func EventFor(c Change) (lifecycle.Event, bool) {
	switch c.Kind {
	case KindSignedIn, KindUserUpdated, KindPasswordRecovery, KindMFAChallengeVerified, KindTokenRefreshed:
		// TOKEN_REFRESHED keeps the session so same-user suppression applies
		return lifecycle.AuthChanged{Session: c.Session}, true
	case KindSignedOut:
		return lifecycle.AuthChanged{}, true
	default:
		return nil, false
	}
}

// Attach subscribes d to src, dispatches START, then resolves the initial
// session in the background: a session (or none) becomes AUTH_CHANGED, an
// error or timeout becomes SESSION_CHECK_FAILED. The returned detach function
// unsubscribes, abandons a pending lookup and waits for it to return.
func Attach(ctx context.Context, d Dispatcher, src Source, opts Options) (detach func()) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "provider")

	timeout := opts.GetSessionTimeout
	if timeout <= 0 {
		timeout = DefaultGetSessionTimeout
	}

	unsubscribe := src.OnChange(func(c Change) {
		if c.ID != "" && opts.Dedupe != nil && opts.Dedupe.Seen(c.ID) {
			logger.Debug("dropping duplicate change", "id", c.ID, "kind", c.Kind)
			return
		}
		event, ok := EventFor(c)
		if !ok {
			if c.Kind != KindInitialSession {
				logger.Warn("unhandled auth change", "kind", c.Kind)
			}
			return
		}
		logger.Debug("forwarding change", "kind", c.Kind)
		d.Dispatch(event)
	})

	d.Dispatch(lifecycle.StartEvent{})

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		event := resolveInitial(ctx, src, timeout, logger)
		if event == nil {
			return
		}
		d.Dispatch(event)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			cancel()
			wg.Wait()
		})
	}
}

type lookup struct {
	session lifecycle.Session
	err     error
}

// resolveInitial returns nil when ctx was cancelled before the lookup settled.
func resolveInitial(ctx context.Context, src Source, timeout time.Duration, logger *slog.Logger) lifecycle.Event {
	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan lookup, 1)
	go func() {
		s, err := src.GetSession(lookupCtx)
		done <- lookup{session: s, err: err}
	}()

	var r lookup
	select {
	case r = <-done:
	case <-lookupCtx.Done():
	}

	if ctx.Err() != nil {
		return nil
	}
	if errors.Is(lookupCtx.Err(), context.DeadlineExceeded) {
		logger.Warn("initial session lookup timed out", "after", timeout)
		return lifecycle.SessionCheckFailed{Err: ErrGetSessionTimeout}
	}
	if r.err != nil {
		logger.Error("initial session lookup failed", "error", r.err)
		return lifecycle.SessionCheckFailed{Err: r.err}
	}
	return lifecycle.AuthChanged{Session: r.session}
}
