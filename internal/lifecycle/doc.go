// Package lifecycle tracks a single authentication lifecycle: resolve the
// session, load application context, run one-time initialization, and keep
// the loaded context mutable once ready.
//
// # States
//
// Exactly one State is current at any instant. Each status has its own
// variant type carrying only the fields meaningful at that stage:
//
//	START                   *Start[C]
//	CHECKING_SESSION        *CheckingSession[C]
//	AUTHENTICATING          *Authenticating[C]
//	ERROR_CHECKING_SESSION  *ErrorCheckingSession[C]  (Err)
//	SIGNED_OUT              *SignedOut[C]
//	CONTEXT_LOADING         *ContextLoading[C]        (Session)
//	ERROR_CONTEXT           *ErrorContext[C]          (Session, Err)
//	INITIALIZING            *Initializing[C]          (Session, Context)
//	ERROR_INITIALIZING      *ErrorInitializing[C]     (Session, Context, Err)
//	AUTH_READY              *Ready[C]                 (Session, Context or nil)
//
// State and Event are sealed: only this package can add variants.
//
// # Reducer
//
// Reduce is a pure function of (state, event). Pairs outside the transition
// table are invalid: a warning is logged and the input state value itself is
// returned, so callers detect no-ops with ==.
//
// # Core
//
// Core owns the current state, the listener set and the in-flight tasks:
//
//	core := lifecycle.New(lifecycle.Options[Profile, View]{
//	    LoadContext:   loadProfile,
//	    InitializeApp: warmCaches,
//	    Logger:        logger,
//	})
//	defer core.Close()
//
//	unsubscribe := core.Subscribe(func(s lifecycle.State[Profile], app lifecycle.AppState[Profile, View]) {
//	    render(app)
//	})
//	core.Dispatch(lifecycle.StartEvent{})
//
// Every applied event notifies all listeners, even when the reducer returned
// the same state. Side effects are edge-triggered: entering AUTHENTICATING arms
// a timer that dispatches AUTH_CANCELLED, entering CONTEXT_LOADING runs
// LoadContext, and entering INITIALIZING from CONTEXT_LOADING runs
// InitializeApp. Each effect runs as a task racing its timeout; its result is
// applied only while the state it was started for is still current.
//
// Events go through a mailbox drained in arrival order. Dispatch returns only
// once its event is applied and every listener has seen it, waiting on another
// goroutine's drain if one is active. Listeners and the Observer use Post,
// which queues without waiting.
package lifecycle
