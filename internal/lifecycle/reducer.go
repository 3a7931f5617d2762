// ABOUTME: Pure transition function over (State, Event) pairs
// ABOUTME: Invalid pairs log a warning and return the input state value unchanged

package lifecycle

import (
	"fmt"
	"log/slog"
)

// Reducer applies events to states. It holds only a logger and performs no I/O
// beyond logging.
type Reducer[C any] struct {
	logger *slog.Logger
}

// NewReducer creates a Reducer. Pass nil logger for default.
func NewReducer[C any](logger *slog.Logger) *Reducer[C] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reducer[C]{logger: logger.With("component", "reducer")}
}

// Reduce applies event to state using the default logger.
func Reduce[C any](state State[C], event Event) State[C] {
	return NewReducer[C](nil).Reduce(state, event)
}

// Reduce returns the state that follows state after event. No-op and invalid
// transitions return state itself. It panics with ErrUnknownState when state
// is nil or not one of this package's variants.
func (r *Reducer[C]) Reduce(state State[C], event Event) State[C] {
	var next State[C]

	switch s := state.(type) {
	case *Start[C]:
		switch event.(type) {
		case StartEvent:
			next = &CheckingSession[C]{}
		default:
			return r.invalid(state, event)
		}

	case *CheckingSession[C]:
		switch e := event.(type) {
		case AuthChanged:
			next = r.sessionArrived(e.Session)
		case SessionCheckFailed:
			next = &ErrorCheckingSession[C]{Err: e.Err}
		default:
			return r.invalid(state, event)
		}

	case *SignedOut[C]:
		switch e := event.(type) {
		case AuthChanged:
			if e.Session == nil {
				return r.noop(state, event)
			}
			next = &ContextLoading[C]{Session: e.Session}
		case AuthInitiated:
			next = &Authenticating[C]{}
		default:
			return r.invalid(state, event)
		}

	case *Authenticating[C]:
		switch e := event.(type) {
		case AuthChanged:
			next = r.sessionArrived(e.Session)
		case AuthCancelled:
			next = &SignedOut[C]{}
		default:
			return r.invalid(state, event)
		}

	case *ContextLoading[C]:
		switch e := event.(type) {
		case ContextResolved[C]:
			next = &Initializing[C]{Session: s.Session, Context: e.Context}
		case ContextFailed:
			next = &ErrorContext[C]{Session: s.Session, Err: e.Err}
		case AuthChanged:
			next = r.sessionChangedMidPipeline(state, s.Session, e.Session)
		default:
			return r.invalid(state, event)
		}

	case *Initializing[C]:
		switch e := event.(type) {
		case Initialized:
			next = &Ready[C]{Session: s.Session, Context: s.Context}
		case InitializeFailed:
			next = &ErrorInitializing[C]{Session: s.Session, Context: s.Context, Err: e.Err}
		case AuthChanged:
			next = r.sessionChangedMidPipeline(state, s.Session, e.Session)
		default:
			return r.invalid(state, event)
		}

	case *Ready[C]:
		switch e := event.(type) {
		case AuthChanged:
			switch {
			case e.Session == nil:
				next = &SignedOut[C]{}
			case SameUser(s.Session, e.Session):
				// token refresh: swap the session, keep the context
				next = &Ready[C]{Session: e.Session, Context: s.Context}
			default:
				next = &ContextLoading[C]{Session: e.Session}
			}
		case AuthInitiated:
			return r.noop(state, event)
		default:
			return r.invalid(state, event)
		}

	case *ErrorCheckingSession[C]:
		switch e := event.(type) {
		case AuthChanged:
			next = r.sessionArrived(e.Session)
		case AuthInitiated:
			next = &Authenticating[C]{}
		default:
			return r.invalid(state, event)
		}

	case *ErrorContext[C], *ErrorInitializing[C]:
		switch e := event.(type) {
		case AuthChanged:
			next = r.sessionArrived(e.Session)
		default:
			return r.invalid(state, event)
		}

	default:
		panic(fmt.Errorf("%w: %T", ErrUnknownState, state))
	}

	if next == state {
		return r.noop(state, event)
	}
	r.logger.Debug("transition",
		"from", state.Status(),
		"event", event.Type(),
		"to", next.Status(),
	)
	return next
}

// sessionArrived maps AUTH_CHANGED from a session-less state.
func (r *Reducer[C]) sessionArrived(session Session) State[C] {
	if session == nil {
		return &SignedOut[C]{}
	}
	return &ContextLoading[C]{Session: session}
}

// sessionChangedMidPipeline maps AUTH_CHANGED while context loading or init is
// in flight. The same user keeps the current state so the pipeline is not
// restarted on token refresh.
func (r *Reducer[C]) sessionChangedMidPipeline(state State[C], current, incoming Session) State[C] {
	switch {
	case incoming == nil:
		return &SignedOut[C]{}
	case SameUser(current, incoming):
		return state
	default:
		return &ContextLoading[C]{Session: incoming}
	}
}

func (r *Reducer[C]) noop(state State[C], event Event) State[C] {
	r.logger.Debug("no-op transition", "state", state.Status(), "event", event.Type())
	return state
}

func (r *Reducer[C]) invalid(state State[C], event Event) State[C] {
	r.logger.Warn("invalid transition", "state", state.Status(), "event", eventName(event))
	return state
}

// eventName tolerates a nil event in logs.
func eventName(event Event) string {
	if event == nil {
		return "<nil>"
	}
	return string(event.Type())
}
