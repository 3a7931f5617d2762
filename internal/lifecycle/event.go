// ABOUTME: Sealed Event variants consumed by the reducer
// ABOUTME: Only ContextResolved is generic because it carries the application context

package lifecycle

// Event is an input to the reducer. Events are constructed by callers and
// consumed once.
type Event interface {
	Type() EventType
	event()
}

// StartEvent is dispatched exactly once at startup.
type StartEvent struct{}

// AuthChanged reports the provider's current session; nil means signed out.
type AuthChanged struct {
	Session Session
}

// AuthInitiated marks the start of a user-driven sign-in flow.
type AuthInitiated struct{}

// AuthCancelled abandons a sign-in flow.
type AuthCancelled struct{}

// ContextResolved carries the loaded application context. A ContextResolved
// whose type parameter differs from the Core's context type is an invalid
// transition.
type ContextResolved[C any] struct {
	Context *C
}

// Initialized reports that InitializeApp completed.
type Initialized struct{}

// SessionCheckFailed reports that the session could not be resolved.
type SessionCheckFailed struct {
	Err error
}

// ContextFailed reports that LoadContext failed or timed out.
type ContextFailed struct {
	Err error
}

// InitializeFailed reports that InitializeApp failed or timed out.
type InitializeFailed struct {
	Err error
}

func (StartEvent) Type() EventType         { return EventStart }
func (AuthChanged) Type() EventType        { return EventAuthChanged }
func (AuthInitiated) Type() EventType      { return EventAuthInitiated }
func (AuthCancelled) Type() EventType      { return EventAuthCancelled }
func (ContextResolved[C]) Type() EventType { return EventContextResolved }
func (Initialized) Type() EventType        { return EventInitialized }
func (SessionCheckFailed) Type() EventType { return EventErrorCheckingSession }
func (ContextFailed) Type() EventType      { return EventErrorContext }
func (InitializeFailed) Type() EventType   { return EventErrorInitializing }

func (StartEvent) event()         {}
func (AuthChanged) event()        {}
func (AuthInitiated) event()      {}
func (AuthCancelled) event()      {}
func (ContextResolved[C]) event() {}
func (Initialized) event()        {}
func (SessionCheckFailed) event() {}
func (ContextFailed) event()      {}
func (InitializeFailed) event()   {}
