// ABOUTME: Sealed State variants, one per lifecycle status
// ABOUTME: Each variant carries only the fields meaningful at its stage

package lifecycle

// State is the current lifecycle stage. C is the application context type;
// contexts are carried as *C so replacements are detectable by pointer.
type State[C any] interface {
	Status() Status
	state(*C)
}

// Start is the initial state before START is dispatched.
type Start[C any] struct{}

// CheckingSession resolves whether a session exists.
type CheckingSession[C any] struct{}

// Authenticating is a user-initiated sign-in with no session yet.
type Authenticating[C any] struct{}

// ErrorCheckingSession records a failed session resolution.
type ErrorCheckingSession[C any] struct {
	Err error
}

// SignedOut confirms there is no session.
type SignedOut[C any] struct{}

// ContextLoading has a session and is fetching the application context.
type ContextLoading[C any] struct {
	Session Session
}

// ErrorContext records a failed context fetch.
type ErrorContext[C any] struct {
	Session Session
	Err     error
}

// Initializing has loaded the context and is running one-time init.
type Initializing[C any] struct {
	Session Session
	Context *C
}

// ErrorInitializing records a failed init.
type ErrorInitializing[C any] struct {
	Session Session
	Context *C
	Err     error
}

// Ready is fully authenticated. Context may be nil and is mutable through
// Core.UpdateContext and Core.RefreshContext.
type Ready[C any] struct {
	Session Session
	Context *C
}

func (*Start[C]) Status() Status                { return StatusStart }
func (*CheckingSession[C]) Status() Status      { return StatusCheckingSession }
func (*Authenticating[C]) Status() Status       { return StatusAuthenticating }
func (*ErrorCheckingSession[C]) Status() Status { return StatusErrorCheckingSession }
func (*SignedOut[C]) Status() Status            { return StatusSignedOut }
func (*ContextLoading[C]) Status() Status       { return StatusContextLoading }
func (*ErrorContext[C]) Status() Status         { return StatusErrorContext }
func (*Initializing[C]) Status() Status         { return StatusInitializing }
func (*ErrorInitializing[C]) Status() Status    { return StatusErrorInitializing }
func (*Ready[C]) Status() Status                { return StatusReady }

func (*Start[C]) state(*C)                {}
func (*CheckingSession[C]) state(*C)      {}
func (*Authenticating[C]) state(*C)       {}
func (*ErrorCheckingSession[C]) state(*C) {}
func (*SignedOut[C]) state(*C)            {}
func (*ContextLoading[C]) state(*C)       {}
func (*ErrorContext[C]) state(*C)         {}
func (*Initializing[C]) state(*C)         {}
func (*ErrorInitializing[C]) state(*C)    {}
func (*Ready[C]) state(*C)                {}

// SessionOf returns the session carried by s, or nil before CONTEXT_LOADING.
func SessionOf[C any](s State[C]) Session {
	switch v := s.(type) {
	case *ContextLoading[C]:
		return v.Session
	case *ErrorContext[C]:
		return v.Session
	case *Initializing[C]:
		return v.Session
	case *ErrorInitializing[C]:
		return v.Session
	case *Ready[C]:
		return v.Session
	default:
		return nil
	}
}

// ContextOf returns the context carried by s, or nil before INITIALIZING.
func ContextOf[C any](s State[C]) *C {
	switch v := s.(type) {
	case *Initializing[C]:
		return v.Context
	case *ErrorInitializing[C]:
		return v.Context
	case *Ready[C]:
		return v.Context
	default:
		return nil
	}
}

// ErrOf returns the error carried by an ERROR_* state, or nil.
func ErrOf[C any](s State[C]) error {
	switch v := s.(type) {
	case *ErrorCheckingSession[C]:
		return v.Err
	case *ErrorContext[C]:
		return v.Err
	case *ErrorInitializing[C]:
		return v.Err
	default:
		return nil
	}
}
