// ABOUTME: Error taxonomy for the auth lifecycle
// ABOUTME: Phase failures, timeouts and programming-error sentinels

package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownState is the panic value for a state outside the known set.
	ErrUnknownState = errors.New("lifecycle: unknown state")
	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("lifecycle: timeout")
	// ErrNotReady is returned by RefreshContext outside AUTH_READY.
	ErrNotReady = errors.New("lifecycle: not ready")
	// ErrStaleContext is returned when the state changed while an updater or
	// refresh was running, so its result was discarded.
	ErrStaleContext = errors.New("lifecycle: state changed during context update")
	// ErrClosed is returned once the Core has been closed.
	ErrClosed = errors.New("lifecycle: core closed")
	// ErrPanic wraps a panic recovered from an external callback.
	ErrPanic = errors.New("lifecycle: callback panicked")
)

// Phase names a side-effecting step of the pipeline.
type Phase string

const (
	PhaseCheckSession Phase = "check_session"
	PhaseLoadContext  Phase = "load_context"
	PhaseInitialize   Phase = "initialize"
	PhaseRefresh      Phase = "refresh_context"
)

// PhaseError wraps the failure of one pipeline phase.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a phase that lost the race against its deadline.
type TimeoutError struct {
	Phase Phase
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timeout after %s", e.Phase, e.After)
}

// Is makes errors.Is(err, ErrTimeout) match any TimeoutError.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
