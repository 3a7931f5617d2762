// ABOUTME: Status and EventType enumerations for the auth lifecycle
// ABOUTME: Values match the wire names used in logs, journals and flowcharts

package lifecycle

// Status identifies a lifecycle stage.
type Status string

const (
	StatusStart                Status = "START"
	StatusCheckingSession      Status = "CHECKING_SESSION"
	StatusAuthenticating       Status = "AUTHENTICATING"
	StatusErrorCheckingSession Status = "ERROR_CHECKING_SESSION"
	StatusSignedOut            Status = "SIGNED_OUT"
	StatusContextLoading       Status = "CONTEXT_LOADING"
	StatusErrorContext         Status = "ERROR_CONTEXT"
	StatusInitializing         Status = "INITIALIZING"
	StatusErrorInitializing    Status = "ERROR_INITIALIZING"
	StatusReady                Status = "AUTH_READY"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusStart,
	StatusCheckingSession,
	StatusAuthenticating,
	StatusErrorCheckingSession,
	StatusSignedOut,
	StatusContextLoading,
	StatusErrorContext,
	StatusInitializing,
	StatusErrorInitializing,
	StatusReady,
}

// IsError reports whether the status is one of the ERROR_* stages.
func (s Status) IsError() bool {
	switch s {
	case StatusErrorCheckingSession, StatusErrorContext, StatusErrorInitializing:
		return true
	default:
		return false
	}
}

// HasSession reports whether states with this status carry a session.
func (s Status) HasSession() bool {
	switch s {
	case StatusContextLoading, StatusErrorContext, StatusInitializing, StatusErrorInitializing, StatusReady:
		return true
	default:
		return false
	}
}

// EventType identifies an event.
type EventType string

const (
	EventStart                EventType = "START"
	EventAuthChanged          EventType = "AUTH_CHANGED"
	EventAuthInitiated        EventType = "AUTH_INITIATED"
	EventAuthCancelled        EventType = "AUTH_CANCELLED"
	EventContextResolved      EventType = "CONTEXT_RESOLVED"
	EventInitialized          EventType = "INITIALIZED"
	EventErrorCheckingSession EventType = "ERROR_CHECKING_SESSION"
	EventErrorContext         EventType = "ERROR_CONTEXT"
	EventErrorInitializing    EventType = "ERROR_INITIALIZING"
)

// EventTypes lists every event type.
var EventTypes = []EventType{
	EventStart,
	EventAuthChanged,
	EventAuthInitiated,
	EventAuthCancelled,
	EventContextResolved,
	EventInitialized,
	EventErrorCheckingSession,
	EventErrorContext,
	EventErrorInitializing,
}
