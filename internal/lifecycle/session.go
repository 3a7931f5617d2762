// ABOUTME: Session abstraction and same-user equality
// ABOUTME: Also carries the session through callback contexts

package lifecycle

import "context"

// Session is an authenticated principal supplied by the auth provider.
// Implementations are opaque to this package beyond the user identifier.
type Session interface {
	UserID() string
}

// SameUser reports whether two sessions denote the same identity: both nil,
// or both non-nil with equal user identifiers.
func SameUser(a, b Session) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UserID() == b.UserID()
}

// sessionContextKey is the key type for storing a Session in context.Context.
type sessionContextKey struct{}

// WithSession returns a new context with the session attached.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext retrieves the session attached by the Core to the
// context passed into LoadContext and InitializeApp.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(Session)
	return s, ok && s != nil
}
