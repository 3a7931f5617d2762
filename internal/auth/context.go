// ABOUTME: Access to the token session carried by lifecycle callback contexts
// ABOUTME: Lets context loaders read the verified token without a type switch

package auth

import (
	"context"

	"github.com/2389/authflow/internal/lifecycle"
)

// FromContext returns the TokenSession the lifecycle attached to ctx, or nil
// when the context carries no session or a session of another type.
func FromContext(ctx context.Context) *TokenSession {
	s, ok := lifecycle.SessionFromContext(ctx)
	if !ok {
		return nil
	}
	ts, _ := s.(*TokenSession)
	return ts
}
