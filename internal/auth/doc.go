// Package auth provides JWT-backed sessions for the auth lifecycle.
//
// # Token Sessions
//
// A TokenSession is a verified HS256 token. Its subject is the user
// identifier, so a refreshed token for the same subject is the same user and
// the lifecycle keeps the loaded context:
//
//	verifier := auth.NewJWTVerifier(secret)
//	session, err := verifier.Issue("user-42", "ada@example.com", time.Hour)
//	core.Dispatch(lifecycle.AuthChanged{Session: session})
//
// Inside LoadContext and InitializeApp callbacks the session is available
// from the context:
//
//	func load(ctx context.Context, _ lifecycle.Session) (*Profile, error) {
//	    token := auth.FromContext(ctx)
//	    ...
//	}
//
// # Errors
//
// Session and Verify return ErrExpiredToken for expired tokens, ErrInvalidToken
// (wrapped with the parser error) for bad signatures or malformed input, and
// ErrMissingClaim when the subject is empty.
package auth
