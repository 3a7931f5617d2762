// Package provider connects an authentication provider to a lifecycle Core.
//
// A provider exposes two things: a one-shot lookup of the current session and
// a stream of change notifications. Attach turns both into lifecycle events:
//
//	detach := provider.Attach(ctx, core, source, provider.Options{
//	    GetSessionTimeout: 10 * time.Second,
//	    Dedupe:            dedupe.New(time.Minute, 1024, time.Minute),
//	    Logger:            logger,
//	})
//	defer detach()
//
// # Change Mapping
//
//	INITIAL_SESSION                      ignored, the lookup covers it
//	SIGNED_IN, USER_UPDATED,
//	PASSWORD_RECOVERY,
//	MFA_CHALLENGE_VERIFIED,
//	TOKEN_REFRESHED                      AUTH_CHANGED{session}
//	SIGNED_OUT                           AUTH_CHANGED{nil}
//
// Unknown kinds are logged and dropped. A refreshed token for the same user
// reaches the lifecycle as AUTH_CHANGED, where same-user suppression keeps the
// loaded context and swaps in the new session.
package provider
