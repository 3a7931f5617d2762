// Package dedupe suppresses repeated keys inside a time window.
//
// The provider adapter feeds it change notification IDs so a change replayed
// by the auth provider (reconnects, multiple tabs) reaches the lifecycle once.
package dedupe
