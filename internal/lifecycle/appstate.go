// ABOUTME: Consumer-facing projection of the core state
// ABOUTME: Recomputed on every read and notification, never stored

package lifecycle

// AppState is what consumers render. When the core state is AUTH_READY and a
// derivation function is configured, Custom holds its result and Derived is
// true; State always holds the core state, so session and context stay
// reachable.
type AppState[C, D any] struct {
	State   State[C]
	Custom  D
	Derived bool
}

// Status returns the core status underneath the projection.
func (a AppState[C, D]) Status() Status {
	if a.State == nil {
		return ""
	}
	return a.State.Status()
}

// Session returns the session carried by the underlying state, if any.
func (a AppState[C, D]) Session() Session {
	if a.State == nil {
		return nil
	}
	return SessionOf(a.State)
}

// Context returns the context carried by the underlying state, if any.
func (a AppState[C, D]) Context() *C {
	if a.State == nil {
		return nil
	}
	return ContextOf(a.State)
}

// Snapshot is the input handed to InitializeApp.
type Snapshot[C any] struct {
	Session Session
	Context *C
}

func projectAppState[C, D any](state State[C], derive func(*Ready[C]) D) AppState[C, D] {
	app := AppState[C, D]{State: state}
	if ready, ok := state.(*Ready[C]); ok && derive != nil {
		app.Custom = derive(ready)
		app.Derived = true
	}
	return app
}
