// ABOUTME: Tests for the Core orchestrator
// ABOUTME: Pipeline effects, timeouts, stale results, listeners, context mutation and shutdown

package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestCore(t *testing.T, opts Options[profile, view]) *Core[profile, view] {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	core := New(opts)
	t.Cleanup(core.Close)
	return core
}

func waitForStatus(t *testing.T, core *Core[profile, view], want Status) State[profile] {
	t.Helper()
	require.Eventually(t, func() bool {
		return core.Snapshot().Status() == want
	}, waitFor, tick, "expected status %s", want)
	return core.Snapshot()
}

func TestCore_InitialState(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{})

	assert.Equal(t, StatusStart, core.Snapshot().Status())
	assert.Equal(t, StatusStart, core.AppState().Status())
	assert.NotEmpty(t, core.RunID())
}

func TestCore_FullPipeline(t *testing.T) {
	var loads, inits atomic.Int32
	s := session("u1", "t1")

	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, got Session) (*profile, error) {
			loads.Add(1)
			assert.Same(t, s, got)
			return &profile{Role: "admin"}, nil
		},
		InitializeApp: func(ctx context.Context, snap Snapshot[profile]) error {
			inits.Add(1)
			assert.Equal(t, "admin", snap.Context.Role)
			return nil
		},
	})

	core.Dispatch(StartEvent{})
	assert.Equal(t, StatusCheckingSession, core.Snapshot().Status())

	core.Dispatch(AuthChanged{Session: s})
	state := waitForStatus(t, core, StatusReady)

	ready := state.(*Ready[profile])
	assert.Same(t, s, ready.Session)
	require.NotNil(t, ready.Context)
	assert.Equal(t, "admin", ready.Context.Role)
	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, int32(1), inits.Load())
}

func TestCore_LoadContextFailure(t *testing.T) {
	var inits atomic.Int32
	boom := errors.New("profile service down")

	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			return nil, boom
		},
		InitializeApp: func(ctx context.Context, snap Snapshot[profile]) error {
			inits.Add(1)
			return nil
		},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})

	state := waitForStatus(t, core, StatusErrorContext)
	assert.ErrorIs(t, ErrOf(state), boom)
	assert.Equal(t, int32(0), inits.Load())
}

func TestCore_NoCallbacksReachesReadyWithEmptyContext(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})

	state := waitForStatus(t, core, StatusReady)
	ctx := ContextOf(state)
	require.NotNil(t, ctx)
	assert.Equal(t, profile{}, *ctx)
}

func TestCore_InitializeFailureKeepsContext(t *testing.T) {
	boom := errors.New("migrations failed")

	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			return &profile{Role: "viewer"}, nil
		},
		InitializeApp: func(ctx context.Context, snap Snapshot[profile]) error {
			return boom
		},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})

	state := waitForStatus(t, core, StatusErrorInitializing)
	assert.ErrorIs(t, ErrOf(state), boom)
	assert.Equal(t, "viewer", ContextOf(state).Role)
}

func TestCore_LoadContextTimeout(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		Timeouts: Timeouts{LoadContext: 20 * time.Millisecond},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})

	state := waitForStatus(t, core, StatusErrorContext)
	err := ErrOf(state)
	assert.ErrorIs(t, err, ErrTimeout)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, PhaseLoadContext, timeoutErr.Phase)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.After)
}

func TestCore_InitializeTimeout(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{
		InitializeApp: func(ctx context.Context, snap Snapshot[profile]) error {
			<-ctx.Done()
			return nil
		},
		Timeouts: Timeouts{Initialize: 20 * time.Millisecond},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})

	state := waitForStatus(t, core, StatusErrorInitializing)
	assert.ErrorIs(t, ErrOf(state), ErrTimeout)
}

func TestCore_CallbackPanicBecomesError(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			panic("nil map write")
		},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})

	state := waitForStatus(t, core, StatusErrorContext)
	assert.ErrorIs(t, ErrOf(state), ErrPanic)
}

func TestCore_CallbacksSeeSessionInContext(t *testing.T) {
	s := session("u1", "")
	var sawSession atomic.Bool

	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, _ Session) (*profile, error) {
			got, ok := SessionFromContext(ctx)
			sawSession.Store(ok && got == Session(s))
			return &profile{}, nil
		},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: s})
	waitForStatus(t, core, StatusReady)

	assert.True(t, sawSession.Load())
}

func TestCore_NotifiesEveryDispatch(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{})
	rec := &recorder{}
	core.Subscribe(rec.listen)

	core.Dispatch(StartEvent{})
	assert.Equal(t, []Status{StatusCheckingSession}, rec.seen())

	// invalid in CHECKING_SESSION, still notifies with the unchanged state
	core.Dispatch(AuthCancelled{})
	assert.Equal(t, []Status{StatusCheckingSession, StatusCheckingSession}, rec.seen())
}

func TestCore_NotificationOrderFollowsPipeline(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{})
	rec := &recorder{}
	core.Subscribe(rec.listen)

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})
	waitForStatus(t, core, StatusReady)

	require.Eventually(t, func() bool { return rec.count() == 4 }, waitFor, tick)
	assert.Equal(t, []Status{
		StatusCheckingSession,
		StatusContextLoading,
		StatusInitializing,
		StatusReady,
	}, rec.seen())
}

func TestCore_DeriveAppState(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			return &profile{Role: "admin"}, nil
		},
		DeriveAppState: func(ready *Ready[profile]) view {
			return view{Label: ready.Session.UserID() + ":" + ready.Context.Role}
		},
	})

	core.Dispatch(StartEvent{})
	assert.False(t, core.AppState().Derived)

	core.Dispatch(AuthChanged{Session: session("u1", "")})
	waitForStatus(t, core, StatusReady)

	app := core.AppState()
	assert.True(t, app.Derived)
	assert.Equal(t, "u1:admin", app.Custom.Label)
	assert.Equal(t, StatusReady, app.Status())
	assert.Equal(t, "u1", app.Session().UserID())
	assert.Equal(t, "admin", app.Context().Role)
}

func TestCore_ListenerPanicDoesNotStopOthers(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{})
	rec := &recorder{}

	core.Subscribe(func(State[profile], AppState[profile, view]) { panic("bad listener") })
	core.Subscribe(rec.listen)

	core.Dispatch(StartEvent{})
	assert.Equal(t, 1, rec.count())
}

func TestCore_Unsubscribe(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{})
	rec := &recorder{}

	unsubscribe := core.Subscribe(rec.listen)
	core.Dispatch(StartEvent{})
	unsubscribe()
	unsubscribe()
	core.Dispatch(AuthChanged{})

	assert.Equal(t, 1, rec.count())
}

func TestCore_PostFromListenerIsQueued(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{})
	rec := &recorder{}

	var once sync.Once
	core.Subscribe(func(s State[profile], _ AppState[profile, view]) {
		if s.Status() == StatusCheckingSession {
			once.Do(func() { core.Post(AuthChanged{}) })
		}
	})
	core.Subscribe(rec.listen)

	core.Dispatch(StartEvent{})

	// the nested dispatch runs after every listener saw CHECKING_SESSION
	assert.Equal(t, []Status{StatusCheckingSession, StatusSignedOut}, rec.seen())
	assert.Equal(t, StatusSignedOut, core.Snapshot().Status())
}

func TestCore_DispatchWaitsForActiveDrain(t *testing.T) {
	proceed := make(chan struct{})
	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			<-proceed
			return &profile{Role: "member"}, nil
		},
	})

	// the load result is applied on the task goroutine, which then blocks
	// inside this listener while notifying INITIALIZING
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	core.Subscribe(func(s State[profile], _ AppState[profile, view]) {
		if s.Status() == StatusInitializing {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
	})
	rec := &recorder{}
	core.Subscribe(rec.listen)

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})
	close(proceed)
	<-entered

	type result struct {
		status Status
		seen   []Status
	}
	returned := make(chan result, 1)
	go func() {
		core.Dispatch(AuthChanged{})
		returned <- result{status: core.Snapshot().Status(), seen: rec.seen()}
	}()

	select {
	case <-returned:
		t.Fatal("Dispatch returned before its event was applied")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	var got result
	select {
	case got = <-returned:
	case <-time.After(waitFor):
		t.Fatal("Dispatch did not return after the drain resumed")
	}
	assert.Equal(t, StatusSignedOut, got.status)
	require.NotEmpty(t, got.seen)
	assert.Equal(t, StatusSignedOut, got.seen[len(got.seen)-1])
}

func TestCore_UpdateContextNotifiesBeforeReturning(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			return &profile{Role: "member"}, nil
		},
	})
	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})
	waitForStatus(t, core, StatusReady)

	rec := &recorder{}
	core.Subscribe(rec.listen)

	err := core.UpdateContext(context.Background(), func(_ context.Context, cur *profile) (*profile, error) {
		return &profile{Role: cur.Role, Count: cur.Count + 1}, nil
	})
	require.NoError(t, err)

	require.GreaterOrEqual(t, rec.count(), 1)
	assert.Equal(t, 1, rec.last().Context().Count)
}

func TestStateAccessorsInferContextType(t *testing.T) {
	s := session("u1", "")
	ctx := &profile{Role: "member"}
	boom := errors.New("boom")

	var state State[profile] = &Ready[profile]{Session: s, Context: ctx}
	assert.Equal(t, "u1", SessionOf(state).UserID())
	assert.Same(t, ctx, ContextOf(state))
	assert.NoError(t, ErrOf(state))

	failed := &ErrorInitializing[profile]{Session: s, Context: ctx, Err: boom}
	assert.Equal(t, "u1", SessionOf(failed).UserID())
	assert.Same(t, ctx, ContextOf(failed))
	assert.ErrorIs(t, ErrOf(failed), boom)

	assert.Nil(t, SessionOf(&SignedOut[profile]{}))
	assert.Nil(t, ContextOf(&ContextLoading[profile]{Session: s}))
}

func TestCore_AuthTimeoutCancels(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{
		Timeouts: Timeouts{Authenticating: 20 * time.Millisecond},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{})
	require.Equal(t, StatusSignedOut, core.Snapshot().Status())

	core.BeginAuth()
	assert.Equal(t, StatusAuthenticating, core.Snapshot().Status())

	waitForStatus(t, core, StatusSignedOut)
}

func TestCore_AuthTimerStopsWhenSessionArrives(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{
		Timeouts: Timeouts{Authenticating: 30 * time.Millisecond},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{})
	core.BeginAuth()
	core.Dispatch(AuthChanged{Session: session("u1", "")})
	waitForStatus(t, core, StatusReady)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, StatusReady, core.Snapshot().Status())
}

func TestCore_StaleTimerDoesNotCancelNewAttempt(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{
		Timeouts: Timeouts{Authenticating: 60 * time.Millisecond},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{})
	core.BeginAuth()
	core.CancelAuth()
	require.Equal(t, StatusSignedOut, core.Snapshot().Status())

	time.Sleep(30 * time.Millisecond)
	core.BeginAuth()

	// the first attempt's deadline passes while the second is still live
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, StatusAuthenticating, core.Snapshot().Status())

	waitForStatus(t, core, StatusSignedOut)
}

func TestCore_StaleLoadResultIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	var firstCancelled atomic.Bool

	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			if s.UserID() == "u1" {
				<-release
				firstCancelled.Store(ctx.Err() != nil)
				return &profile{Role: "stale"}, nil
			}
			return &profile{Role: "fresh"}, nil
		},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})
	require.Equal(t, StatusContextLoading, core.Snapshot().Status())

	core.Dispatch(AuthChanged{Session: session("u2", "")})
	state := waitForStatus(t, core, StatusReady)

	close(release)
	require.Eventually(t, firstCancelled.Load, waitFor, tick)

	time.Sleep(20 * time.Millisecond)
	current := core.Snapshot()
	assert.Same(t, state, current)
	assert.Equal(t, "u2", SessionOf(current).UserID())
	assert.Equal(t, "fresh", ContextOf(current).Role)
}

func TestCore_SameUserDuringLoadDoesNotRestart(t *testing.T) {
	release := make(chan struct{})
	var loads atomic.Int32

	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			loads.Add(1)
			<-release
			return &profile{Role: "admin"}, nil
		},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "t1")})
	core.Dispatch(AuthChanged{Session: session("u1", "t2")})
	close(release)

	waitForStatus(t, core, StatusReady)
	assert.Equal(t, int32(1), loads.Load())
}

func TestCore_TokenRefreshInReadyKeepsContext(t *testing.T) {
	var loads atomic.Int32
	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			loads.Add(1)
			return &profile{Role: "admin"}, nil
		},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "t1")})
	before := waitForStatus(t, core, StatusReady)

	refreshed := session("u1", "t2")
	core.Dispatch(AuthChanged{Session: refreshed})

	after := core.Snapshot()
	assert.Equal(t, StatusReady, after.Status())
	assert.Same(t, refreshed, SessionOf(after))
	assert.Same(t, ContextOf(before), ContextOf(after))
	assert.Equal(t, int32(1), loads.Load())
}

func TestCore_SignOutFromReady(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})
	waitForStatus(t, core, StatusReady)

	core.Dispatch(AuthChanged{})
	assert.Equal(t, StatusSignedOut, core.Snapshot().Status())
}

func TestCore_ErrorRecovery(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)

	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			if fail.Load() {
				return nil, errors.New("transient")
			}
			return &profile{Role: "admin"}, nil
		},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})
	waitForStatus(t, core, StatusErrorContext)

	fail.Store(false)
	core.Dispatch(AuthChanged{Session: session("u1", "")})
	waitForStatus(t, core, StatusReady)
}

func TestCore_Observer(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []Transition[profile]
	)

	core := newTestCore(t, Options[profile, view]{
		Observer: func(tr Transition[profile]) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, tr)
		},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthInitiated{})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, transitions, 2)

	assert.Equal(t, uint64(1), transitions[0].Seq)
	assert.Equal(t, StatusStart, transitions[0].From.Status())
	assert.Equal(t, StatusCheckingSession, transitions[0].To.Status())
	assert.False(t, transitions[0].Noop)

	assert.Equal(t, uint64(2), transitions[1].Seq)
	assert.Equal(t, EventAuthInitiated, transitions[1].Event.Type())
	assert.True(t, transitions[1].Noop)
	assert.False(t, transitions[1].At.IsZero())
}

func TestCore_ObserverSeesTaskGeneration(t *testing.T) {
	var gens []uint64
	var mu sync.Mutex

	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			return &profile{}, nil
		},
		Observer: func(tr Transition[profile]) {
			if tr.Event.Type() == EventContextResolved {
				mu.Lock()
				gens = append(gens, tr.Generation)
				mu.Unlock()
			}
		},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})
	waitForStatus(t, core, StatusReady)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1}, gens)
}

func TestCore_UpdateContext(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			return &profile{Role: "admin", Count: 1}, nil
		},
	})
	rec := &recorder{}

	t.Run("not ready is a no-op", func(t *testing.T) {
		core.Subscribe(rec.listen)
		called := false
		err := core.UpdateContext(context.Background(), func(_ context.Context, cur *profile) (*profile, error) {
			called = true
			return &profile{}, nil
		})
		require.NoError(t, err)
		assert.False(t, called)
		assert.Equal(t, 0, rec.count())
		assert.Equal(t, StatusStart, core.Snapshot().Status())
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})
	before := waitForStatus(t, core, StatusReady)
	require.Eventually(t, func() bool { return rec.count() == 4 }, waitFor, tick)

	t.Run("same reference does not notify", func(t *testing.T) {
		err := core.UpdateContext(context.Background(), func(_ context.Context, cur *profile) (*profile, error) {
			return cur, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 4, rec.count())
		assert.Same(t, before, core.Snapshot())
	})

	t.Run("new reference replaces and notifies", func(t *testing.T) {
		err := core.UpdateContext(context.Background(), func(_ context.Context, cur *profile) (*profile, error) {
			next := *cur
			next.Count++
			return &next, nil
		})
		require.NoError(t, err)

		require.Eventually(t, func() bool { return rec.count() == 5 }, waitFor, tick)
		after := core.Snapshot()
		assert.Equal(t, StatusReady, after.Status())
		assert.Same(t, SessionOf(before), SessionOf(after))
		assert.Equal(t, 2, ContextOf(after).Count)
		assert.Equal(t, 1, ContextOf(before).Count)
		assert.Equal(t, 2, rec.last().Context().Count)
	})

	t.Run("updater error leaves state", func(t *testing.T) {
		current := core.Snapshot()
		boom := errors.New("validation")
		err := core.UpdateContext(context.Background(), func(context.Context, *profile) (*profile, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Same(t, current, core.Snapshot())
	})

	t.Run("updater panic is recovered", func(t *testing.T) {
		err := core.UpdateContext(context.Background(), func(context.Context, *profile) (*profile, error) {
			panic("oops")
		})
		assert.ErrorIs(t, err, ErrPanic)
	})
}

func TestCore_UpdateContextStale(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			return &profile{Role: "admin"}, nil
		},
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})
	waitForStatus(t, core, StatusReady)

	err := core.UpdateContext(context.Background(), func(_ context.Context, cur *profile) (*profile, error) {
		core.Dispatch(AuthChanged{})
		return &profile{Role: "late"}, nil
	})
	assert.ErrorIs(t, err, ErrStaleContext)
	assert.Equal(t, StatusSignedOut, core.Snapshot().Status())
}

func TestCore_RefreshContext(t *testing.T) {
	var (
		fail  atomic.Bool
		loads atomic.Int32
	)

	core := newTestCore(t, Options[profile, view]{
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			n := loads.Add(1)
			if fail.Load() {
				return nil, errors.New("upstream 503")
			}
			return &profile{Role: "admin", Count: int(n)}, nil
		},
	})

	t.Run("not ready", func(t *testing.T) {
		err := core.RefreshContext(context.Background(), nil)
		assert.ErrorIs(t, err, ErrNotReady)
	})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "t1")})
	waitForStatus(t, core, StatusReady)

	rec := &recorder{}
	core.Subscribe(rec.listen)

	t.Run("success swaps session and context", func(t *testing.T) {
		fresh := session("u1", "t2")
		require.NoError(t, core.RefreshContext(context.Background(), fresh))

		state := core.Snapshot()
		assert.Equal(t, StatusReady, state.Status())
		assert.Same(t, fresh, SessionOf(state))
		assert.Equal(t, 2, ContextOf(state).Count)
		require.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, tick)
	})

	t.Run("nil session reuses current", func(t *testing.T) {
		current := SessionOf(core.Snapshot())
		require.NoError(t, core.RefreshContext(context.Background(), nil))
		assert.Same(t, current, SessionOf(core.Snapshot()))
		assert.Equal(t, 3, ContextOf(core.Snapshot()).Count)
	})

	t.Run("failure keeps ready state", func(t *testing.T) {
		fail.Store(true)
		before := core.Snapshot()

		err := core.RefreshContext(context.Background(), nil)
		var phaseErr *PhaseError
		require.ErrorAs(t, err, &phaseErr)
		assert.Equal(t, PhaseRefresh, phaseErr.Phase)
		assert.Same(t, before, core.Snapshot())
	})
}

func TestCore_RefreshContextWithoutLoader(t *testing.T) {
	core := newTestCore(t, Options[profile, view]{})

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "t1")})
	before := waitForStatus(t, core, StatusReady)

	fresh := session("u1", "t2")
	require.NoError(t, core.RefreshContext(context.Background(), fresh))
	after := core.Snapshot()
	assert.Same(t, fresh, SessionOf(after))
	assert.Same(t, ContextOf(before), ContextOf(after))
}

func TestCore_Close(t *testing.T) {
	var sawCancel atomic.Bool
	core := New(Options[profile, view]{
		Logger: discardLogger(),
		LoadContext: func(ctx context.Context, s Session) (*profile, error) {
			<-ctx.Done()
			sawCancel.Store(true)
			return nil, ctx.Err()
		},
	})
	rec := &recorder{}
	core.Subscribe(rec.listen)

	core.Dispatch(StartEvent{})
	core.Dispatch(AuthChanged{Session: session("u1", "")})
	require.Equal(t, StatusContextLoading, core.Snapshot().Status())

	core.Close()
	core.Close()

	require.Eventually(t, sawCancel.Load, waitFor, tick)
	assert.Equal(t, StatusContextLoading, core.Snapshot().Status())

	notified := rec.count()
	core.Dispatch(AuthChanged{})
	assert.Equal(t, StatusContextLoading, core.Snapshot().Status())
	assert.Equal(t, notified, rec.count())

	assert.ErrorIs(t, core.UpdateContext(context.Background(), nil), ErrClosed)
	assert.ErrorIs(t, core.RefreshContext(context.Background(), nil), ErrClosed)
}

func TestCore_SetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	warn := slog.LevelWarn

	core := newTestCore(t, Options[profile, view]{Logger: base, LogLevel: &warn})

	core.Dispatch(StartEvent{})
	assert.NotContains(t, buf.String(), "level=DEBUG")

	core.Dispatch(AuthCancelled{})
	assert.Contains(t, buf.String(), "invalid transition")

	buf.Reset()
	core.SetLogLevel(slog.LevelError)
	core.Dispatch(AuthCancelled{})
	assert.Empty(t, buf.String())

	core.SetLogLevel(slog.LevelDebug)
	core.Dispatch(AuthCancelled{})
	assert.Contains(t, buf.String(), "component=reducer")
}

func TestTimeouts_Defaults(t *testing.T) {
	got := Timeouts{LoadContext: time.Second}.withDefaults()
	assert.Equal(t, DefaultAuthTimeout, got.Authenticating)
	assert.Equal(t, time.Second, got.LoadContext)
	assert.Equal(t, DefaultInitializeTimeout, got.Initialize)
}
