// ABOUTME: Stateful orchestrator driving the auth pipeline around the reducer
// ABOUTME: Owns state, listeners, timers and in-flight tasks for one session

package lifecycle

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultAuthTimeout bounds how long AUTHENTICATING may last before
	// AUTH_CANCELLED is dispatched.
	DefaultAuthTimeout = 30 * time.Second
	// DefaultLoadContextTimeout bounds LoadContext.
	DefaultLoadContextTimeout = 10 * time.Second
	// DefaultInitializeTimeout bounds InitializeApp.
	DefaultInitializeTimeout = 30 * time.Second
)

// Timeouts configures the per-phase deadlines. Zero values use the defaults.
type Timeouts struct {
	Authenticating time.Duration
	LoadContext    time.Duration
	Initialize     time.Duration
}

// DefaultTimeouts returns the default per-phase deadlines.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Authenticating: DefaultAuthTimeout,
		LoadContext:    DefaultLoadContextTimeout,
		Initialize:     DefaultInitializeTimeout,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Authenticating <= 0 {
		t.Authenticating = d.Authenticating
	}
	if t.LoadContext <= 0 {
		t.LoadContext = d.LoadContext
	}
	if t.Initialize <= 0 {
		t.Initialize = d.Initialize
	}
	return t
}

// Listener receives the core state and its projection after every applied
// event and every context replacement.
type Listener[C, D any] func(State[C], AppState[C, D])

// Transition describes one applied event. Generation is the task generation
// that produced the event, or zero for externally dispatched events.
type Transition[C any] struct {
	Seq        uint64
	From       State[C]
	To         State[C]
	Event      Event
	Noop       bool
	Generation uint64
	At         time.Time
}

// Options configures a Core. Every callback is optional.
type Options[C, D any] struct {
	// LoadContext fetches the application context for a session. Without it
	// the pipeline resolves an empty context immediately.
	LoadContext func(ctx context.Context, session Session) (*C, error)

	// InitializeApp runs once after the context loads. Without it the
	// pipeline advances straight to AUTH_READY.
	InitializeApp func(ctx context.Context, snapshot Snapshot[C]) error

	// DeriveAppState replaces AUTH_READY in the consumer-facing projection.
	DeriveAppState func(ready *Ready[C]) D

	// Observer sees every applied event before listeners are notified.
	Observer func(Transition[C])

	Timeouts Timeouts

	// RunID identifies the Core in logs and journals. Empty generates a UUID.
	RunID string

	// Logger is the base logger; nil uses slog.Default().
	Logger *slog.Logger

	// LogLevel, when set, filters records below it on top of Logger's own
	// level. Core.SetLogLevel changes it at runtime.
	LogLevel *slog.Level
}

type listenerEntry[C, D any] struct {
	id string
	fn Listener[C, D]
}

// Core is the orchestrator. Construct it with New; the zero value is not usable.
type Core[C, D any] struct {
	opts     Options[C, D]
	timeouts Timeouts
	reducer  *Reducer[C]
	logger   *slog.Logger
	level    *slog.LevelVar
	runID    string

	mu    sync.RWMutex
	state State[C]
	seq   uint64

	listenersMu sync.RWMutex
	listeners   []listenerEntry[C, D]

	queueMu  sync.Mutex
	queue    []func()
	draining bool

	// Touched only by the goroutine draining the mailbox.
	gen       uint64
	task      *task[C]
	authTimer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a Core in the START state.
func New[C, D any](opts Options[C, D]) *Core[C, D] {
	level := new(slog.LevelVar)
	level.Set(levelInherit)
	if opts.LogLevel != nil {
		level.Set(*opts.LogLevel)
	}
	base := newLevelLogger(opts.Logger, level)

	ctx, cancel := context.WithCancel(context.Background())
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	return &Core[C, D]{
		opts:     opts,
		timeouts: opts.Timeouts.withDefaults(),
		reducer:  NewReducer[C](base),
		logger:   base.With("component", "core", "run_id", runID),
		level:    level,
		runID:    runID,
		state:    &Start[C]{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RunID identifies this Core instance in logs and journals.
func (c *Core[C, D]) RunID() string {
	return c.runID
}

// SetLogLevel changes the minimum level logged by the core and its reducer.
func (c *Core[C, D]) SetLogLevel(level slog.Level) {
	c.level.Set(level)
}

// Snapshot returns the current core state.
func (c *Core[C, D]) Snapshot() State[C] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// AppState returns the consumer-facing projection of the current state.
func (c *Core[C, D]) AppState() AppState[C, D] {
	return projectAppState(c.Snapshot(), c.opts.DeriveAppState)
}

// Subscribe registers fn for every post-dispatch notification and returns a
// function that removes it. The returned function is idempotent.
func (c *Core[C, D]) Subscribe(fn Listener[C, D]) (unsubscribe func()) {
	id := uuid.New().String()

	c.listenersMu.Lock()
	c.listeners = append(c.listeners, listenerEntry[C, D]{id: id, fn: fn})
	c.listenersMu.Unlock()

	c.logger.Debug("listener added", "listener_id", id)

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		c.listeners = slices.DeleteFunc(c.listeners, func(e listenerEntry[C, D]) bool {
			return e.id == id
		})
	}
}

// Dispatch applies event and notifies every listener before returning. When
// another goroutine is draining the mailbox, Dispatch waits until that drain
// has applied event. Listeners and the Observer run on the draining goroutine
// and must use Post instead: a Dispatch from inside one waits on itself.
func (c *Core[C, D]) Dispatch(event Event) {
	if event == nil {
		c.logger.Warn("ignoring nil event")
		return
	}
	done := make(chan struct{})
	c.enqueue(func() {
		defer close(done)
		c.apply(event, 0)
	})
	<-done
}

// Post queues event without waiting for it. From a listener or the Observer
// the event is applied once the current notification round finishes; from
// anywhere else it behaves like Dispatch when no drain is active.
func (c *Core[C, D]) Post(event Event) {
	if event == nil {
		c.logger.Warn("ignoring nil event")
		return
	}
	c.enqueue(func() { c.apply(event, 0) })
}

// BeginAuth marks the start of a UI-driven sign-in flow.
func (c *Core[C, D]) BeginAuth() {
	c.Dispatch(AuthInitiated{})
}

// CancelAuth abandons a UI-driven sign-in flow. It does not stop any
// provider-level operation.
func (c *Core[C, D]) CancelAuth() {
	c.Dispatch(AuthCancelled{})
}

// Close cancels in-flight tasks and the auth timer and waits for task
// goroutines to return. Events dispatched afterwards are dropped.
func (c *Core[C, D]) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.cancel()
	c.enqueue(func() {
		c.stopAuthTimer()
		c.task = nil
	})
	c.wg.Wait()

	c.listenersMu.Lock()
	c.listeners = nil
	c.listenersMu.Unlock()

	c.logger.Debug("core closed")
}

// enqueue appends a step to the mailbox and drains it unless a drain is
// already running.
func (c *Core[C, D]) enqueue(step func()) {
	c.queueMu.Lock()
	c.queue = append(c.queue, step)
	if c.draining {
		c.queueMu.Unlock()
		return
	}
	c.draining = true
	c.queueMu.Unlock()

	for {
		c.queueMu.Lock()
		if len(c.queue) == 0 {
			c.draining = false
			c.queueMu.Unlock()
			return
		}
		next := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]
		c.queueMu.Unlock()

		next()
	}
}

// apply runs one event through the reducer, notifies, then fires edge effects.
func (c *Core[C, D]) apply(event Event, gen uint64) {
	if c.closed.Load() {
		c.logger.Debug("dropping event after close", "event", event.Type())
		return
	}

	c.mu.Lock()
	prev := c.state
	next := c.reducer.Reduce(prev, event)
	c.state = next
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	if c.opts.Observer != nil {
		c.observe(Transition[C]{
			Seq:        seq,
			From:       prev,
			To:         next,
			Event:      event,
			Noop:       prev == next,
			Generation: gen,
			At:         time.Now(),
		})
	}

	c.notify(next)
	c.runEffects(prev, next)
}

// deliver applies an event produced by a task or timer only if the state it
// was started for is still current.
func (c *Core[C, D]) deliver(origin State[C], gen uint64, event Event) {
	if current := c.Snapshot(); current != origin {
		c.logger.Debug("discarding stale result",
			"event", event.Type(),
			"generation", gen,
			"started_in", origin.Status(),
			"current", current.Status(),
		)
		return
	}
	c.apply(event, gen)
}

// runEffects inspects the prev -> next edge. Same-value results are no-ops and
// never re-trigger effects.
func (c *Core[C, D]) runEffects(prev, next State[C]) {
	if prev == next {
		return
	}
	from, to := prev.Status(), next.Status()

	if from == StatusAuthenticating && to != StatusAuthenticating {
		c.stopAuthTimer()
	}
	if c.task != nil && c.task.origin != next {
		c.cancelTask()
	}

	switch s := next.(type) {
	case *Authenticating[C]:
		if from != StatusAuthenticating {
			c.startAuthTimer(s)
		}
	case *ContextLoading[C]:
		// entered from another status, or a different user replaced the session
		c.startLoadContext(s)
	case *Initializing[C]:
		if from == StatusContextLoading {
			c.startInitialize(s)
		}
	case *SignedOut[C]:
		c.logger.Debug("signed out")
	}
}

func (c *Core[C, D]) startAuthTimer(origin *Authenticating[C]) {
	timeout := c.timeouts.Authenticating
	c.authTimer = time.AfterFunc(timeout, func() {
		c.logger.Warn("authentication timed out", "after", timeout)
		c.enqueue(func() { c.deliver(origin, 0, AuthCancelled{}) })
	})
}

func (c *Core[C, D]) stopAuthTimer() {
	if c.authTimer != nil {
		c.authTimer.Stop()
		c.authTimer = nil
	}
}

func (c *Core[C, D]) cancelTask() {
	c.logger.Debug("cancelling superseded task",
		"phase", c.task.phase,
		"generation", c.task.gen,
	)
	c.task.cancel()
	c.task = nil
}

func (c *Core[C, D]) startLoadContext(origin *ContextLoading[C]) {
	load := c.opts.LoadContext
	if load == nil {
		c.logger.Debug("no loadContext, resolving with empty context")
		c.enqueue(func() { c.deliver(origin, 0, ContextResolved[C]{Context: new(C)}) })
		return
	}

	session := origin.Session
	timeout := c.timeouts.LoadContext
	c.logger.Debug("entered CONTEXT_LOADING, loading context", "user_id", session.UserID())

	c.launch(PhaseLoadContext, origin, func(ctx context.Context) Event {
		value, err := runWithTimeout(ctx, PhaseLoadContext, timeout, func(ctx context.Context) (*C, error) {
			return load(ctx, session)
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			c.logger.Error("loadContext failed", "user_id", session.UserID(), "error", err)
			return ContextFailed{Err: err}
		}
		if value == nil {
			value = new(C)
		}
		return ContextResolved[C]{Context: value}
	})
}

func (c *Core[C, D]) startInitialize(origin *Initializing[C]) {
	initialize := c.opts.InitializeApp
	if initialize == nil {
		c.enqueue(func() { c.deliver(origin, 0, Initialized{}) })
		return
	}

	snapshot := Snapshot[C]{Session: origin.Session, Context: origin.Context}
	timeout := c.timeouts.Initialize
	c.logger.Debug("entered INITIALIZING, running initializeApp")

	c.launch(PhaseInitialize, origin, func(ctx context.Context) Event {
		_, err := runWithTimeout(ctx, PhaseInitialize, timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, initialize(ctx, snapshot)
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			c.logger.Error("initializeApp failed", "error", err)
			return InitializeFailed{Err: err}
		}
		return Initialized{}
	})
}

// launch starts run in its own goroutine as the current task. run returns the
// event to deliver, or nil when the task was cancelled.
func (c *Core[C, D]) launch(phase Phase, origin State[C], run func(ctx context.Context) Event) {
	c.gen++
	gen := c.gen

	ctx, cancel := context.WithCancel(WithSession(c.ctx, SessionOf(origin)))
	c.task = &task[C]{gen: gen, phase: phase, origin: origin, cancel: cancel}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		event := run(ctx)
		if event == nil {
			c.logger.Debug("task cancelled", "phase", phase, "generation", gen)
			return
		}
		c.enqueue(func() {
			if c.task != nil && c.task.gen == gen {
				c.task = nil
			}
			c.deliver(origin, gen, event)
		})
	}()
}

func (c *Core[C, D]) notify(state State[C]) {
	app := projectAppState(state, c.opts.DeriveAppState)

	c.listenersMu.RLock()
	listeners := slices.Clone(c.listeners)
	c.listenersMu.RUnlock()

	for _, l := range listeners {
		c.callListener(l, state, app)
	}
}

func (c *Core[C, D]) callListener(l listenerEntry[C, D], state State[C], app AppState[C, D]) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener panicked", "listener_id", l.id, "panic", r)
		}
	}()
	l.fn(state, app)
}

func (c *Core[C, D]) observe(t Transition[C]) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("observer panicked", "panic", r)
		}
	}()
	c.opts.Observer(t)
}
