// ABOUTME: Timed task primitive used for every side-effecting phase
// ABOUTME: Races a callback against its deadline and converts panics into errors

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// task is one in-flight side effect launched by the Core. Its result is
// applied only while origin is still the current state.
type task[C any] struct {
	gen    uint64
	phase  Phase
	origin State[C]
	cancel context.CancelFunc
}

type outcome[T any] struct {
	value T
	err   error
}

// runWithTimeout runs fn in its own goroutine and returns whichever comes
// first: fn's result, the deadline, or cancellation of ctx. A deadline yields
// a *TimeoutError. fn's context is cancelled when runWithTimeout returns, so a
// cooperative callback stops; a callback that ignores its context keeps
// running and its late result is dropped. A timeout <= 0 disables the deadline.
func runWithTimeout[T any](ctx context.Context, phase Phase, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		v, err := callSafely(runCtx, fn)
		done <- outcome[T]{value: v, err: err}
	}()

	var r outcome[T]
	select {
	case r = <-done:
	case <-runCtx.Done():
	}

	// a result that lands after the deadline still lost the race
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return zero, &TimeoutError{Phase: phase, After: timeout}
	}
	return r.value, r.err
}

// callSafely invokes fn, converting a panic into an ErrPanic error.
func callSafely[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn(ctx)
}
