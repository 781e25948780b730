// Package tasks bounds calls into external services that cannot be trusted
// to honor deadlines. A bounded call keeps running in its own goroutine after
// the deadline passes; the caller walks away with a timeout outcome and the
// late result is discarded when it eventually arrives.
package tasks

import (
	"context"
	"time"
)

// Outcome carries the result of a bounded call.
type Outcome[T any] struct {
	Result   T
	Err      error
	TimedOut bool
}

// Ok reports whether the call finished in time without error.
func (o Outcome[T]) Ok() bool {
	return !o.TimedOut && o.Err == nil
}

// Await runs fn and waits at most timeout for it to finish. The deadline is
// enforced at the wait, not inside fn: fn receives ctx unchanged and is
// abandoned, not cancelled, when the timer fires. Callers must treat a timed
// out outcome as final and never persist results from the abandoned run.
// A timeout <= 0 waits until fn returns or ctx is done.
func Await[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) Outcome[T] {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value: value, err: err}
	}()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case res := <-done:
		return Outcome[T]{Result: res.value, Err: res.err}
	case <-timer:
		return Outcome[T]{TimedOut: true}
	case <-ctx.Done():
		return Outcome[T]{Err: ctx.Err()}
	}
}
