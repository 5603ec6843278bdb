// Package feedback produces short performance feedback for a finished exam,
// bounded by a timeout and degrading to a fallback text.
package feedback

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by FirstOf when the timeout elapses before the call completes.
var ErrTimeout = errors.New("feedback: timed out")

type outcome[T any] struct {
	val T
	err error
}

// FirstOf runs call and waits for whichever finishes first: the call, the
// timeout, or ctx. The loser is abandoned; call receives a cancelled context
// and its late result is dropped.
func FirstOf[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	var zero T

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so an abandoned call never blocks on send.
	done := make(chan outcome[T], 1)
	go func() {
		v, err := call(callCtx)
		done <- outcome[T]{val: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.val, o.err
	case <-timer.C:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
