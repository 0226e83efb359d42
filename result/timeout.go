package result

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout matches every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("result: timed out")

// TimeoutError is returned by WithTimeout when the timer fires first.
type TimeoutError struct {
	Message string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s (after %s)", e.Message, e.After)
}

// Is lets errors.Is(err, ErrTimeout) match any TimeoutError.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

type outcome[T any] struct {
	v   T
	err error
}

// WithTimeout races fn against a timer of length d. Whichever finishes first
// decides the Result. The timer is stopped on every return path and the
// context handed to fn is cancelled once the race is decided. A timeout
// failure carries message so callers can tell it apart from fn's own errors.
func WithTimeout[T any](ctx context.Context, d time.Duration, message string, fn func(context.Context) (T, error)) Result[T] {
	if message == "" {
		message = "operation timed out"
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timer := time.NewTimer(d)
	defer timer.Stop()

	// Buffered so a late fn never blocks after the race is lost.
	done := make(chan outcome[T], 1)
	go func() {
		r := Safe(func() (T, error) { return fn(runCtx) })
		done <- outcome[T]{v: r.Value(), err: r.Err()}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return Fail[T](o.err)
		}
		return Ok(o.v)
	case <-timer.C:
		return Fail[T](&TimeoutError{Message: message, After: d})
	case <-ctx.Done():
		return Fail[T](ctx.Err())
	}
}
