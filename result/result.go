// CLAUDE:SUMMARY Tagged success/failure result type, panic-safe call wrapper, and a timeout race helper.
// Package result carries the outcome of fallible host calls as a single
// tagged value, so call sites branch on IsOk instead of juggling a nil value
// and a nil error separately.
package result

import (
	"errors"
	"fmt"
)

// Result is either a success holding a value or a failure holding an error.
// The zero value is a failure with no error attached and should not be used.
type Result[T any] struct {
	value T
	err   error
	ok    bool
}

// Ok returns a successful Result.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Fail returns a failed Result. A nil err is replaced by ErrUnknown.
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = ErrUnknown
	}
	return Result[T]{err: err}
}

// ErrUnknown marks a failure that was raised without an error value.
var ErrUnknown = errors.New("result: unknown failure")

// IsOk reports whether r is a success.
func (r Result[T]) IsOk() bool { return r.ok }

// Value returns the success value, or the zero value on failure.
func (r Result[T]) Value() T { return r.value }

// Err returns the failure payload, or nil on success.
func (r Result[T]) Err() error {
	if r.ok {
		return nil
	}
	if r.err == nil {
		return ErrUnknown
	}
	return r.err
}

// Unwrap returns the result in Go's (value, error) form.
func (r Result[T]) Unwrap() (T, error) {
	return r.value, r.Err()
}

// Safe calls fn and folds its outcome into a Result. A panic inside fn is
// recovered and becomes the failure; panic values that are not errors keep
// their string form as the message.
func Safe[T any](fn func() (T, error)) (res Result[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Fail[T](normalize(rec))
		}
	}()
	v, err := fn()
	if err != nil {
		return Fail[T](err)
	}
	return Ok(v)
}

// Do is Safe for calls that only return an error.
func Do(fn func() error) Result[struct{}] {
	return Safe(func() (struct{}, error) {
		return struct{}{}, fn()
	})
}

func normalize(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return errors.New(fmt.Sprint(v))
}
