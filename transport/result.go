package transport

import learnhub "github.com/chimerakang/learnhub-go"

// Result is the outcome of one backend call: either a decoded payload or a
// classified failure, never both.
type Result[T any] struct {
	value T
	err   *learnhub.Error
}

// Success wraps a decoded payload.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Failure wraps a classified error. A nil err is treated as an unknown failure.
func Failure[T any](err *learnhub.Error) Result[T] {
	if err == nil {
		err = &learnhub.Error{Kind: learnhub.KindUnknown}
	}
	return Result[T]{err: err}
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool { return r.err == nil }

// Value returns the payload; the zero value on failure.
func (r Result[T]) Value() T { return r.value }

// Err returns the failure, or nil on success.
func (r Result[T]) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Failure returns the typed failure, or nil on success.
func (r Result[T]) Failure() *learnhub.Error { return r.err }

// Unwrap returns the payload and the failure as a conventional pair.
func (r Result[T]) Unwrap() (T, error) {
	return r.value, r.Err()
}
