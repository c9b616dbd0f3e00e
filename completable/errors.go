package completable

import (
	"errors"
	"fmt"
)

// ErrNilException is the panic value when CompleteExceptionally or Failed
// is called with a nil error; a failed completion without an exception is
// disallowed.
var ErrNilException = errors.New("completable: exceptional completion requires a non-nil error")

// CallbackError wraps a panic recovered from a user-supplied callback
// (Apply/Accept/Run/Handle/When/Exceptionally), translating Go's panic
// mechanism into a typed error.
type CallbackError struct {
	Value any
	Stage string
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("completable: callback panicked in %s: %v", e.Stage, e.Value)
}

// Unwrap supports errors.Is/errors.As against an underlying error panic
// value.
func (e *CallbackError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// TransformerError wraps a panic recovered from a user-supplied error
// transformer: a transformer that itself panics has that panic attached
// here as a suppressed cause, and the original error is used instead, so
// this type is never itself surfaced as the downstream error; see
// recoverTransform.
type TransformerError struct {
	Value    any
	Original error
}

func (e *TransformerError) Error() string {
	return fmt.Sprintf("completable: error transformer panicked: %v (original: %v)", e.Value, e.Original)
}

func (e *TransformerError) Unwrap() error {
	return e.Original
}

func panicToError(stage string, r any) error {
	if err, ok := r.(error); ok {
		return &CallbackError{Value: err, Stage: stage}
	}
	return &CallbackError{Value: r, Stage: stage}
}
