package xsync

import "fmt"

// FatalInvariantError marks a panic value as a fatal violation rather than
// an ordinary, recoverable outcome: either the library's own bookkeeping
// no longer matches what the code reaching the panic site assumed, or a
// caller broke a usage contract the library cannot continue from (such as
// arealock's intersecting-areas rule).
type FatalInvariantError struct {
	Component string
	Err       error
}

func (e *FatalInvariantError) Error() string {
	return fmt.Sprintf("%s: fatal invariant violation: %v", e.Component, e.Err)
}

func (e *FatalInvariantError) Unwrap() error { return e.Err }

// NewFatalInvariantError wraps err as a FatalInvariantError attributed to
// component, logging it through the default logger before returning it so
// the violation is observable even if the eventual panic is recovered
// higher up the call stack.
func NewFatalInvariantError(component string, err error) *FatalInvariantError {
	fie := &FatalInvariantError{Component: component, Err: err}
	DefaultLogger().Err().Err(fie).Str("component", component).Log("fatal invariant violation")
	return fie
}
