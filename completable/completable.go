// Package completable implements a single-assignment, lock-free completion
// value with chained continuations. It is deliberately not a general
// futures framework: only the continuation kinds enumerated below exist,
// each available synchronously or dispatched to an Executor.
package completable

import (
	"sync/atomic"
)

// Void stands in for the empty-tuple result of Accept/Run style
// continuations, which have no meaningful return value.
type Void = struct{}

// outcome is the tagged result of a settled Completable: a value, or an
// error, never both, never neither once stored. A pointer-typed sum
// rather than a masked-null sentinel means a stored nil *outcome means
// unset, and any non-nil pointer means settled, with no ambiguity for a
// legitimately nil T.
type outcome[T any] struct {
	value T
	err   error
}

// sentinel is a unique, never-dereferenced marker installed as the head of
// a Completable's continuation stack once it has drained. It is untyped
// (contNode carries no type parameter) so every Completable[T] instance,
// regardless of T, shares the same sentinel address.
var sentinel = &contNode{}

// Completable is a single-assignment result carrier: it is created unset,
// transitions at most once to either a value or an error, and never
// resets. Distinct instances always compare by identity, via Go's normal
// pointer semantics; there is no Equals method.
type Completable[T any] struct {
	result atomic.Pointer[outcome[T]]
	head   atomic.Pointer[contNode]
}

// New returns an unset Completable.
func New[T any]() *Completable[T] {
	return &Completable[T]{}
}

// Completed returns an already-normally-complete Completable holding v.
func Completed[T any](v T) *Completable[T] {
	c := New[T]()
	c.tryComplete(&outcome[T]{value: v})
	return c
}

// Failed returns an already-exceptionally-complete Completable holding
// err. A failed completion without an exception is disallowed; passing a
// nil err panics.
func Failed[T any](err error) *Completable[T] {
	if err == nil {
		panic(ErrNilException)
	}
	c := New[T]()
	c.tryComplete(&outcome[T]{err: err})
	return c
}

// Supplied runs f on a new goroutine (the default, unbounded "async"
// executor) and completes the returned Completable with its result. A
// panic in f is recovered and routed through the error transformer from
// opts (WithErrorTransformer), defaulting to log-and-rethrow.
func Supplied[T any](f func() T, opts ...Option) *Completable[T] {
	o := resolveOptions(opts)
	c := New[T]()
	go runSupplier(c, f, o)
	return c
}

// SuppliedAsync runs f via executor instead of an ad-hoc goroutine.
func SuppliedAsync[T any](f func() T, executor Executor, opts ...Option) *Completable[T] {
	o := resolveOptions(opts)
	o.executor = executor
	c := New[T]()
	dispatch(o, func() {
		runSupplier(c, f, o)
	}, func(err error) {
		c.tryComplete(&outcome[T]{err: err})
	})
	return c
}

func runSupplier[T any](c *Completable[T], f func() T, o contOptions) {
	var (
		result  T
		callErr error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				callErr = panicToError("Supplied", r)
			}
		}()
		result = f()
	}()
	if callErr != nil {
		c.tryComplete(&outcome[T]{err: recoverTransform(o, callErr)})
		return
	}
	c.tryComplete(&outcome[T]{value: result})
}

// tryComplete is the completion protocol: CAS result from unset, then
// drain the continuation stack by exchanging it for the sentinel and
// invoking each drained node once, in LIFO order.
func (c *Completable[T]) tryComplete(o *outcome[T]) bool {
	if !c.result.CompareAndSwap(nil, o) {
		return false
	}
	node := c.head.Swap(sentinel)
	for node != nil && node != sentinel {
		next := node.next
		node.execute()
		node = next
	}
	return true
}

// Complete sets a normal result. Returns false if the Completable was
// already settled (first-wins).
func (c *Completable[T]) Complete(v T) bool {
	return c.tryComplete(&outcome[T]{value: v})
}

// CompleteExceptionally sets a failed result. Returns false if already
// settled. A nil err panics (see Failed).
func (c *Completable[T]) CompleteExceptionally(err error) bool {
	if err == nil {
		panic(ErrNilException)
	}
	return c.tryComplete(&outcome[T]{err: err})
}

// IsDone reports whether the Completable has settled, normally or
// exceptionally.
func (c *Completable[T]) IsDone() bool {
	return c.result.Load() != nil
}

// IsNormallyComplete reports whether the Completable settled with a value.
func (c *Completable[T]) IsNormallyComplete() bool {
	o := c.result.Load()
	return o != nil && o.err == nil
}

// IsExceptionallyComplete reports whether the Completable settled with an
// error.
func (c *Completable[T]) IsExceptionallyComplete() bool {
	o := c.result.Load()
	return o != nil && o.err != nil
}

// GetException returns the stored error and true if the Completable is
// exceptionally complete; otherwise returns (nil, false). Querying a
// non-errored Completable is reported via the boolean rather than a panic,
// since this accessor is commonly used in a non-blocking poll loop.
func (c *Completable[T]) GetException() (error, bool) {
	o := c.result.Load()
	if o == nil || o.err == nil {
		return nil, false
	}
	return o.err, true
}

// GetNow returns the stored value if normally complete, or def otherwise,
// including when the Completable is unset or exceptionally complete.
// GetNow never panics; use Join to surface an exceptional result.
func (c *Completable[T]) GetNow(def T) T {
	o := c.result.Load()
	if o == nil || o.err != nil {
		return def
	}
	return o.value
}

// Join blocks the calling goroutine until the Completable settles, then
// returns its value. If the Completable settled exceptionally, Join panics
// with the stored error rather than returning one.
//
// A Join that finds the result already set returns immediately without
// registering a continuation or blocking.
func (c *Completable[T]) Join() T {
	if o := c.result.Load(); o != nil {
		return unwrap(o)
	}
	done := make(chan struct{})
	node := &contNode{execute: func() { close(done) }}
	c.pushNode(node)
	<-done
	return unwrap(c.result.Load())
}

func unwrap[T any](o *outcome[T]) T {
	if o.err != nil {
		panic(o.err)
	}
	return o.value
}

// Outcome is the value half of the Go-native Future conversion: the
// closest Go analogue to an external future is a receive-only channel.
type Outcome[T any] struct {
	Value T
	Err   error
}

// ToChannel returns a buffered, single-element channel that receives the
// Completable's outcome once settled, then is closed. If already settled,
// the channel is returned pre-filled.
func (c *Completable[T]) ToChannel() <-chan Outcome[T] {
	ch := make(chan Outcome[T], 1)
	node := &contNode{execute: func() {
		o := c.result.Load()
		ch <- Outcome[T]{Value: o.value, Err: o.err}
		close(ch)
	}}
	c.pushNode(node)
	return ch
}

// FromChannel builds a Completable that settles with the first value
// received from ch, or stays unset forever if ch is closed without a send.
func FromChannel[T any](ch <-chan Outcome[T]) *Completable[T] {
	c := New[T]()
	go func() {
		o, ok := <-ch
		if !ok {
			return
		}
		if o.Err != nil {
			c.tryComplete(&outcome[T]{err: o.Err})
			return
		}
		c.tryComplete(&outcome[T]{value: o.Value})
	}()
	return c
}

// pushNode registers a continuation: if already completed, execute
// inline; otherwise CAS-link at the head.
func (c *Completable[T]) pushNode(n *contNode) {
	for {
		if o := c.result.Load(); o != nil {
			n.execute()
			return
		}
		old := c.head.Load()
		if old == sentinel {
			// Completion raced us between the two loads above; result is
			// guaranteed non-nil by the time head became sentinel (tryComplete
			// CASes result before swapping head), so this will execute inline.
			n.execute()
			return
		}
		n.next = old
		if c.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// ThenAccept registers a continuation consuming the value without
// producing one, propagating any upstream error.
func (c *Completable[T]) ThenAccept(f func(T), opts ...Option) *Completable[Void] {
	o := resolveOptions(opts)
	down := New[Void]()
	node := &contNode{}
	node.execute = func() {
		dispatch(o, func() {
			up := c.result.Load()
			if up.err != nil {
				down.tryComplete(&outcome[Void]{err: up.err})
				return
			}
			if err := guardedCall("ThenAccept", func() { f(up.value) }); err != nil {
				down.tryComplete(&outcome[Void]{err: recoverTransform(o, err)})
				return
			}
			down.tryComplete(&outcome[Void]{})
		}, func(err error) { down.tryComplete(&outcome[Void]{err: err}) })
	}
	c.pushNode(node)
	return down
}

// ThenRun registers a continuation that runs after completion, ignoring
// the value, propagating any upstream error.
func (c *Completable[T]) ThenRun(f func(), opts ...Option) *Completable[Void] {
	o := resolveOptions(opts)
	down := New[Void]()
	node := &contNode{}
	node.execute = func() {
		dispatch(o, func() {
			up := c.result.Load()
			if up.err != nil {
				down.tryComplete(&outcome[Void]{err: up.err})
				return
			}
			if err := guardedCall("ThenRun", f); err != nil {
				down.tryComplete(&outcome[Void]{err: recoverTransform(o, err)})
				return
			}
			down.tryComplete(&outcome[Void]{})
		}, func(err error) { down.tryComplete(&outcome[Void]{err: err}) })
	}
	c.pushNode(node)
	return down
}

// WhenComplete registers an observer of both value and error that does not
// transform the result: the downstream Completable mirrors upstream,
// except that a panic in f itself becomes the downstream error.
func (c *Completable[T]) WhenComplete(f func(T, error), opts ...Option) *Completable[T] {
	o := resolveOptions(opts)
	down := New[T]()
	node := &contNode{}
	node.execute = func() {
		dispatch(o, func() {
			up := c.result.Load()
			if err := guardedCall("WhenComplete", func() { f(up.value, up.err) }); err != nil {
				down.tryComplete(&outcome[T]{err: recoverTransform(o, err)})
				return
			}
			down.tryComplete(up)
		}, func(err error) { down.tryComplete(&outcome[T]{err: err}) })
	}
	c.pushNode(node)
	return down
}

// Exceptionally registers a recovery function invoked only on an upstream
// error, producing a normally-complete downstream value. A normal upstream
// result passes through unchanged.
func (c *Completable[T]) Exceptionally(f func(error) T, opts ...Option) *Completable[T] {
	o := resolveOptions(opts)
	down := New[T]()
	node := &contNode{}
	node.execute = func() {
		up := c.result.Load()
		if up.err == nil {
			down.tryComplete(up)
			return
		}
		dispatch(o, func() {
			var (
				result  T
				callErr error
			)
			if callErr = guardedCall("Exceptionally", func() { result = f(up.err) }); callErr != nil {
				down.tryComplete(&outcome[T]{err: recoverTransform(o, callErr)})
				return
			}
			down.tryComplete(&outcome[T]{value: result})
		}, func(err error) { down.tryComplete(&outcome[T]{err: err}) })
	}
	c.pushNode(node)
	return down
}

func guardedCall(stage string, f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(stage, r)
		}
	}()
	f()
	return nil
}

// ThenApply registers a value-transforming continuation. Being a
// type-changing transform (T -> U), it is a package-level function rather
// than a method, since Go methods cannot introduce new type parameters.
func ThenApply[T, U any](c *Completable[T], f func(T) U, opts ...Option) *Completable[U] {
	o := resolveOptions(opts)
	down := New[U]()
	node := &contNode{}
	node.execute = func() {
		dispatch(o, func() {
			up := c.result.Load()
			if up.err != nil {
				down.tryComplete(&outcome[U]{err: up.err})
				return
			}
			var (
				result  U
				callErr error
			)
			if callErr = guardedCall("ThenApply", func() { result = f(up.value) }); callErr != nil {
				down.tryComplete(&outcome[U]{err: recoverTransform(o, callErr)})
				return
			}
			down.tryComplete(&outcome[U]{value: result})
		}, func(err error) { down.tryComplete(&outcome[U]{err: err}) })
	}
	c.pushNode(node)
	return down
}

// Handle registers a continuation that observes both the value and error
// of the upstream Completable and always produces a new, normally-complete
// downstream value (unless it panics).
func Handle[T, U any](c *Completable[T], f func(T, error) U, opts ...Option) *Completable[U] {
	o := resolveOptions(opts)
	down := New[U]()
	node := &contNode{}
	node.execute = func() {
		dispatch(o, func() {
			up := c.result.Load()
			var (
				result  U
				callErr error
			)
			if callErr = guardedCall("Handle", func() { result = f(up.value, up.err) }); callErr != nil {
				down.tryComplete(&outcome[U]{err: recoverTransform(o, callErr)})
				return
			}
			down.tryComplete(&outcome[U]{value: result})
		}, func(err error) { down.tryComplete(&outcome[U]{err: err}) })
	}
	c.pushNode(node)
	return down
}
