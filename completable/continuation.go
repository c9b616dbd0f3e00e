package completable

import "github.com/joeycumines/concurrentutil/internal/xsync"

// Executor dispatches a continuation's execution: submit the work, return
// immediately. If Submit itself fails (returns an error), that failure is
// treated as a user-callback failure and routed through the
// continuation's error transformer.
type Executor interface {
	Submit(func()) error
}

// ErrorTransformer is invoked when a user callback panics; its result
// (possibly a new, augmented error) becomes the downstream error. The
// default transformer logs the error and returns it unchanged.
type ErrorTransformer func(error) error

// contOptions accumulates the optional executor and error transformer for
// a single continuation registration.
type contOptions struct {
	executor    Executor
	errTransform ErrorTransformer
}

// Option configures a single chained continuation (ThenApply, ThenAccept,
// etc.). The zero value of contOptions runs synchronously on the
// completing goroutine with the default logging error transformer.
type Option func(*contOptions)

// WithExecutor runs the continuation via e instead of synchronously on the
// thread that completed the upstream Completable.
func WithExecutor(e Executor) Option {
	return func(o *contOptions) { o.executor = e }
}

// WithErrorTransformer overrides the default "log and rethrow unchanged"
// behaviour for a panic raised by this continuation's callback.
func WithErrorTransformer(f ErrorTransformer) Option {
	return func(o *contOptions) { o.errTransform = f }
}

func resolveOptions(opts []Option) contOptions {
	var o contOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.errTransform == nil {
		o.errTransform = defaultErrorTransformer
	}
	return o
}

func defaultErrorTransformer(err error) error {
	xsync.DefaultLogger().Err().Err(err).Str("component", "completable").Log("callback failed")
	return err
}

// recoverTransform applies a continuation's error transformer to err,
// guarding against the transformer itself panicking: if it does, the
// panic value is logged as a suppressed cause and the original error is
// used instead.
func recoverTransform(o contOptions, err error) (result error) {
	result = err
	defer func() {
		if r := recover(); r != nil {
			result = err
			xsync.DefaultLogger().Err().Err(&TransformerError{Value: r, Original: err}).
				Str("component", "completable").
				Log("error transformer panicked, using original error")
		}
	}()
	return o.errTransform(err)
}

// dispatch runs fn either synchronously or via the configured executor. A
// Submit failure is itself routed through the error transformer and used
// to fail the downstream Completable (the caller passes failDownstream for
// that purpose).
func dispatch(o contOptions, fn func(), failDownstream func(error)) {
	if o.executor == nil {
		fn()
		return
	}
	if err := o.executor.Submit(fn); err != nil {
		failDownstream(recoverTransform(o, err))
	}
}

// contNode is one entry in a Completable's lock-free LIFO continuation
// stack. execute is a closure that already captures the continuation's
// kind, upstream outcome consumer, downstream Completable and options,
// standing in for a type hierarchy of continuation kinds.
type contNode struct {
	next    *contNode
	execute func()
}
