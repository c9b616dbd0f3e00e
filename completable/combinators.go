package completable

import "sync/atomic"

// AllOf returns a Completable that completes, with no meaningful value,
// once every Completable in cs has settled normally, or fails as soon as
// any of them fails. It is built entirely from WhenComplete, introducing
// no new completion primitive.
func AllOf[T any](cs ...*Completable[T]) *Completable[Void] {
	down := New[Void]()
	if len(cs) == 0 {
		down.Complete(Void{})
		return down
	}
	var remaining atomic.Int64
	remaining.Store(int64(len(cs)))
	for _, c := range cs {
		c.WhenComplete(func(_ T, err error) {
			if err != nil {
				down.CompleteExceptionally(err)
				return
			}
			if remaining.Add(-1) == 0 {
				down.Complete(Void{})
			}
		})
	}
	return down
}

// AnyOf returns a Completable that mirrors whichever of cs settles first,
// normally or exceptionally.
func AnyOf[T any](cs ...*Completable[T]) *Completable[T] {
	down := New[T]()
	for _, c := range cs {
		c.WhenComplete(func(v T, err error) {
			if err != nil {
				down.CompleteExceptionally(err)
				return
			}
			down.Complete(v)
		})
	}
	return down
}
