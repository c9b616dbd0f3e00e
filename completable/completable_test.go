package completable_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/joeycumines/concurrentutil/completable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompletableIdempotence verifies the first completion wins and
// subsequent attempts fail.
func TestCompletableIdempotence(t *testing.T) {
	c := completable.New[int]()
	require.True(t, c.Complete(1))
	require.False(t, c.Complete(2))
	require.Equal(t, 1, c.GetNow(-1))
}

func TestCompleteExceptionallyIdempotence(t *testing.T) {
	c := completable.New[int]()
	boom := errors.New("boom")
	require.True(t, c.CompleteExceptionally(boom))
	require.False(t, c.CompleteExceptionally(errors.New("other")))
	err, ok := c.GetException()
	require.True(t, ok)
	require.ErrorIs(t, err, boom)
}

func TestCompleteExceptionallyNilPanics(t *testing.T) {
	c := completable.New[int]()
	assert.Panics(t, func() { c.CompleteExceptionally(nil) })
}

// TestCompletableChain is an end-to-end chaining scenario.
func TestCompletableChain(t *testing.T) {
	c := completable.Supplied(func() int { return 3 })
	c = completable.ThenApply(c, func(v int) int { return v * 2 })
	c = completable.ThenApply(c, func(v int) int { return v + 1 })
	require.Equal(t, 7, c.Join())
}

func TestJoinConsistency(t *testing.T) {
	c := completable.New[string]()
	go c.Complete("value")
	got := c.Join()
	require.True(t, c.IsDone())
	require.Equal(t, c.GetNow(""), got)
}

func TestJoinAlreadyDoneReturnsImmediately(t *testing.T) {
	c := completable.Completed(42)
	require.Equal(t, 42, c.Join())
}

func TestJoinPanicsOnException(t *testing.T) {
	boom := errors.New("boom")
	c := completable.Failed[int](boom)
	assert.PanicsWithError(t, boom.Error(), func() { c.Join() })
}

// TestContinuationOrdering registers several continuations before
// completion and one after, verifying each runs exactly once.
func TestContinuationOrdering(t *testing.T) {
	c := completable.New[int]()
	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		c.ThenAccept(func(int) {
			count.Add(1)
			wg.Done()
		})
	}
	c.Complete(1)
	wg.Wait()
	require.EqualValues(t, 5, count.Load())

	// post-completion registration runs synchronously.
	ran := false
	c.ThenAccept(func(int) { ran = true })
	require.True(t, ran)
}

func TestThenApplyPropagatesUpstreamError(t *testing.T) {
	boom := errors.New("boom")
	c := completable.Failed[int](boom)
	d := completable.ThenApply(c, func(v int) int { return v + 1 })
	err, ok := d.GetException()
	require.True(t, ok)
	require.ErrorIs(t, err, boom)
}

func TestExceptionallyRecovers(t *testing.T) {
	c := completable.Failed[int](errors.New("boom"))
	d := c.Exceptionally(func(error) int { return 99 })
	require.Equal(t, 99, d.Join())
}

func TestExceptionallyPassesThroughNormal(t *testing.T) {
	c := completable.Completed(5)
	d := c.Exceptionally(func(error) int { return -1 })
	require.Equal(t, 5, d.Join())
}

func TestWhenCompleteMirrorsAndRepropagates(t *testing.T) {
	boom := errors.New("boom")
	c := completable.Failed[int](boom)
	var sawErr error
	d := c.WhenComplete(func(_ int, err error) { sawErr = err })
	require.ErrorIs(t, sawErr, boom)
	err, ok := d.GetException()
	require.True(t, ok)
	require.ErrorIs(t, err, boom)
}

func TestHandleAlwaysProducesValue(t *testing.T) {
	c := completable.Failed[int](errors.New("boom"))
	d := completable.Handle(c, func(v int, err error) string {
		if err != nil {
			return "recovered"
		}
		return "ok"
	})
	require.Equal(t, "recovered", d.Join())
}

func TestPanicInCallbackRoutesThroughErrorTransformer(t *testing.T) {
	c := completable.Completed(1)
	var transformed error
	d := completable.ThenApply(c, func(int) int {
		panic("kaboom")
	}, completable.WithErrorTransformer(func(err error) error {
		transformed = err
		return err
	}))
	_, ok := d.GetException()
	require.True(t, ok)
	require.NotNil(t, transformed)
}

type syncExecutor struct {
	calls atomic.Int32
}

func (s *syncExecutor) Submit(f func()) error {
	s.calls.Add(1)
	f()
	return nil
}

func TestThenApplyAsyncUsesExecutor(t *testing.T) {
	exec := &syncExecutor{}
	c := completable.Completed(10)
	d := completable.ThenApply(c, func(v int) int { return v * 2 }, completable.WithExecutor(exec))
	require.Equal(t, 20, d.Join())
	require.EqualValues(t, 1, exec.calls.Load())
}

func TestAllOf(t *testing.T) {
	a := completable.New[int]()
	b := completable.New[int]()
	all := completable.AllOf(a, b)
	require.False(t, all.IsDone())
	a.Complete(1)
	require.False(t, all.IsDone())
	b.Complete(2)
	require.True(t, all.IsNormallyComplete())
}

func TestAllOfFailsFast(t *testing.T) {
	a := completable.New[int]()
	b := completable.New[int]()
	all := completable.AllOf(a, b)
	boom := errors.New("boom")
	a.CompleteExceptionally(boom)
	require.True(t, all.IsExceptionallyComplete())
}

func TestAnyOf(t *testing.T) {
	a := completable.New[int]()
	b := completable.New[int]()
	any := completable.AnyOf(a, b)
	b.Complete(7)
	require.Equal(t, 7, any.Join())
}

func TestToChannelAndFromChannel(t *testing.T) {
	c := completable.Completed("hi")
	o := <-c.ToChannel()
	require.Equal(t, "hi", o.Value)
	require.NoError(t, o.Err)

	ch := make(chan completable.Outcome[int], 1)
	ch <- completable.Outcome[int]{Value: 5}
	d := completable.FromChannel(ch)
	require.Equal(t, 5, d.Join())
}

func TestConcurrentCompleteAndSubscribe(t *testing.T) {
	for i := 0; i < 200; i++ {
		c := completable.New[int]()
		var wg sync.WaitGroup
		var seen atomic.Int32
		for j := 0; j < 8; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.ThenAccept(func(int) { seen.Add(1) })
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Complete(1)
		}()
		wg.Wait()
		require.EqualValues(t, 8, seen.Load())
	}
}
