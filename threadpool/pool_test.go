package threadpool_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/concurrentutil/priority"
	"github.com/joeycumines/concurrentutil/threadpool"
	"github.com/stretchr/testify/require"
)

func TestBasicExecution(t *testing.T) {
	pool := threadpool.New(nil)
	pool.AdjustThreadCount(2)
	defer pool.Shutdown(true)

	group := pool.CreateExecutorGroup("default", threadpool.GroupFlagNone)
	exec := group.CreateExecutor(0, 10*time.Millisecond, threadpool.FlagNone)

	var wg sync.WaitGroup
	var count atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		task := exec.QueueTask(func() {
			count.Add(1)
			wg.Done()
		}, priority.Normal, 0)
		require.NotNil(t, task)
	}
	wg.Wait()
	require.EqualValues(t, 50, count.Load())
}

func TestAdjustThreadCountToZeroParksQueueing(t *testing.T) {
	pool := threadpool.New(nil)
	pool.AdjustThreadCount(0)
	defer pool.Shutdown(false)

	group := pool.CreateExecutorGroup("default", threadpool.GroupFlagNone)
	exec := group.CreateExecutor(0, time.Millisecond, threadpool.FlagNone)

	ran := make(chan struct{}, 1)
	task := exec.QueueTask(func() { ran <- struct{}{} }, priority.Normal, 0)
	require.NotNil(t, task)

	select {
	case <-ran:
		t.Fatal("task ran with zero workers")
	case <-time.After(50 * time.Millisecond):
	}

	pool.AdjustThreadCount(1)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task did not run after adjusting thread count up")
	}
}

// TestPriorityPreemption verifies a single worker bound to executor A by
// NORMAL tasks is interrupted promptly once a BLOCKING task lands on
// executor B.
func TestPriorityPreemption(t *testing.T) {
	pool := threadpool.New(nil)
	pool.AdjustThreadCount(1)
	defer pool.Shutdown(true)

	group := pool.CreateExecutorGroup("default", threadpool.GroupFlagNone)
	execA := group.CreateExecutor(1, time.Hour, threadpool.FlagNone)
	execB := group.CreateExecutor(1, time.Hour, threadpool.FlagNone)

	for i := 0; i < 10; i++ {
		execA.QueueTask(func() { time.Sleep(50 * time.Millisecond) }, priority.Normal, int64(i))
	}

	time.Sleep(5 * time.Millisecond)

	started := make(chan struct{})
	execB.QueueTask(func() { close(started) }, priority.Blocking, 0)

	select {
	case <-started:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("blocking task was not preempted onto the worker in time")
	}
}

func TestHaltKillQueuesDiscardsPending(t *testing.T) {
	pool := threadpool.New(nil)
	pool.AdjustThreadCount(1)

	group := pool.CreateExecutorGroup("default", threadpool.GroupFlagNone)
	exec := group.CreateExecutor(0, time.Millisecond, threadpool.FlagNone)

	var ran atomic.Bool
	block := make(chan struct{})
	exec.QueueTask(func() { <-block }, priority.Normal, 0)
	exec.QueueTask(func() { ran.Store(true) }, priority.Normal, 1)

	time.Sleep(10 * time.Millisecond)
	pool.Halt(true)
	close(block)
	pool.Join(time.Second)

	require.False(t, ran.Load())
}

func TestJoinTimeout(t *testing.T) {
	pool := threadpool.New(nil)
	pool.AdjustThreadCount(1)
	group := pool.CreateExecutorGroup("default", threadpool.GroupFlagNone)
	exec := group.CreateExecutor(0, time.Hour, threadpool.FlagNone)
	block := make(chan struct{})
	exec.QueueTask(func() { <-block }, priority.Normal, 0)

	pool.Shutdown(false)
	require.False(t, pool.Join(20*time.Millisecond))
	close(block)
	require.True(t, pool.Join(time.Second))
}

func TestMetricsSnapshot(t *testing.T) {
	pool := threadpool.New(nil)
	pool.AdjustThreadCount(1)
	defer pool.Shutdown(true)

	group := pool.CreateExecutorGroup("default", threadpool.GroupFlagNone)
	exec := group.CreateExecutor(2, time.Hour, threadpool.FlagNone)

	block := make(chan struct{})
	exec.QueueTask(func() { <-block }, priority.Normal, 0)
	exec.QueueTask(func() {}, priority.Normal, 1)
	exec.QueueTask(func() {}, priority.Normal, 2)

	time.Sleep(10 * time.Millisecond)

	m := pool.Metrics()
	require.Equal(t, 1, m.WorkerCount)
	require.Len(t, m.Executors, 1)
	require.Equal(t, "default", m.Executors[0].Division)
	require.Equal(t, 2, m.Executors[0].MaxParallel)
	require.GreaterOrEqual(t, m.Executors[0].QueueDepth, 1)

	close(block)
}

func TestTaskCancelBeforeRun(t *testing.T) {
	pool := threadpool.New(nil)
	pool.AdjustThreadCount(1)
	defer pool.Shutdown(true)

	group := pool.CreateExecutorGroup("default", threadpool.GroupFlagNone)
	exec := group.CreateExecutor(0, time.Millisecond, threadpool.FlagNone)

	var ran atomic.Bool
	task := exec.QueueTask(func() { ran.Store(true) }, priority.Normal, 0)
	task.Cancel()

	time.Sleep(50 * time.Millisecond)
	require.False(t, ran.Load())
}
