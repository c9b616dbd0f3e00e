package taskqueue_test

import (
	"sync"
	"testing"

	"github.com/joeycumines/concurrentutil/priority"
	"github.com/joeycumines/concurrentutil/taskqueue"
	"github.com/stretchr/testify/require"
)

// TestQueueOrdering verifies ExecuteTask always picks the
// lexicographically smallest (priority, suborder, id).
func TestQueueOrdering(t *testing.T) {
	q := taskqueue.New()
	var order []string

	mk := func(name string, p priority.Priority, sub int64) {
		task := q.CreateTask(func() { order = append(order, name) }, p, sub)
		require.True(t, task.Queue())
	}

	mk("normal-1", priority.Normal, 5)
	mk("high", priority.High, 0)
	mk("normal-0", priority.Normal, 0)
	mk("blocking", priority.Blocking, 100)

	for q.ExecuteTask() {
	}

	require.Equal(t, []string{"blocking", "high", "normal-0", "normal-1"}, order)
}

func TestCancelRaceWithExecute(t *testing.T) {
	q := taskqueue.New()
	ran := false
	task := q.CreateTask(func() { ran = true }, priority.Normal, 0)
	require.True(t, task.Queue())
	require.True(t, task.Cancel())
	require.False(t, task.Cancel())

	require.False(t, q.ExecuteTask())
	require.False(t, ran)
}

func TestSetPriorityRekeys(t *testing.T) {
	q := taskqueue.New()
	var order []int
	mk := func(id int, p priority.Priority) *taskqueue.Task {
		task := q.CreateTask(func() { order = append(order, id) }, p, 0)
		require.True(t, task.Queue())
		return task
	}

	a := mk(1, priority.Normal)
	mk(2, priority.Normal)

	a.SetPriority(priority.Blocking)

	for q.ExecuteTask() {
	}
	require.Equal(t, []int{1, 2}, order)
}

func TestQueueAfterShutdownFails(t *testing.T) {
	q := taskqueue.New()
	q.Shutdown()
	task := q.CreateTask(func() {}, priority.Normal, 0)
	require.False(t, task.Queue())
}

func TestShutdownDoesNotDrainPending(t *testing.T) {
	q := taskqueue.New()
	ran := false
	task := q.CreateTask(func() { ran = true }, priority.Normal, 0)
	require.True(t, task.Queue())
	q.Shutdown()
	require.True(t, q.ExecuteTask())
	require.True(t, ran)
}

// TestExecuteRecoversPanickingTask verifies a task whose runnable panics
// does not propagate the panic out of ExecuteTask, and that the queue
// keeps working for tasks queued after it.
func TestExecuteRecoversPanickingTask(t *testing.T) {
	q := taskqueue.New()
	bad := q.CreateTask(func() { panic("boom") }, priority.Normal, 0)
	require.True(t, bad.Queue())

	ran := false
	good := q.CreateTask(func() { ran = true }, priority.Normal, 1)
	require.True(t, good.Queue())

	require.NotPanics(t, func() {
		for q.ExecuteTask() {
		}
	})
	require.True(t, ran)
	require.EqualValues(t, 2, q.ExecutedCount())
}

func TestConcurrentQueueAndExecute(t *testing.T) {
	q := taskqueue.New()
	const n = 5000
	var wg sync.WaitGroup
	var mu sync.Mutex
	ran := map[int]bool{}

	for i := 0; i < n; i++ {
		i := i
		task := q.CreateTask(func() {
			mu.Lock()
			ran[i] = true
			mu.Unlock()
		}, priority.Normal, int64(i))
		require.True(t, task.Queue())
	}

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q.ExecuteTask() {
			}
		}()
	}
	wg.Wait()

	require.Len(t, ran, n)
	require.EqualValues(t, n, q.ExecutedCount())
}
