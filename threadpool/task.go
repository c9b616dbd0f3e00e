package threadpool

import (
	"github.com/joeycumines/concurrentutil/priority"
	"github.com/joeycumines/concurrentutil/taskqueue"
)

// Task is a handle to work queued on an Executor.
type Task struct {
	inner    *taskqueue.Task
	executor *Executor
}

// Cancel prevents the task from running if it has not already started.
func (t *Task) Cancel() bool { return t.inner.Cancel() }

// Queue re-queues the task if it is not currently queued or completing.
func (t *Task) Queue() bool { return t.inner.Queue() }

// IsQueued reports whether the task is currently queued and pending.
func (t *Task) IsQueued() bool { return t.inner.IsQueued() }

// Execute runs the task's runnable synchronously if it has not already
// been claimed by a cancel or another execute.
func (t *Task) Execute() bool { return t.inner.Execute() }

// Priority returns the task's current scheduling priority.
func (t *Task) Priority() priority.Priority { return t.inner.Priority() }

// SetPriority re-keys the task's scheduling priority, raising a pool
// alert if it crosses into High or above.
func (t *Task) SetPriority(p priority.Priority) {
	t.inner.SetPriority(p)
	if p.IsHigherOrEqual(priority.High) {
		t.executor.group.pool.notifyHighPriority()
	}
}

// SubOrder returns the task's current tiebreaker key.
func (t *Task) SubOrder() int64 { return t.inner.SubOrder() }

// SetSubOrder re-keys the task's tiebreaker.
func (t *Task) SetSubOrder(s int64) { t.inner.SetSubOrder(s) }
