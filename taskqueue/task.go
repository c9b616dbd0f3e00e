package taskqueue

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/concurrentutil/internal/xsync"
	"github.com/joeycumines/concurrentutil/priority"
)

// state mirrors a Task's lifecycle: idle/queued tasks can still move;
// completing is terminal.
type state int32

const (
	stateIdle state = iota
	stateQueued
	stateCompleting
)

// Task is a unit of work tracked by a Queue. It is created by
// Queue.CreateTask and must be queued before it can run.
type Task struct {
	q        *Queue
	run      func()
	mu       sync.Mutex
	priority priority.Priority
	suborder int64
	state    state
	holder   *holder
}

// holder is the queue's ordered-index keying record: each re-key creates
// a fresh holder and flags the previous one removed, rather than mutating
// an entry already sitting in the heap (container/heap has no
// decrease-key; lazy deletion stands in for a concurrent skip-list's
// in-place re-key).
type holder struct {
	task     *Task
	priority priority.Priority
	suborder int64
	id       int64
	removed  atomic.Bool
}

// Priority returns the task's current scheduling priority.
func (t *Task) Priority() priority.Priority {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.priority
}

// SubOrder returns the task's current tiebreaker key.
func (t *Task) SubOrder() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.suborder
}

// IsQueued reports whether the task currently sits in its queue awaiting
// execution.
func (t *Task) IsQueued() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateQueued
}

// SetPriority re-keys the task at a new priority, inserting a fresh
// Holder and flagging the old one removed. If the task is not currently
// queued, only the stored priority changes; it applies when the task is
// next queued.
func (t *Task) SetPriority(p priority.Priority) {
	t.rekey(func() { t.priority = p })
}

// SetSubOrder re-keys the task at a new suborder.
func (t *Task) SetSubOrder(s int64) {
	t.rekey(func() { t.suborder = s })
}

func (t *Task) rekey(mutate func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateQueued {
		mutate()
		return
	}
	old := t.holder
	mutate()
	t.q.requeueLocked(t, old)
}

// Queue inserts the task into its queue at its current (priority,
// suborder). Returns false if the queue has been shut down or the task is
// already queued or completing.
func (t *Task) Queue() bool {
	return t.q.enqueue(t)
}

// Cancel atomically marks the task completing, preventing it from being
// executed. Returns false if it was already completing (cancelled or
// already executed).
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == stateCompleting {
		return false
	}
	t.state = stateCompleting
	if t.holder != nil {
		t.holder.removed.Store(true)
		t.holder = nil
	}
	return true
}

// Execute atomically marks the task completing and, if it won the race
// against Cancel, invokes its runnable inline. A panicking runnable is
// recovered and logged rather than propagated, so one bad task cannot take
// down the worker draining it (and, left unrecovered, the whole process).
func (t *Task) Execute() bool {
	t.mu.Lock()
	if t.state == stateCompleting {
		t.mu.Unlock()
		return false
	}
	t.state = stateCompleting
	t.holder = nil
	t.mu.Unlock()
	t.runRecovered()
	return true
}

func (t *Task) runRecovered() {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("taskqueue: task panicked: %v", r)
			xsync.DefaultLogger().Err().Err(err).Str("component", "taskqueue").Log("task panicked")
		}
	}()
	t.run()
}
