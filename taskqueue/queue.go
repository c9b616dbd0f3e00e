package taskqueue

import (
	"container/heap"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/concurrentutil/priority"
)

type holderHeap []*holder

func (h holderHeap) Len() int { return len(h) }

func (h holderHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.priority != b.priority {
		return priority.Less(a.priority, b.priority)
	}
	if a.suborder != b.suborder {
		return priority.Less(a.suborder, b.suborder)
	}
	return priority.Less(a.id, b.id)
}

func (h holderHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *holderHeap) Push(x any) { *h = append(*h, x.(*holder)) }

func (h *holderHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is a prioritised, cancellable task queue. The zero value is not
// usable; construct with New.
type Queue struct {
	mu       sync.Mutex
	heap     holderHeap
	nextID   atomic.Int64
	executed atomic.Int64
	shutdown atomic.Bool
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{}
}

// CreateTask allocates a Task bound to this queue with the given initial
// priority and suborder. The task is not queued until Task.Queue is
// called.
func (q *Queue) CreateTask(run func(), p priority.Priority, suborder int64) *Task {
	return &Task{q: q, run: run, priority: p, suborder: suborder}
}

func (q *Queue) enqueue(t *Task) bool {
	if q.shutdown.Load() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateIdle {
		return false
	}
	h := &holder{task: t, priority: t.priority, suborder: t.suborder, id: q.nextID.Add(1)}
	t.holder = h
	t.state = stateQueued

	q.mu.Lock()
	if q.shutdown.Load() {
		q.mu.Unlock()
		t.state = stateIdle
		t.holder = nil
		return false
	}
	heap.Push(&q.heap, h)
	q.mu.Unlock()
	return true
}

// requeueLocked is called with t.mu held, after priority/suborder have
// already been mutated; it flags the old holder removed and pushes a
// fresh one reflecting the new key.
func (q *Queue) requeueLocked(t *Task, old *holder) {
	if old != nil {
		old.removed.Store(true)
	}
	h := &holder{task: t, priority: t.priority, suborder: t.suborder, id: q.nextID.Add(1)}
	t.holder = h
	q.mu.Lock()
	heap.Push(&q.heap, h)
	q.mu.Unlock()
}

// ExecuteTask pops the smallest-ordered non-cancelled task and runs it
// inline, returning true if a task ran. Lazily-removed holders at the top
// of the heap are discarded until a live one is found or the heap empties.
func (q *Queue) ExecuteTask() bool {
	for {
		q.mu.Lock()
		if q.heap.Len() == 0 {
			q.mu.Unlock()
			return false
		}
		h := heap.Pop(&q.heap).(*holder)
		q.mu.Unlock()

		if h.removed.Load() {
			continue
		}
		if h.task.Execute() {
			q.executed.Add(1)
			return true
		}
		// Lost the race to Cancel; try the next holder.
	}
}

// ExecutedCount returns the number of tasks this queue has run.
func (q *Queue) ExecutedCount() int64 {
	return q.executed.Load()
}

// Len reports the number of live (non-lazily-removed) holders currently
// resident in the queue. It is an instantaneous, racy estimate.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, h := range q.heap {
		if !h.removed.Load() {
			n++
		}
	}
	return n
}

// Shutdown prevents any further task from being queued. Already-queued
// tasks are left pending; drain them with ExecuteTask.
func (q *Queue) Shutdown() {
	q.shutdown.Store(true)
}

// IsShutdown reports whether Shutdown has been called.
func (q *Queue) IsShutdown() bool {
	return q.shutdown.Load()
}

// CancelAll cancels every task currently resident in the queue without
// running any of them, for a pool Halt(killQueues=true). Tasks that race
// with a concurrent Execute may still run; CancelAll only wins the race
// for tasks not yet claimed.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	pending := append([]*holder(nil), q.heap...)
	q.heap = q.heap[:0]
	q.mu.Unlock()
	for _, h := range pending {
		if !h.removed.Load() {
			h.task.Cancel()
		}
	}
}
