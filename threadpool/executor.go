package threadpool

import (
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/joeycumines/concurrentutil/priority"
	"github.com/joeycumines/concurrentutil/taskqueue"
)

// ExecutorFlags tunes per-executor worker behaviour. Reserved for future
// use; no flag bits are currently defined beyond FlagNone.
type ExecutorFlags uint32

// FlagNone selects default behaviour.
const FlagNone ExecutorFlags = 0

// Executor is one prioritised task queue within a Group, with its own
// concurrency cap and poll hold time.
type Executor struct {
	group       *Group
	queue       *taskqueue.Queue
	maxParallel int
	sem         *semaphore.Weighted
	holdTime    time.Duration
	flags       ExecutorFlags

	basePriority    atomic.Int32
	currentPara     atomic.Int32
	lastRetrievedNs atomic.Int64
	detached        atomic.Bool
}

func newExecutor(g *Group, maxParallelism int, holdTime time.Duration, flags ExecutorFlags) *Executor {
	weight := int64(maxParallelism)
	if maxParallelism <= 0 {
		weight = math.MaxInt32
	}
	e := &Executor{
		group:       g,
		queue:       taskqueue.New(),
		maxParallel: maxParallelism,
		sem:         semaphore.NewWeighted(weight),
		holdTime:    holdTime,
		flags:       flags,
	}
	e.basePriority.Store(int32(priority.Normal))
	return e
}

// QueueTask enqueues run at the given priority and suborder, returning its
// Task handle, or nil if the executor (or its pool) has shut down.
func (e *Executor) QueueTask(run func(), p priority.Priority, suborder int64) *Task {
	if !p.IsValidSchedulable() {
		panic("threadpool: cannot queue at priority Completing")
	}
	qt := e.queue.CreateTask(run, p, suborder)
	if !qt.Queue() {
		return nil
	}
	t := &Task{inner: qt, executor: e}
	if p.IsHigherOrEqual(priority.High) {
		e.group.pool.notifyHighPriority()
	}
	return t
}

func (e *Executor) hasCapacity() bool {
	if e.maxParallel <= 0 {
		return true
	}
	return int(e.currentPara.Load()) < e.maxParallel
}

// tryAcquire attempts to claim one parallelism slot for a worker about to
// drain this executor. Safe to call concurrently; the semaphore is the
// sole arbiter of the race.
func (e *Executor) tryAcquire() bool {
	if !e.sem.TryAcquire(1) {
		return false
	}
	e.currentPara.Add(1)
	e.group.currentPara.Add(1)
	e.lastRetrievedNs.Store(time.Now().UnixNano())
	return true
}

// release gives back a previously acquired parallelism slot.
func (e *Executor) release() {
	e.currentPara.Add(-1)
	e.group.currentPara.Add(-1)
	e.sem.Release(1)
}

func (e *Executor) lastRetrieved() int64 { return e.lastRetrievedNs.Load() }

func (e *Executor) selectionKey() (p int32, para int32, lastRetrieved int64) {
	return e.basePriority.Load(), e.currentPara.Load(), e.lastRetrieved()
}

// Shutdown stops new tasks from being queued on this executor. Already
// queued tasks still run; once its queue drains and it is detected empty
// by a worker's return_queue step, it is detached from its group.
func (e *Executor) Shutdown() {
	e.queue.Shutdown()
}

func (e *Executor) isEmpty() bool {
	return e.queue.Len() == 0
}
