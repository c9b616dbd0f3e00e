package threadpool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/concurrentutil/priority"
)

// GroupFlags tunes group-wide worker behaviour.
type GroupFlags uint32

const (
	// GroupFlagNone selects default behaviour.
	GroupFlagNone GroupFlags = 0
)

// Group is a named collection of Executors whose priorities are directly
// comparable to each other; cross-group comparisons are only meaningful
// between groups sharing a division.
type Group struct {
	pool     *Pool
	division string
	flags    GroupFlags

	mu        sync.Mutex
	executors []*Executor

	currentPara atomic.Int32
}

// Division returns the group's division label.
func (g *Group) Division() string { return g.division }

// CreateExecutor adds a new Executor to this group.
func (g *Group) CreateExecutor(maxParallelism int, holdTime time.Duration, flags ExecutorFlags) *Executor {
	e := newExecutor(g, maxParallelism, holdTime, flags)
	g.mu.Lock()
	g.executors = append(g.executors, e)
	g.mu.Unlock()
	return e
}

// obtainExecutor selects the executor with the lowest
// (priority, current_parallelism, last_retrieved) tuple among those with
// spare capacity.
func (g *Group) obtainExecutor() *Executor {
	g.mu.Lock()
	defer g.mu.Unlock()
	var best *Executor
	var bestP, bestPara int32
	var bestLast int64
	for _, e := range g.executors {
		if e.detached.Load() || !e.hasCapacity() {
			continue
		}
		p, para, last := e.selectionKey()
		if best == nil || lessTuple(p, para, last, bestP, bestPara, bestLast) {
			best, bestP, bestPara, bestLast = e, p, para, last
		}
	}
	return best
}

func lessTuple(p1, para1 int32, last1 int64, p2, para2 int32, last2 int64) bool {
	if p1 != p2 {
		return priority.Less(p1, p2)
	}
	if para1 != para2 {
		return priority.Less(para1, para2)
	}
	return priority.Less(last1, last2)
}

// detachIfDrained removes an executor from the group once it is shut down
// and empty.
func (g *Group) detachIfDrained(e *Executor) {
	if !e.queue.IsShutdown() || !e.isEmpty() {
		return
	}
	if !e.detached.CompareAndSwap(false, true) {
		return
	}
	g.mu.Lock()
	for i, candidate := range g.executors {
		if candidate == e {
			g.executors = append(g.executors[:i], g.executors[i+1:]...)
			break
		}
	}
	g.mu.Unlock()
}

