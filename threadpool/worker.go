package threadpool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/joeycumines/concurrentutil/internal/xsync"
)

// worker is one of a Pool's backing goroutines, draining whatever
// Executor obtainQueue selects until its hold time or the pool's
// lifecycle tells it to stop.
type worker struct {
	pool    *Pool
	index   int
	cancel  context.CancelFunc
	alerted atomic.Bool
}

const spinWait = 100 * time.Microsecond

func (w *worker) loop(ctx context.Context) {
	defer w.pool.wg.Done()
	w.pool.configure(w.index)

	xsync.DefaultLogger().Debug().Str("component", "threadpool").Int("worker", w.index).Log("worker started")
	defer xsync.DefaultLogger().Debug().Str("component", "threadpool").Int("worker", w.index).Log("worker halted")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if w.pool.halted.Load() {
			return
		}

		e := w.pool.obtainQueue()
		if e == nil {
			select {
			case <-ctx.Done():
				return
			case <-w.pool.idleSignal:
			case <-time.After(spinWait):
			}
			continue
		}

		w.drain(ctx, e)
	}
}

// drain pulls tasks from e until it empties, its hold time elapses, a
// high-priority alert interrupts this worker, or the pool halts.
func (w *worker) drain(ctx context.Context, e *Executor) {
	defer w.returnQueue(e)

	deadline := time.Now().Add(e.holdTime)
	for {
		if w.pool.halted.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		if w.alerted.CompareAndSwap(true, false) {
			return
		}
		if e.holdTime > 0 && time.Now().After(deadline) {
			return
		}
		if !e.queue.ExecuteTask() {
			return
		}
	}
}

func (w *worker) returnQueue(e *Executor) {
	e.release()
	e.group.detachIfDrained(e)
}
