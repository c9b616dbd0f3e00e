// Package taskqueue implements an ordered, cancellable task queue keyed by
// (priority, suborder, creation id), as consumed by a threadpool.Executor.
//
// The ordered index is a mutex-guarded container/heap with lazy deletion
// rather than a concurrent skip-list: Go's ecosystem has no widely-used
// lock-free skip-list, and a heap gives the same asymptotic pop/insert
// behaviour at a fraction of the complexity for typical worker-pool queue
// depths. Re-keying a queued task (SetPriority, SetSubOrder) flags its old
// Holder removed and pushes a fresh one, since container/heap has no
// decrease-key operation.
package taskqueue
