// Package threadpool implements a prioritised, multi-queue worker pool.
//
// A Pool owns a set of worker goroutines and a set of Groups; each Group
// owns one or more Executors, each backed by its own taskqueue.Queue, its
// own concurrency cap (enforced with a golang.org/x/sync/semaphore.Weighted
// rather than a hand-rolled counter gate), and a poll hold time. Workers
// repeatedly select the executor with spare capacity that has the lowest
// (priority, current parallelism, last retrieval time) tuple, drain it for
// up to its hold time (or until a submission at High or above raises an
// alert), and move on. The priority in that tuple is a per-executor base
// priority, which is Normal for every executor; the priorities of the
// tasks an executor holds do not enter the selection.
package threadpool
