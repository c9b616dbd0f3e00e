// Package intmap implements a concurrent int64-keyed hash table with
// lock-free reads and incremental, resize-transparent writes.
//
// Reads (Get, ContainsKey, ForEach, Keys, Values) never block and never
// allocate beyond what the call itself returns; they tolerate concurrent
// Put/Remove and concurrent resizes by following redirect sentinels left
// behind by a resize in progress. Writes serialise per bucket behind a
// fine-grained mutex, so two writers touching different buckets never
// contend.
//
// A resize is triggered by the writer that pushes Size() past the current
// threshold; exactly one such writer performs it, walking the old buckets
// one at a time, copying each chain's entries into fresh nodes in the new
// table, and then publishing a redirect sentinel at the old bucket head. Readers
// and other writers already inside that bucket transparently continue
// into the new generation; nothing blocks for the resize's full duration.
package intmap
