// Package intmap implements a concurrent int64-keyed chained hash table
// with lock-free readers and incremental, redirect-based resizing.
// Writers serialise per bucket via a fine-grained mutex; readers never
// take a lock.
package intmap

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/concurrentutil/internal/xsync"
)

// Sentinel threshold values: any non-negative value is the current resize
// trigger.
const (
	NoResize int64 = -1
	Resizing int64 = -2
)

// MaximumCapacity is the largest power-of-two bucket count this table will
// grow to; beyond it, threshold becomes NoResize and inserts succeed
// without further resizing.
const MaximumCapacity = 1 << 30

const defaultLoadFactor = 0.75

// ErrInvalidLoadFactor is wrapped in the panic value when a non-finite or
// non-positive load factor is supplied to a constructor.
var ErrInvalidLoadFactor = errors.New("intmap: load factor must be finite and positive")

// bucketArray is one generation of the table's backing storage.
type bucketArray[V any] struct {
	heads []atomic.Pointer[entry[V]]
	locks []sync.Mutex
}

func newBucketArray[V any](capacity int) *bucketArray[V] {
	return &bucketArray[V]{
		heads: make([]atomic.Pointer[entry[V]], capacity),
		locks: make([]sync.Mutex, capacity),
	}
}

// Table is the concurrent int64->V chained hash table.
type Table[V any] struct {
	table      atomic.Pointer[bucketArray[V]]
	loadFactor float32
	size       *xsync.StripedCounter
	threshold  atomic.Int64
}

// NewWithCapacity creates a table whose initial bucket count is the next
// power of two >= capacity (minimum 1), with the given load factor (0
// selects the default of 0.75).
func NewWithCapacity[V any](capacity int, loadFactor float32) *Table[V] {
	if loadFactor == 0 {
		loadFactor = defaultLoadFactor
	}
	if loadFactor != loadFactor || loadFactor <= 0 || math.IsInf(float64(loadFactor), 0) { // NaN, non-positive or infinite
		panic(fmt.Errorf("%w: got %v", ErrInvalidLoadFactor, loadFactor))
	}
	if capacity < 1 {
		capacity = 1
	}
	cap := nextPowerOfTwo(capacity)
	if cap > MaximumCapacity {
		cap = MaximumCapacity
	}
	t := &Table[V]{
		loadFactor: loadFactor,
		size:       xsync.NewStripedCounter(runtimeStripes(), 64),
	}
	t.table.Store(newBucketArray[V](cap))
	t.threshold.Store(thresholdFor(cap, loadFactor))
	return t
}

// NewWithExpectedSize creates a table sized so that inserting expected
// elements, at the given load factor, should not immediately trigger a
// resize.
func NewWithExpectedSize[V any](expected int, loadFactor float32) *Table[V] {
	if loadFactor == 0 {
		loadFactor = defaultLoadFactor
	}
	cap := int(float32(expected)/loadFactor) + 1
	return NewWithCapacity[V](cap, loadFactor)
}

func thresholdFor(capacity int, loadFactor float32) int64 {
	if capacity >= MaximumCapacity {
		return NoResize
	}
	return int64(float32(capacity) * loadFactor)
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func runtimeStripes() int {
	return 16
}

// mix is a bijective multiplicative avalanche: a golden-ratio multiplier
// followed by an xor-shift.
func mix(key int64) uint64 {
	h := uint64(key) * 0x9E3779B97F4A7C15
	h ^= h >> 32
	h ^= h >> 16
	return h
}

func bucketIndex(key int64, length int) int {
	return int(mix(key) & uint64(length-1))
}

// Get implements the lock-free read path: walk the bucket chain following
// redirects, returning the value of the first non-placeholder match.
func (t *Table[V]) Get(key int64) (V, bool) {
	arr := t.table.Load()
	for {
		idx := bucketIndex(key, len(arr.heads))
		node := arr.heads[idx].Load()
		redirected := false
		for node != nil {
			if node.redirect != nil {
				arr = node.redirect
				redirected = true
				break
			}
			if node.key == key {
				box := node.value.Load()
				if box == nil {
					var zero V
					return zero, false
				}
				return box.v, true
			}
			node = node.next.Load()
		}
		if redirected {
			continue
		}
		var zero V
		return zero, false
	}
}

// GetOrDefault returns the mapped value, or def if key is absent.
func (t *Table[V]) GetOrDefault(key int64, def V) V {
	if v, ok := t.Get(key); ok {
		return v
	}
	return def
}

// ContainsKey reports whether key is mapped.
func (t *Table[V]) ContainsKey(key int64) bool {
	_, ok := t.Get(key)
	return ok
}

// ContainsValue reports whether any mapped value equals value per eq. This
// requires an explicit comparator because Go generics give no default
// equality for an unconstrained V.
func (t *Table[V]) ContainsValue(value V, eq func(V, V) bool) bool {
	found := false
	t.ForEach(func(_ int64, v V) bool {
		if eq(v, value) {
			found = true
			return false
		}
		return true
	})
	return found
}

// Size returns the saturating element count.
func (t *Table[V]) Size() int64 {
	return t.size.Sum()
}

// IsEmpty reports whether Size() == 0.
func (t *Table[V]) IsEmpty() bool {
	return t.Size() == 0
}

// withBucket implements the write path's bucket location and locking:
// locate the bucket in the current table generation, lock it, and, if the
// head turned out to be a redirect installed by a resize, retry in the
// successor table the redirect points to.
func (t *Table[V]) withBucket(key int64, fn func(arr *bucketArray[V], idx int)) {
	arr := t.table.Load()
	for {
		idx := bucketIndex(key, len(arr.heads))
		arr.locks[idx].Lock()
		head := arr.heads[idx].Load()
		if head != nil && head.redirect != nil {
			arr.locks[idx].Unlock()
			arr = head.redirect
			continue
		}
		t.callWithBucketLocked(arr, idx, fn)
		return
	}
}

// callWithBucketLocked invokes fn with arr.locks[idx] held, unlocking it via
// defer so a panicking fn (a user callback passed through Compute/Merge/
// RemoveIf and friends) still releases the bucket instead of leaving it
// permanently locked for every future operation that hashes to idx.
func (t *Table[V]) callWithBucketLocked(arr *bucketArray[V], idx int, fn func(arr *bucketArray[V], idx int)) {
	defer arr.locks[idx].Unlock()
	fn(arr, idx)
}

// Put inserts or overwrites the mapping for key, returning the prior value.
func (t *Table[V]) Put(key int64, value V) (old V, hadOld bool) {
	grew := false
	t.withBucket(key, func(arr *bucketArray[V], idx int) {
		node := arr.heads[idx].Load()
		var prev *entry[V]
		for node != nil {
			if node.key == key {
				if box := node.value.Load(); box != nil {
					old, hadOld = box.v, true
				}
				node.value.Store(&valueBox[V]{v: value})
				return
			}
			prev = node
			node = node.next.Load()
		}
		n := newEntry(key, value)
		if prev == nil {
			arr.heads[idx].Store(n)
		} else {
			prev.next.Store(n)
		}
		t.size.Add(uint64(idx), 1)
		grew = true
	})
	if grew {
		t.maybeResize()
	}
	return
}

// PutIfAbsent inserts value only if key is not already (non-placeholder)
// mapped, returning the existing value if any.
func (t *Table[V]) PutIfAbsent(key int64, value V) (existing V, existed bool) {
	grew := false
	t.withBucket(key, func(arr *bucketArray[V], idx int) {
		node := arr.heads[idx].Load()
		var prev *entry[V]
		for node != nil {
			if node.key == key {
				if box := node.value.Load(); box != nil {
					existing, existed = box.v, true
					return
				}
				node.value.Store(&valueBox[V]{v: value})
				return
			}
			prev = node
			node = node.next.Load()
		}
		n := newEntry(key, value)
		if prev == nil {
			arr.heads[idx].Store(n)
		} else {
			prev.next.Store(n)
		}
		t.size.Add(uint64(idx), 1)
		grew = true
	})
	if grew {
		t.maybeResize()
	}
	return
}

// Replace overwrites the value for key only if it is already present.
func (t *Table[V]) Replace(key int64, value V) (old V, hadOld bool) {
	t.withBucket(key, func(arr *bucketArray[V], idx int) {
		node := arr.heads[idx].Load()
		for node != nil {
			if node.key == key {
				if box := node.value.Load(); box != nil {
					old, hadOld = box.v, true
					node.value.Store(&valueBox[V]{v: value})
				}
				return
			}
			node = node.next.Load()
		}
	})
	return
}

// ReplaceExpected overwrites key's value with updated only if its current
// value equals expected per eq.
func (t *Table[V]) ReplaceExpected(key int64, expected, updated V, eq func(V, V) bool) bool {
	replaced := false
	t.withBucket(key, func(arr *bucketArray[V], idx int) {
		node := arr.heads[idx].Load()
		for node != nil {
			if node.key == key {
				box := node.value.Load()
				if box != nil && eq(box.v, expected) {
					node.value.Store(&valueBox[V]{v: updated})
					replaced = true
				}
				return
			}
			node = node.next.Load()
		}
	})
	return replaced
}

// Remove deletes key, returning the removed value if present.
func (t *Table[V]) Remove(key int64) (V, bool) {
	return t.removeIf(key, func(V) bool { return true })
}

// RemoveExpected deletes key only if its current value equals expected.
func (t *Table[V]) RemoveExpected(key int64, expected V, eq func(V, V) bool) bool {
	_, removed := t.removeIf(key, func(v V) bool { return eq(v, expected) })
	return removed
}

// RemoveIf deletes key only if predicate(currentValue) is true, returning
// the removed value.
func (t *Table[V]) RemoveIf(key int64, predicate func(V) bool) (V, bool) {
	return t.removeIf(key, predicate)
}

func (t *Table[V]) removeIf(key int64, predicate func(V) bool) (removedValue V, removed bool) {
	t.withBucket(key, func(arr *bucketArray[V], idx int) {
		var prev *entry[V]
		node := arr.heads[idx].Load()
		for node != nil {
			if node.key == key {
				box := node.value.Load()
				if box == nil || !predicate(box.v) {
					return
				}
				removedValue, removed = box.v, true
				next := node.next.Load()
				if prev == nil {
					arr.heads[idx].Store(next)
				} else {
					prev.next.Store(next)
				}
				t.size.Add(uint64(idx), -1)
				return
			}
			prev = node
			node = node.next.Load()
		}
	})
	return
}

// Compute invokes fn with the current value (and whether it was present),
// holding the bucket lock for the full call so fn runs at most once and
// sees a consistent "before" value. If
// fn returns keep=false, the mapping (if any) is removed; otherwise it is
// set to the returned value.
func (t *Table[V]) Compute(key int64, fn func(old V, present bool) (newValue V, keep bool)) (result V, present bool) {
	grew := false
	t.withBucket(key, func(arr *bucketArray[V], idx int) {
		var prev *entry[V]
		node := arr.heads[idx].Load()
		for node != nil {
			if node.key == key {
				box := node.value.Load()
				var cur V
				had := box != nil
				if had {
					cur = box.v
				}
				newValue, keep := fn(cur, had)
				if !keep {
					if had {
						next := node.next.Load()
						if prev == nil {
							arr.heads[idx].Store(next)
						} else {
							prev.next.Store(next)
						}
						t.size.Add(uint64(idx), -1)
					}
					return
				}
				node.value.Store(&valueBox[V]{v: newValue})
				result, present = newValue, true
				return
			}
			prev = node
			node = node.next.Load()
		}
		var zero V
		newValue, keep := fn(zero, false)
		if !keep {
			return
		}
		n := newEntry(key, newValue)
		if prev == nil {
			arr.heads[idx].Store(n)
		} else {
			prev.next.Store(n)
		}
		t.size.Add(uint64(idx), 1)
		result, present = newValue, true
		grew = true
	})
	if grew {
		t.maybeResize()
	}
	return
}

// ComputeIfAbsent inserts fn()'s result only if key is not mapped. fn
// returns ok=false to decline insertion.
func (t *Table[V]) ComputeIfAbsent(key int64, fn func() (V, bool)) (result V, present bool) {
	return t.Compute(key, func(old V, had bool) (V, bool) {
		if had {
			return old, true
		}
		v, ok := fn()
		return v, ok
	})
}

// ComputeIfPresent updates key's value via fn only if already mapped. fn
// returns keep=false to remove the mapping.
func (t *Table[V]) ComputeIfPresent(key int64, fn func(V) (V, bool)) (result V, present bool) {
	return t.Compute(key, func(old V, had bool) (V, bool) {
		if !had {
			var zero V
			return zero, false
		}
		return fn(old)
	})
}

// Merge combines an existing value with value via fn, or inserts value if
// absent. fn returning keep=false removes the mapping.
func (t *Table[V]) Merge(key int64, value V, fn func(old, new V) (V, bool)) (result V, present bool) {
	return t.Compute(key, func(old V, had bool) (V, bool) {
		if !had {
			return value, true
		}
		return fn(old, value)
	})
}

// Clear empties the table. It is explicitly non-atomic: concurrent writers
// may still observe partial progress.
func (t *Table[V]) Clear() {
	arr := t.table.Load()
	for i := range arr.heads {
		arr.locks[i].Lock()
		head := arr.heads[i].Load()
		if head == nil || head.redirect == nil {
			n := 0
			for node := head; node != nil; node = node.next.Load() {
				if node.value.Load() != nil {
					n++
				}
			}
			arr.heads[i].Store(nil)
			if n > 0 {
				t.size.Add(uint64(i), -int64(n))
			}
		}
		arr.locks[i].Unlock()
	}
}

// maybeResize checks the resize trigger and arbitrates a single winner via
// CAS on threshold.
func (t *Table[V]) maybeResize() {
	for {
		th := t.threshold.Load()
		if th < 0 {
			return
		}
		if t.size.Sum() < th {
			return
		}
		if t.threshold.CompareAndSwap(th, Resizing) {
			t.doResize()
			return
		}
	}
}

// doResize performs an incremental, redirect-based resize: acquire each
// old bucket's lock, rebuild its chain into fresh nodes in the new table,
// then release-store a redirect sentinel at the old bucket head.
func (t *Table[V]) doResize() {
	old := t.table.Load()
	oldLen := len(old.heads)
	if oldLen >= MaximumCapacity {
		t.threshold.Store(NoResize)
		return
	}
	newLen := oldLen * 2
	if newLen > MaximumCapacity {
		newLen = MaximumCapacity
	}
	newArr := newBucketArray[V](newLen)

	for i := 0; i < oldLen; i++ {
		old.locks[i].Lock()
		for node := old.heads[i].Load(); node != nil; node = node.next.Load() {
			box := node.value.Load()
			newIdx := bucketIndex(node.key, newLen)
			fresh := &entry[V]{key: node.key}
			fresh.value.Store(box)
			fresh.next.Store(newArr.heads[newIdx].Load())
			newArr.heads[newIdx].Store(fresh)
		}
		old.heads[i].Store(&entry[V]{redirect: newArr})
		old.locks[i].Unlock()
	}

	t.table.Store(newArr)
	t.threshold.Store(thresholdFor(newLen, t.loadFactor))
}
