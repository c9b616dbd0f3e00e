package intmap

// frame tracks iteration progress through one (possibly redirected) bucket
// generation. A key found in bucket k of a table of length n lands in
// either bucket k or bucket k+n of a table of length 2n (the same
// split-bit relationship doubling hash tables rely on), so when a bucket
// head turns out to be a redirect, the frame is replaced by two child
// frames (idx and idx+oldLen in the successor generation) rather than
// restarting the whole iterator, meaning a resize racing with iteration
// never causes entries to be skipped.
type frame[V any] struct {
	arr    *bucketArray[V]
	idx    int
	node   *entry[V]
	loaded bool
}

// Iterator performs a single weakly-consistent pass over a Table's
// entries. It tolerates concurrent structural modification: entries
// present for the iterator's entire lifetime are guaranteed to be
// observed at most once each; entries added or removed mid-iteration may
// or may not be seen.
type Iterator[V any] struct {
	t          *Table[V]
	bucketIdx  int
	bucketLen  int
	baseArr    *bucketArray[V]
	stack      []frame[V]
	nextKey    int64
	nextVal    V
	hasNext    bool
}

// NewIterator creates an Iterator over t's current contents.
func NewIterator[V any](t *Table[V]) *Iterator[V] {
	arr := t.table.Load()
	it := &Iterator[V]{t: t, baseArr: arr, bucketLen: len(arr.heads)}
	it.pushBucket(arr, 0)
	it.advance()
	return it
}

func (it *Iterator[V]) pushBucket(arr *bucketArray[V], idx int) {
	it.stack = append(it.stack, frame[V]{arr: arr, idx: idx})
}

// HasNext reports whether Next would yield another entry.
func (it *Iterator[V]) HasNext() bool { return it.hasNext }

// Next returns the next (key, value) pair, advancing the iterator. It
// panics if HasNext is false.
func (it *Iterator[V]) Next() (int64, V) {
	if !it.hasNext {
		panic("intmap: Iterator.Next called with no remaining entries")
	}
	k, v := it.nextKey, it.nextVal
	it.advance()
	return k, v
}

// advance walks forward to the next live, non-placeholder entry,
// chasing redirects within the current bucket and moving to the next
// top-level bucket index once the current one's stack drains.
func (it *Iterator[V]) advance() {
	for {
		for len(it.stack) > 0 {
			// Re-derive top fresh: a prior append in this same pass may have
			// reallocated the backing array, invalidating any earlier pointer.
			top := &it.stack[len(it.stack)-1]

			if !top.loaded {
				top.node = top.arr.heads[top.idx].Load()
				top.loaded = true
			}

			if top.node != nil && top.node.redirect != nil {
				newArr := top.node.redirect
				oldLen := len(top.arr.heads)
				idx := top.idx
				it.stack = it.stack[:len(it.stack)-1]
				it.pushBucket(newArr, idx+oldLen)
				it.pushBucket(newArr, idx)
				continue
			}

			if top.node == nil {
				it.stack = it.stack[:len(it.stack)-1]
				continue
			}

			n := top.node
			top.node = n.next.Load()

			box := n.value.Load()
			if box == nil {
				continue
			}
			it.hasNext = true
			it.nextKey = n.key
			it.nextVal = box.v
			return
		}

		it.bucketIdx++
		if it.bucketIdx >= it.bucketLen {
			it.hasNext = false
			return
		}
		it.pushBucket(it.baseArr, it.bucketIdx)
	}
}

// Keys returns a snapshot-order slice of all keys currently visible to a
// fresh iterator, for ergonomic range-style use.
func (t *Table[V]) Keys() []int64 {
	var out []int64
	t.ForEach(func(k int64, _ V) bool {
		out = append(out, k)
		return true
	})
	return out
}

// Values returns a snapshot-order slice of all values currently visible to
// a fresh iterator.
func (t *Table[V]) Values() []V {
	var out []V
	t.ForEach(func(_ int64, v V) bool {
		out = append(out, v)
		return true
	})
	return out
}

// ForEach applies fn to every (key, value) pair, stopping early if fn
// returns false.
func (t *Table[V]) ForEach(fn func(key int64, value V) bool) {
	it := NewIterator(t)
	for it.HasNext() {
		k, v := it.Next()
		if !fn(k, v) {
			return
		}
	}
}
