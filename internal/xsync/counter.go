// Package xsync holds low-level concurrency helpers shared by more than one
// of this module's public packages: a striped counter, cache-line padding
// and a scaling backoff ladder.
package xsync

import (
	"math/bits"
	"sync/atomic"
)

// cacheLineSize is the padding unit used to keep hot fields from sharing a
// cache line with their neighbours. 128 covers both common x86-64 (64B) and
// Apple Silicon / other ARM64 (128B) line sizes.
const cacheLineSize = 128

// counterCell is one shard of a StripedCounter, padded so that concurrent
// increments from different goroutines (pinned, in practice, to different
// cores) never false-share.
type counterCell struct {
	_ [cacheLineSize]byte
	v atomic.Int64
	_ [cacheLineSize - 8]byte
}

// StripedCounter is a cache-line padded, sharded counter used for size
// accounting in intmap.Table. Writers hash onto a shard by a
// caller-supplied stripe index (typically derived from the calling
// goroutine or bucket index) to spread contention; Sum reads every shard.
type StripedCounter struct {
	cells []counterCell
	mask  uint64
}

// NewStripedCounter creates a counter whose stripe count is stripes clamped
// to [1, maxStripes] and then rounded up to the next power of two.
func NewStripedCounter(stripes, maxStripes int) *StripedCounter {
	if stripes < 1 {
		stripes = 1
	}
	if maxStripes < 1 {
		maxStripes = 1
	}
	if stripes > maxStripes {
		stripes = maxStripes
	}
	n := 1 << bits.Len(uint(stripes-1))
	return &StripedCounter{
		cells: make([]counterCell, n),
		mask:  uint64(n - 1),
	}
}

// Add adds delta to the shard selected by stripe, returning the shard's new
// value, not the total; callers needing the total must call Sum.
func (c *StripedCounter) Add(stripe uint64, delta int64) int64 {
	return c.cells[stripe&c.mask].v.Add(delta)
}

// Sum returns the saturating sum of all shards, clamped to math.MaxInt32.
func (c *StripedCounter) Sum() int64 {
	var total int64
	for i := range c.cells {
		total += c.cells[i].v.Load()
	}
	const maxInt32 = 1<<31 - 1
	if total > maxInt32 {
		return maxInt32
	}
	if total < 0 {
		return 0
	}
	return total
}

// Stripes reports the number of shards, always a power of two.
func (c *StripedCounter) Stripes() int {
	return len(c.cells)
}
