// Package arealock implements a reentrant lock over rectangles of a 2-D
// coordinate grid, layered directly on intmap: each "cell" of the grid is
// a packed int64 key, and holding a rectangle means owning every cell
// within it in the shared table.
//
// Go has no ambient thread identity to key ownership on, so ownership is
// tracked through an explicit Owner token, obtained once per goroutine
// that intends to take locks and reused across calls. See NewOwner.
package arealock

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/concurrentutil/internal/xsync"
	"github.com/joeycumines/concurrentutil/intmap"
)

// Owner identifies a lock holder across calls, standing in for the host
// platform's ambient thread identity. Goroutines that will call Lock must
// each use their own Owner; sharing one Owner across goroutines defeats
// reentrancy detection and is not supported.
type Owner struct{}

// NewOwner allocates a fresh Owner.
func NewOwner() *Owner { return &Owner{} }

// ErrIntersectingAreas reports a programming error: during a blocking
// lock, a caller's range covered cells it already owns and then reached a
// cell owned by a different Owner. This is a fatal condition, not an
// expected contention outcome.
var ErrIntersectingAreas = errors.New("arealock: intersecting areas")

// ErrForeignUnlock reports an attempt to unlock a Node this lock did not
// issue, or that has already been unlocked.
var ErrForeignUnlock = errors.New("arealock: unlock of foreign or already-released node")

// node is the table's value type: the record identifying a cell's current
// holder. Blocked acquirers do not register on an explicit wait queue;
// they retry the whole acquisition on a scaling backoff ladder, so
// "waking" a node's waiters is simply a matter of time rather than an
// explicit signal.
type node struct {
	owner *Owner
	cells []int64
}

func newNode(owner *Owner, cap int) *node {
	return &node{owner: owner, cells: make([]int64, 0, cap)}
}

// park waits one backoff step before the caller retries acquisition.
func (n *node) park(b *xsync.Backoff) {
	b.Wait()
}

// wakeAll is a no-op under the backoff-retry design: parked acquirers
// re-check ownership on their own schedule rather than via an explicit
// signal. Kept as a named call site so the correspondence with a
// drain-waiters-and-unpark step stays legible.
func (n *node) wakeAll() {}

// Node is the handle returned by a successful lock acquisition. It must be
// passed to Unlock exactly once.
type Node struct {
	lock  *ReentrantAreaLock
	owner *Owner
	cells []int64
}

// CellCount returns the number of grid cells this Node holds.
func (n *Node) CellCount() int { return len(n.cells) }

// ReentrantAreaLock is a reentrant lock over rectangles of a coordinate
// grid, keyed by cell identity rather than by raw (x, z).
type ReentrantAreaLock struct {
	shift uint
	cells *intmap.Table[*node]
}

// New creates a lock whose grid cells are coordinate_shift bits wide:
// world coordinates x, z map to cell coordinates x>>shift, z>>shift.
func New(coordinateShift uint) *ReentrantAreaLock {
	return &ReentrantAreaLock{
		shift: coordinateShift,
		cells: intmap.NewWithCapacity[*node](256, 0.75),
	}
}

func packCell(hi, lo int32) int64 {
	return (int64(hi) << 32) | int64(uint32(lo))
}

func (l *ReentrantAreaLock) cellOf(x, z int32) int64 {
	return packCell(x>>l.shift, z>>l.shift)
}

// cellsInRect enumerates cell coordinates covering the inclusive
// rectangle [x1,x2] x [z1,z2] in world units, row-major order.
func (l *ReentrantAreaLock) cellsInRect(x1, z1, x2, z2 int32) []int64 {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if z1 > z2 {
		z1, z2 = z2, z1
	}
	cx1, cx2 := x1>>l.shift, x2>>l.shift
	cz1, cz2 := z1>>l.shift, z2>>l.shift
	out := make([]int64, 0, int(cx2-cx1+1)*int(cz2-cz1+1))
	for cz := cz1; cz <= cz2; cz++ {
		for cx := cx1; cx <= cx2; cx++ {
			out = append(out, packCell(cx, cz))
		}
	}
	return out
}

// TryLockCell attempts to lock the single cell containing world
// coordinate (x, z), returning nil if it is already held by a different
// owner.
func (l *ReentrantAreaLock) TryLockCell(owner *Owner, x, z int32) *Node {
	return l.tryLockCells(owner, []int64{l.cellOf(x, z)})
}

// TryLockRadius attempts to lock the square of cells within radius of
// (cx, cz), inclusive, in cell-coordinate units.
func (l *ReentrantAreaLock) TryLockRadius(owner *Owner, cx, cz, radius int32) *Node {
	cells := make([]int64, 0, int(2*radius+1)*int(2*radius+1))
	for z := cz - radius; z <= cz+radius; z++ {
		for x := cx - radius; x <= cx+radius; x++ {
			cells = append(cells, packCell(x, z))
		}
	}
	return l.tryLockCells(owner, cells)
}

// TryLockRect attempts to lock the inclusive world-coordinate rectangle
// (x1, z1)-(x2, z2).
func (l *ReentrantAreaLock) TryLockRect(owner *Owner, x1, z1, x2, z2 int32) *Node {
	return l.tryLockCells(owner, l.cellsInRect(x1, z1, x2, z2))
}

// tryLockCells is the non-blocking multi-cell acquire: row-major
// putIfAbsent walk, with partial-unwind on conflict.
//
// Node.cells only ever lists the cells this call actually inserted into
// the table. A cell already owned by the same owner (reentrant case) is
// left pointing at whichever Node originally acquired it: a reentrant
// acquisition adds no new ownership record, so the original Node remains
// the one whose Unlock releases that cell.
func (l *ReentrantAreaLock) tryLockCells(owner *Owner, cells []int64) *Node {
	candidate := newNode(owner, len(cells))
	var inserted []int64
	for _, cell := range cells {
		existing, had := l.cells.PutIfAbsent(cell, candidate)
		if !had {
			inserted = append(inserted, cell)
			continue
		}
		if existing.owner == owner {
			continue
		}
		l.unwind(inserted)
		existing.wakeAll()
		return nil
	}
	candidate.cells = inserted
	return &Node{lock: l, owner: owner, cells: inserted}
}

func (l *ReentrantAreaLock) unwind(inserted []int64) {
	for _, cell := range inserted {
		l.cells.Remove(cell)
	}
}

// LockCell locks the single cell containing (x, z), blocking until
// acquired.
func (l *ReentrantAreaLock) LockCell(owner *Owner, x, z int32) *Node {
	n, _ := l.lockCellsDeadline(owner, []int64{l.cellOf(x, z)}, time.Time{})
	return n
}

// LockRect locks the inclusive world-coordinate rectangle (x1,z1)-(x2,z2),
// blocking until acquired.
func (l *ReentrantAreaLock) LockRect(owner *Owner, x1, z1, x2, z2 int32) *Node {
	n, _ := l.lockCellsDeadline(owner, l.cellsInRect(x1, z1, x2, z2), time.Time{})
	return n
}

// LockCellDuration locks the single cell containing (x, z), giving up and
// returning nil if it is not acquired within timeout.
func (l *ReentrantAreaLock) LockCellDuration(owner *Owner, x, z int32, timeout time.Duration) *Node {
	n, _ := l.lockCellsDeadline(owner, []int64{l.cellOf(x, z)}, time.Now().Add(timeout))
	return n
}

// LockRectDuration locks the inclusive world-coordinate rectangle
// (x1,z1)-(x2,z2), giving up and returning nil if it is not acquired
// within timeout.
func (l *ReentrantAreaLock) LockRectDuration(owner *Owner, x1, z1, x2, z2 int32, timeout time.Duration) *Node {
	n, _ := l.lockCellsDeadline(owner, l.cellsInRect(x1, z1, x2, z2), time.Now().Add(timeout))
	return n
}

// lockCellsDeadline is the blocking multi-cell acquire, with backoff-based
// retrying and the intersecting-areas fatal check. A zero deadline blocks
// indefinitely; otherwise acquisition is abandoned, returning (nil, false),
// once deadline has passed.
func (l *ReentrantAreaLock) lockCellsDeadline(owner *Owner, cells []int64, deadline time.Time) (*Node, bool) {
	backoff := &xsync.Backoff{}
	for {
		inserted := make([]int64, 0, len(cells))
		var blocker *node
		var sawForeign, sawOwn bool
		candidate := newNode(owner, len(cells))
		conflict := false
		for _, cell := range cells {
			existing, had := l.cells.PutIfAbsent(cell, candidate)
			if !had {
				inserted = append(inserted, cell)
				continue
			}
			if existing.owner == owner {
				sawOwn = true
				continue
			}
			sawForeign = true
			blocker = existing
			conflict = true
			break
		}

		if !conflict {
			return &Node{lock: l, owner: owner, cells: inserted}, true
		}

		l.unwind(inserted)

		if sawOwn && sawForeign {
			err := fmt.Errorf("%w: owner already holds part of this range", ErrIntersectingAreas)
			panic(xsync.NewFatalInvariantError("arealock", err))
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, false
		}

		blocker.park(backoff)
	}
}

// IsHeldByCurrentThread reports whether owner currently holds the cell
// containing (x, z).
func (l *ReentrantAreaLock) IsHeldByCurrentThread(owner *Owner, x, z int32) bool {
	n, ok := l.cells.Get(l.cellOf(x, z))
	return ok && n != nil && n.owner == owner
}

// Unlock releases every cell this Node actually owns (cells it reentrantly
// passed through belong to whichever Node originally inserted them, and
// are unaffected), waking any parked waiters. Passing a node this lock did
// not issue, or one already unlocked, is a fatal invariant violation.
func (l *ReentrantAreaLock) Unlock(n *Node) {
	if n == nil || n.lock != l {
		panic(ErrForeignUnlock)
	}
	for _, cell := range n.cells {
		held, ok := l.cells.Get(cell)
		if !ok || held == nil {
			err := fmt.Errorf("arealock: unlock found cell %d with no owner", cell)
			panic(xsync.NewFatalInvariantError("arealock", err))
		}
		if held.owner != n.owner {
			err := fmt.Errorf("arealock: unlock found cell %d owned by a different owner", cell)
			panic(xsync.NewFatalInvariantError("arealock", err))
		}
		l.cells.Remove(cell)
		held.wakeAll()
	}
	n.cells = nil
	n.lock = nil
}
