// Package arealock provides a reentrant lock over rectangles of a 2-D
// coordinate grid, used to serialise concurrent work against overlapping
// spatial regions while leaving disjoint regions fully parallel.
//
// Two rectangles owned by different Owners that share no grid cell never
// block each other; two overlapping rectangles serialise through their
// shared cells. A single Owner may reacquire a rectangle it already holds
// (or any sub-rectangle of it) at no additional locking cost. A rectangle
// that extends one it already holds over free cells is acquired normally,
// the already-held cells staying with the Node that first took them. When
// a blocking LockCell/LockRect call, walking the rectangle's cells in
// row-major order, reaches a cell held by a different Owner after one it
// already holds, that is treated as a programming error, not ordinary
// contention, and panics with an error wrapping ErrIntersectingAreas.
package arealock
