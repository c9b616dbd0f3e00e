// Package priority defines the scheduling priority scale shared by
// taskqueue and threadpool.
package priority

import "golang.org/x/exp/constraints"

// Priority is a total order of nine schedulable levels plus a terminal
// Completing marker meaning "not schedulable / done". Lower ordinal values
// are higher priority. Completing has ordinal -1, numerically below every
// schedulable level, but the comparison helpers in this package
// (IsHigherOrEqual, Max, Min) rank it lower than every schedulable level.
type Priority int8

const (
	// Completing marks a task that has already been claimed for execution
	// or cancellation; it is never a valid priority to schedule at.
	Completing Priority = -1

	Blocking Priority = iota
	Highest
	Higher
	High
	Normal
	Low
	Lower
	Lowest
	Idle
)

var names = [...]string{
	Blocking: "blocking",
	Highest:  "highest",
	Higher:   "higher",
	High:     "high",
	Normal:   "normal",
	Low:      "low",
	Lower:    "lower",
	Lowest:   "lowest",
	Idle:     "idle",
}

// String implements fmt.Stringer.
func (p Priority) String() string {
	if p == Completing {
		return "completing"
	}
	if int(p) >= 0 && int(p) < len(names) {
		return names[p]
	}
	return "invalid"
}

// IsValidSchedulable reports whether p may be used to queue a task. The
// Completing marker is never schedulable.
func (p Priority) IsValidSchedulable() bool {
	return p >= Blocking && p <= Idle
}

// IsHigherOrEqual reports whether p is at least as high priority as other,
// i.e. p's ordinal is numerically less than or equal to other's. Completing
// is treated as lower priority than every schedulable level, reflecting
// its terminal, non-schedulable nature.
func (p Priority) IsHigherOrEqual(other Priority) bool {
	return rank(p) <= rank(other)
}

// Max returns the higher-priority (numerically smaller, ignoring
// Completing) of a and b.
func Max(a, b Priority) Priority {
	if rank(a) <= rank(b) {
		return a
	}
	return b
}

// Min returns the lower-priority of a and b.
func Min(a, b Priority) Priority {
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

func rank(p Priority) int {
	if p == Completing {
		return int(Idle) + 1
	}
	return int(p)
}

// Less is a generic ordering helper, usable with constraints.Ordered-keyed
// tuples elsewhere in this module (e.g. taskqueue's (priority, suborder,
// id) comparator), kept here so the ordering rule for Priority values lives
// in one place.
func Less[T constraints.Ordered](a, b T) bool {
	return a < b
}
