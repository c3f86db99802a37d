// Package interval decides whether two time windows collide.
package interval

import "time"

// Overlaps reports whether the half-open intervals [startA, endA) and [startB, endB)
// share any instant. Windows that only touch (endA == startB) do not overlap.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && endA.After(startB)
}
