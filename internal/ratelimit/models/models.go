package models

import (
	"math"
	"time"
)

// Result is the outcome of one sliding-window check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the oldest counted request leaves
// the window, at least one.
func (r *Result) RetryAfter(now time.Time) int {
	seconds := int(math.Ceil(r.ResetAt.Sub(now).Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
