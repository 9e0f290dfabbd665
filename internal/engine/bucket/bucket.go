// Package bucket maps raw event timestamps onto fixed-width report windows.
package bucket

import (
	"fmt"
	"time"
)

// Of returns the boundary of the window that closes after ts: the next
// multiple of granularity strictly greater than ts. A timestamp sitting
// exactly on a boundary belongs to the following window, so a window is
// only complete once every timestamp below its lower edge has been seen.
//
// The result depends only on ts and granularity, so every worker derives
// the same key for the same event. Of panics if granularity is not positive.
func Of(ts, granularity time.Duration) time.Duration {
	if granularity <= 0 {
		panic(fmt.Sprintf("bucket: granularity must be positive, got %s", granularity))
	}
	return (ts/granularity + 1) * granularity
}

// Seconds builds a granularity from a whole number of seconds.
func Seconds(n uint64) time.Duration {
	return time.Duration(n) * time.Second
}
