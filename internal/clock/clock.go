// Package clock anchors the fast monotonic clock used for every span
// timestamp to a wall-clock instant, once per process. Spans only ever
// carry a monotonic nanosecond offset; wall-clock conversion happens at
// report time so that span durations are immune to NTP or manual
// wall-clock adjustments (see spec component "Time Anchor").
package clock

import (
	"sync"
	"time"
)

var (
	anchorOnce sync.Once
	monoAnchor time.Time // time.Time retains a monotonic reading; .Sub is jump-proof
	wallAnchor int64     // unix nanoseconds at the moment monoAnchor was captured
)

func ensureAnchor() {
	anchorOnce.Do(func() {
		monoAnchor = time.Now()
		wallAnchor = monoAnchor.UnixNano()
	})
}

// Now returns the current instant as nanoseconds elapsed since the
// process-wide anchor. It is monotonic: it never regresses even if the
// wall clock is stepped backward, because it is computed from the
// monotonic reading embedded in time.Time.
func Now() int64 {
	ensureAnchor()
	return int64(time.Since(monoAnchor))
}

// WallNanos converts a monotonic instant (as returned by Now) to unix
// nanoseconds, using the one-shot anchor pairing.
func WallNanos(monotonicInstant int64) int64 {
	ensureAnchor()
	return wallAnchor + monotonicInstant
}

// Reset is exposed for tests that need a fresh anchor pairing in
// isolation; production code never calls it.
func Reset() {
	anchorOnce = sync.Once{}
}
