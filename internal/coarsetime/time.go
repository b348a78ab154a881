// Package coarsetime provides a clock that is refreshed every 50ms in a
// background goroutine, for bookkeeping where time.Now() precision is
// not needed (idle durations of pooled connections).
package coarsetime

import (
	"sync/atomic"
	"time"
)

const tick = 50 * time.Millisecond

var now atomic.Pointer[time.Time]

func init() {
	t := time.Now()
	now.Store(&t)

	ticker := time.NewTicker(tick)
	go func() {
		for t := range ticker.C {
			now.Store(&t)
		}
	}()
}

// Now returns the current coarse time, at most one tick behind.
func Now() time.Time {
	return *now.Load()
}

// Since returns the coarse duration elapsed since t.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}
