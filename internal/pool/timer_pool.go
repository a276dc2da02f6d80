// Package pool provides pooled time.Timer instances for hot paths that
// repeatedly arm short-lived timers, such as connect-retry waits.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer armed for the duration d, reusing a pooled
// timer when one is available.
//
// Return the timer to the pool with PutTimer when done.
func GetTimer(d time.Duration) *time.Timer {
	v := timerPool.Get()
	if v == nil {
		return time.NewTimer(d)
	}

	t, _ := v.(*time.Timer) // only *time.Timer is ever put into the pool
	if t.Reset(d) {
		// The timer was still active; drain the channel so a stale tick
		// cannot be mistaken for the new expiry.
		select {
		case <-t.C:
		default:
		}
	}

	return t
}

// PutTimer stops t and returns it to the pool.
//
// t must not be accessed after being returned.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// Drain t.C if the tick was not consumed by the caller.
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}
