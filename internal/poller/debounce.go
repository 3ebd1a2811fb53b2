package poller

import (
	"sync"
	"time"
)

// debouncer gates how often a location sample may trigger a poll cycle.
// A sample is accepted iff at least interval has passed since the last
// accepted one; rejected samples leave no trace. The interval is supplied by
// the caller on every check, so a config update takes effect on the next
// sample.
type debouncer struct {
	mu   sync.Mutex
	last time.Time
}

func (d *debouncer) accept(now time.Time, interval time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.last.IsZero() && now.Sub(d.last) < interval {
		return false
	}
	d.last = now
	return true
}

func (d *debouncer) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = time.Time{}
}
