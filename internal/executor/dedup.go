package executor

import (
	"sync"
	"time"
)

// Dedup prevents the same arbitrage path from being submitted more than once
// within a configurable time-to-live window. A path that just executed keeps
// showing up as an opportunity until the pools rebalance; resubmitting it
// would double down on a trade already in flight. Safe for concurrent use.
type Dedup struct {
	seen map[string]time.Time // path signature -> last submitted
	ttl  time.Duration
	mu   sync.Mutex
}

// NewDedup creates a Dedup instance that considers a path a duplicate if it
// was submitted within the given ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// IsDuplicate returns true if the path was submitted within the TTL window.
// If the path has not been seen (or has expired), it is recorded and false is
// returned.
func (d *Dedup) IsDuplicate(pathSig string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if last, ok := d.seen[pathSig]; ok {
		if now.Sub(last) < d.ttl {
			return true
		}
	}

	d.seen[pathSig] = now
	return false
}

// Cleanup removes entries that have expired beyond the TTL. This should be
// called periodically to prevent unbounded memory growth.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for sig, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, sig)
		}
	}
}
