// Package buffer implements the bounded sliding-window ring buffer that
// gates the pipeline: nothing downstream is allowed to suggest trades
// until the buffer has refilled from scratch, restart-safe by
// construction since the buffer always starts empty.
package buffer

import (
	"fmt"
	"sync"
	"time"

	"optionsdesk/market"
)

// Status is the buffer's warm-up/health state.
type Status string

const (
	StatusEmpty    Status = "empty"
	StatusFilling  Status = "filling"
	StatusReady    Status = "ready"
	StatusStale    Status = "stale"
)

// Metrics is a point-in-time summary of the buffer, safe to hand out by
// value to callers that only want to observe state.
type Metrics struct {
	Size           int
	Capacity       int
	FillPercentage float64
	Status         Status
	LastUpdate     time.Time
}

// Ring is a bounded FIFO of market snapshots. All mutation happens
// under a single exclusive lock; reads take a copy under the same lock
// so get-all/last-n are always internally consistent.
type Ring struct {
	mu               sync.RWMutex
	items            []market.Snapshot
	capacity         int
	warmUpThreshold  int // size at/above which the buffer is no longer "filling"
	staleAfter       time.Duration
	lastUpdate       time.Time
}

// New builds a Ring of the given capacity. warmUpThreshold is the
// minimum size for READY (spec default: 80% of capacity). staleLimit is
// the validator's max-staleness; READY/STALE is judged against 2x it.
func New(capacity, warmUpThreshold int, staleLimit time.Duration) *Ring {
	return &Ring{
		items:           make([]market.Snapshot, 0, capacity),
		capacity:        capacity,
		warmUpThreshold: warmUpThreshold,
		staleAfter:      2 * staleLimit,
	}
}

// Append adds a snapshot, evicting the oldest if the buffer is full.
// O(1) amortized.
func (r *Ring) Append(s market.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.items) == r.capacity {
		r.items = r.items[1:]
	}
	r.items = append(r.items, s)
	r.lastUpdate = s.Timestamp
}

// Latest returns the most recently appended snapshot.
func (r *Ring) Latest() (market.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.items) == 0 {
		return market.Snapshot{}, false
	}
	return r.items[len(r.items)-1], true
}

// Oldest returns the oldest snapshot still retained.
func (r *Ring) Oldest() (market.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.items) == 0 {
		return market.Snapshot{}, false
	}
	return r.items[0], true
}

// LastN returns a copy of the most recent n snapshots, oldest first. If
// fewer than n are present, all of them are returned.
func (r *Ring) LastN(n int) []market.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	if n > len(r.items) {
		n = len(r.items)
	}
	out := make([]market.Snapshot, n)
	copy(out, r.items[len(r.items)-n:])
	return out
}

// GetAll returns a copy of every retained snapshot, oldest first.
func (r *Ring) GetAll() []market.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]market.Snapshot, len(r.items))
	copy(out, r.items)
	return out
}

// Size returns the current element count.
func (r *Ring) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// FillPercentage returns size/capacity*100.
func (r *Ring) FillPercentage() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return float64(len(r.items)) / float64(r.capacity) * 100
}

// Clear empties the buffer. Used to simulate/enact a restart.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = r.items[:0]
	r.lastUpdate = time.Time{}
}

// status computes the derived EMPTY|FILLING|READY|STALE state against
// `now`. Must be called with at least a read lock held by the caller's
// caller; exposed via the exported wrappers below which take the lock
// themselves.
func (r *Ring) status(now time.Time) Status {
	n := len(r.items)
	switch {
	case n == 0:
		return StatusEmpty
	case n < r.warmUpThreshold:
		return StatusFilling
	case now.Sub(r.lastUpdate) > r.staleAfter:
		return StatusStale
	default:
		return StatusReady
	}
}

// Status returns the current derived status as of now.
func (r *Ring) Status(now time.Time) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status(now)
}

// TradeAllowed is the restart-safe no-trade gate: true iff Status ==
// READY.
func (r *Ring) TradeAllowed(now time.Time) bool {
	return r.Status(now) == StatusReady
}

// NoTradeReason returns a human-readable explanation for any non-READY
// status, or "" when READY.
func (r *Ring) NoTradeReason(now time.Time) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch r.status(now) {
	case StatusEmpty:
		return "buffer is empty: no snapshots ingested yet"
	case StatusFilling:
		remaining := r.warmUpThreshold - len(r.items)
		return fmt.Sprintf("buffer is filling: %d/%d snapshots (need %d more to warm up)",
			len(r.items), r.warmUpThreshold, remaining)
	case StatusStale:
		return fmt.Sprintf("buffer is stale: last update %s ago exceeds %s", now.Sub(r.lastUpdate), r.staleAfter)
	default:
		return ""
	}
}

// MetricsSnapshot returns a consistent point-in-time summary.
func (r *Ring) MetricsSnapshot(now time.Time) Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Metrics{
		Size:           len(r.items),
		Capacity:       r.capacity,
		FillPercentage: float64(len(r.items)) / float64(r.capacity) * 100,
		Status:         r.status(now),
		LastUpdate:     r.lastUpdate,
	}
}
