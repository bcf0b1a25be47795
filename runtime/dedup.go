package runtime

import (
	"sync"
	"time"
)

// DedupIndex suppresses re-publication of an already-seen dedup key
// within a sliding window. Semantics are drop, not merge: the window is
// sized for the write path's duplicate trigger sources (direct call plus
// change watcher), a few seconds apart at most. Claims are held in
// memory only; the best-effort model needs no durable dedup store.
type DedupIndex struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

func NewDedupIndex(window time.Duration) *DedupIndex {
	return &DedupIndex{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Claim records the key and reports whether the caller owns this
// publication. A second claim within the window returns false; a claim
// after the window elapsed re-opens the key.
func (d *DedupIndex) Claim(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.seen[key]; ok && now.Sub(at) < d.window {
		return false
	}
	d.seen[key] = now
	return true
}

// Prune drops expired claims and returns how many were removed.
// Ran periodically by the janitor worker.
func (d *DedupIndex) Prune() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	removed := 0
	for key, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, key)
			removed++
		}
	}
	return removed
}

func (d *DedupIndex) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
