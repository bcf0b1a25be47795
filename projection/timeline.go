// Package projection builds local timelines from observed events.
// Handles ordering and deduplication. Does not emit events or interact
// with UI directly.
package projection

import (
	"context"
	"sort"
	"sync"

	"cinelive/domain/event"
)

// Timeline holds a simple local timeline of events, ordered by
// origination time and deduplicated by dedup key. The viewer and tests
// consume it; clients apply the same logic to their local views.
type Timeline struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	Events []event.Event
}

func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[string]struct{})}
}

func (t *Timeline) Consume(_ context.Context, e event.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e.DedupKey != "" {
		if _, ok := t.seen[e.DedupKey]; ok {
			return nil
		}
		t.seen[e.DedupKey] = struct{}{}
	}

	t.Events = append(t.Events, e)
	sort.SliceStable(t.Events, func(i, j int) bool {
		return t.Events[i].At.Before(t.Events[j].At)
	})
	return nil
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Events)
}

// Snapshot copies the current ordered event list.
func (t *Timeline) Snapshot() []event.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	res := make([]event.Event, len(t.Events))
	copy(res, t.Events)
	return res
}
