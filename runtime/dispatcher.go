package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cinelive/contract"
	"cinelive/domain"
	"cinelive/domain/event"
	"cinelive/observability"
)

// Dispatcher resolves an event's target to live connections and hands
// the payload to each matching sink, exactly once per connection.
//
// Delivery is fire-and-forget: nothing is queued for offline
// connections and nothing is retried. A disconnected client catches up
// through the durable stores. A failure on one sink is swallowed and
// surfaced only as a reduced delivery count; a slow subscriber must
// never fail a writer's request.
type Dispatcher struct {
	log             *slog.Logger
	registry        contract.IRegistry
	membership      contract.IMembership
	dedup           *DedupIndex
	deliveryTimeout time.Duration
	stats           *observability.MonitoringManager
}

func NewDispatcher(log *slog.Logger, registry contract.IRegistry, membership contract.IMembership,
	dedup *DedupIndex, deliveryTimeout time.Duration, stats *observability.MonitoringManager) *Dispatcher {
	return &Dispatcher{
		log:             log,
		registry:        registry,
		membership:      membership,
		dedup:           dedup,
		deliveryTimeout: deliveryTimeout,
		stats:           stats,
	}
}

// Publish claims the event's dedup key and delivers. The second publish
// of the same key within the suppression window is dropped, guarding
// against the write path firing one logical change through two trigger
// sources.
func (d *Dispatcher) Publish(ctx context.Context, evt event.Event) int {
	if evt.DedupKey != "" && !d.dedup.Claim(evt.DedupKey) {
		d.log.Debug("Duplicate publish suppressed", "dedup_key", evt.DedupKey, "kind", evt.Kind)
		d.stats.IncrSuppressed()
		return 0
	}
	return d.Deliver(ctx, evt)
}

// Claim reserves a dedup key without delivering. Batched feed fan-out
// claims once per entity, then delivers page by page, so pagination
// does not suppress itself.
func (d *Dispatcher) Claim(key string) bool {
	if key == "" {
		return true
	}
	if !d.dedup.Claim(key) {
		d.stats.IncrSuppressed()
		return false
	}
	return true
}

// Deliver resolves the target connection set and consumes the event on
// each sink. Returns the count of connections actually delivered to;
// 0 is valid (no live subscribers).
func (d *Dispatcher) Deliver(ctx context.Context, evt event.Event) int {
	conns := d.resolve(evt.Target)

	delivered := 0
	for connID := range conns {
		if connID == evt.Origin {
			continue
		}
		sink, ok := d.registry.SinkOf(connID)
		if !ok {
			// Disconnected between snapshot and delivery: drop silently.
			continue
		}
		deliverCtx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
		err := sink.Consume(deliverCtx, evt)
		cancel()
		if err != nil {
			d.log.Debug(fmt.Sprintf("Delivery dropped for connection %s", connID),
				"kind", evt.Kind, "error", err)
			d.stats.IncrDropped()
			continue
		}
		delivered++
	}
	d.stats.AddDelivered(uint64(delivered))
	return delivered
}

// resolve snapshots the connection set in scope. The set form
// guarantees exactly-once per connection even when a recipient appears
// through several paths.
func (d *Dispatcher) resolve(target event.Target) Set[domain.ConnectionID] {
	conns := make(Set[domain.ConnectionID])
	switch t := target.(type) {
	case event.RoomTarget:
		for _, connID := range d.membership.MembersOf(t.Room) {
			conns[connID] = struct{}{}
		}
	case event.UserSetTarget:
		for _, userID := range t.Users {
			for _, connID := range d.registry.ConnectionsOf(userID) {
				conns[connID] = struct{}{}
			}
		}
	}
	return conns
}
