package runtime

import (
	"context"
	"log/slog"
	"time"

	"cinelive/contract"
	"cinelive/domain"
	"cinelive/errors"
	"cinelive/observability"
	"cinelive/runtime/workers"
)

// Timings groups the orchestrator's timer knobs, loaded from config.
type Timings struct {
	DeliveryTimeout   time.Duration
	DedupWindow       time.Duration
	DedupPruneEvery   time.Duration
	TypingTTL         time.Duration
	IdleTimeout       time.Duration
	ReapEvery         time.Duration
	HeartbeatInterval time.Duration
}

// Orchestrator wires the live core together and exposes the operations
// consumed by transports and write-path handlers. It owns the teardown
// cascade: unregistering a connection cleans its room memberships and,
// when it was the user's last connection, their typing state.
type Orchestrator struct {
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   *Registry
	membership *Membership
	dedup      *DedupIndex
	dispatcher *Dispatcher
	typing     *TypingCoordinator
	bridge     *Bridge
	stats      *observability.MonitoringManager
	timings    Timings
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	directory contract.Directory, stats *observability.MonitoringManager,
	timings Timings) *Orchestrator {
	registry := NewRegistry()
	membership := NewMembership(directory)
	dedup := NewDedupIndex(timings.DedupWindow)
	dispatcher := NewDispatcher(log, registry, membership, dedup, timings.DeliveryTimeout, stats)
	typing := NewTypingCoordinator(log, dispatcher, membership, timings.TypingTTL)
	bridge := NewBridge(log, directory, dispatcher)

	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		registry:   registry,
		membership: membership,
		dedup:      dedup,
		dispatcher: dispatcher,
		typing:     typing,
		bridge:     bridge,
		stats:      stats,
		timings:    timings,
	}
}

// Connect registers a live connection at transport handshake time.
func (o *Orchestrator) Connect(connID domain.ConnectionID, userID domain.UserID, sink contract.EventSink) error {
	if err := o.registry.Register(connID, userID, sink); err != nil {
		return err
	}
	o.stats.SetConnections(o.registry.Len())
	o.log.Debug("Connection registered", "connection", connID, "user", userID)
	return nil
}

// Disconnect runs the teardown cascade for one connection. Idempotent;
// disconnect races with the reaper are expected.
func (o *Orchestrator) Disconnect(ctx context.Context, connID domain.ConnectionID) {
	rooms := o.membership.DropConnection(connID)
	userID, ok := o.registry.Unregister(connID)
	if !ok {
		return
	}
	o.stats.SetConnections(o.registry.Len())

	if len(o.registry.ConnectionsOf(userID)) == 0 {
		o.typing.ClearUser(ctx, userID)
	}
	o.log.Debug("Connection torn down",
		"connection", connID, "user", userID, "rooms_left", len(rooms))
}

// Join subscribes a connection to a room; the connection's own user is
// the one checked against the room's membership.
func (o *Orchestrator) Join(ctx context.Context, connID domain.ConnectionID, roomID domain.RoomID) error {
	userID, ok := o.registry.UserOf(connID)
	if !ok {
		return errors.ErrNotFound
	}
	o.registry.Touch(connID)
	return o.membership.Join(ctx, connID, userID, roomID)
}

func (o *Orchestrator) Leave(connID domain.ConnectionID, roomID domain.RoomID) {
	o.registry.Touch(connID)
	o.membership.Leave(connID, roomID)
}

func (o *Orchestrator) SetTyping(ctx context.Context, connID domain.ConnectionID, roomID domain.RoomID, isTyping bool) error {
	userID, ok := o.registry.UserOf(connID)
	if !ok {
		return errors.ErrNotFound
	}
	o.registry.Touch(connID)
	return o.typing.SetTyping(ctx, connID, userID, roomID, isTyping)
}

// Touch refreshes a connection's last-activity timestamp (transport
// pings land here).
func (o *Orchestrator) Touch(connID domain.ConnectionID) {
	o.registry.Touch(connID)
}

// OnWritten hands a freshly persisted entity to the bridge.
func (o *Orchestrator) OnWritten(ctx context.Context, entity any) (int, error) {
	return o.bridge.OnWritten(ctx, entity)
}

// ConnectionsOf answers "is this user online" queries.
func (o *Orchestrator) ConnectionsOf(userID domain.UserID) []domain.ConnectionID {
	return o.registry.ConnectionsOf(userID)
}

// Start registers the background workers and launches the supervision
// tree. It returns immediately; Stop triggers the graceful shutdown.
func (o *Orchestrator) Start(ctx context.Context) {
	o.supervisor.Add(workers.NewDedupJanitorWorker(o.log, o.dedup, o.timings.DedupPruneEvery))
	o.supervisor.Add(workers.NewIdleReaperWorker(o.log, o.registry,
		o.timings.IdleTimeout, o.timings.ReapEvery, o.Disconnect))
	o.supervisor.Add(workers.NewHeartbeatWorker(o.log, o.stats, o.timings.HeartbeatInterval))

	o.log.Info("Starting orchestrator and all supervised workers")
	go o.supervisor.Run(ctx)
}

// Stop initiates a graceful shutdown of the supervised workers.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
