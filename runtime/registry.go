// Package runtime hosts the live fan-out core: connection registry,
// room membership, event dispatch, typing coordination, and the write
// path bridge. It orchestrates delivery without containing business
// logic or domain rules.
package runtime

import (
	"sync"
	"time"

	"cinelive/contract"
	"cinelive/domain"
	"cinelive/errors"
)

type Set[T comparable] map[T]struct{}

type connection struct {
	user     domain.UserID
	sink     contract.EventSink
	lastSeen time.Time
}

// Registry tracks live connections indexed by id, with a secondary
// user index for multi-device delivery and "is this user online"
// queries. Indirection through stable ids avoids nested mutable
// collections holding stale references.
type Registry struct {
	mu          sync.RWMutex
	connections map[domain.ConnectionID]*connection
	byUser      map[domain.UserID]Set[domain.ConnectionID]
	now         func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[domain.ConnectionID]*connection),
		byUser:      make(map[domain.UserID]Set[domain.ConnectionID]),
		now:         time.Now,
	}
}

// Register adds a new live connection at transport handshake time.
// Registering an id twice is a protocol violation, not a race.
func (r *Registry) Register(connID domain.ConnectionID, userID domain.UserID, sink contract.EventSink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[connID]; ok {
		return errors.ErrDuplicateConnection
	}
	r.connections[connID] = &connection{user: userID, sink: sink, lastSeen: r.now()}

	if _, ok := r.byUser[userID]; !ok {
		r.byUser[userID] = make(Set[domain.ConnectionID])
	}
	r.byUser[userID][connID] = struct{}{}
	return nil
}

// Unregister removes a connection. Removing an absent id is a no-op,
// not an error, because disconnect races are expected. Returns the
// owning user so the caller can run the teardown cascade.
func (r *Registry) Unregister(connID domain.ConnectionID) (domain.UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connID]
	if !ok {
		return "", false
	}
	delete(r.connections, connID)

	if conns, ok := r.byUser[conn.user]; ok {
		delete(conns, connID)
		// No empty sets left behind to prevent memory leaks over time
		if len(conns) == 0 {
			delete(r.byUser, conn.user)
		}
	}
	return conn.user, true
}

// ConnectionsOf returns every live connection of a user, empty if the
// user is offline.
func (r *Registry) ConnectionsOf(userID domain.UserID) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	res := make([]domain.ConnectionID, 0, len(conns))
	for id := range conns {
		res = append(res, id)
	}
	return res
}

func (r *Registry) UserOf(connID domain.ConnectionID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connID]
	if !ok {
		return "", false
	}
	return conn.user, true
}

func (r *Registry) SinkOf(connID domain.ConnectionID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connID]
	if !ok {
		return nil, false
	}
	return conn.sink, true
}

// Touch refreshes the last-activity timestamp of a connection.
func (r *Registry) Touch(connID domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.connections[connID]; ok {
		conn.lastSeen = r.now()
	}
}

// IdleConnections lists connections silent for longer than olderThan,
// candidates for timeout teardown by the reaper worker.
func (r *Registry) IdleConnections(olderThan time.Duration) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	deadline := r.now().Add(-olderThan)
	var idle []domain.ConnectionID
	for id, conn := range r.connections {
		if conn.lastSeen.Before(deadline) {
			idle = append(idle, id)
		}
	}
	return idle
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}
