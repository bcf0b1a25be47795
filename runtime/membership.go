package runtime

import (
	"context"
	"sync"

	"cinelive/contract"
	"cinelive/domain"
	"cinelive/errors"
)

// Membership maps rooms to the connections currently subscribed.
// It performs a two-step bookkeeping:
//  1. rooms resolves a room to its member connections (dispatch path).
//  2. joined resolves a connection to its rooms, so teardown runs in
//     O(rooms that connection had joined), not O(all rooms).
//
// A connection's joined set is only ever mutated by that connection's
// own join/leave calls or by disconnect teardown.
type Membership struct {
	mu        sync.RWMutex
	directory contract.Directory
	rooms     map[domain.RoomID]Set[domain.ConnectionID]
	joined    map[domain.ConnectionID]Set[domain.RoomID]
}

func NewMembership(directory contract.Directory) *Membership {
	return &Membership{
		directory: directory,
		rooms:     make(map[domain.RoomID]Set[domain.ConnectionID]),
		joined:    make(map[domain.ConnectionID]Set[domain.RoomID]),
	}
}

// Join subscribes a connection to a room. Idempotent. The directory is
// consulted before taking the lock: this is the authorization boundary
// preventing cross-tenant eavesdropping, and the core never holds a
// lock across a collaborator call.
func (m *Membership) Join(ctx context.Context, connID domain.ConnectionID, userID domain.UserID, roomID domain.RoomID) error {
	authorized, err := m.directory.IsAuthorizedMember(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if !authorized {
		return errors.ErrNotAuthorized
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomID]; !ok {
		m.rooms[roomID] = make(Set[domain.ConnectionID])
	}
	m.rooms[roomID][connID] = struct{}{}

	if _, ok := m.joined[connID]; !ok {
		m.joined[connID] = make(Set[domain.RoomID])
	}
	m.joined[connID][roomID] = struct{}{}
	return nil
}

// Leave is idempotent; leaving a room never joined is a no-op.
func (m *Membership) Leave(connID domain.ConnectionID, roomID domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(connID, roomID)
}

func (m *Membership) removeLocked(connID domain.ConnectionID, roomID domain.RoomID) {
	if members, ok := m.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(m.rooms, roomID)
		}
	}
	if rooms, ok := m.joined[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(m.joined, connID)
		}
	}
}

func (m *Membership) IsJoined(connID domain.ConnectionID, roomID domain.RoomID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms, ok := m.joined[connID]
	if !ok {
		return false
	}
	_, ok = rooms[roomID]
	return ok
}

// MembersOf snapshots the room's member connections. Used only by the
// dispatcher; the snapshot is taken under the lock so a concurrent
// leave is either fully before or fully after it.
func (m *Membership) MembersOf(roomID domain.RoomID) []domain.ConnectionID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members, ok := m.rooms[roomID]
	if !ok {
		return nil
	}
	res := make([]domain.ConnectionID, 0, len(members))
	for id := range members {
		res = append(res, id)
	}
	return res
}

// DropConnection removes every membership of a connection during
// disconnect teardown. Returns the rooms it had joined so the caller
// can clear dependent typing state.
func (m *Membership) DropConnection(connID domain.ConnectionID) []domain.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms, ok := m.joined[connID]
	if !ok {
		return nil
	}
	res := make([]domain.RoomID, 0, len(rooms))
	for roomID := range rooms {
		res = append(res, roomID)
	}
	for _, roomID := range res {
		m.removeLocked(connID, roomID)
	}
	return res
}
