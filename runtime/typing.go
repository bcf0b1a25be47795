package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cinelive/contract"
	"cinelive/domain"
	"cinelive/domain/event"
	"cinelive/errors"
)

type typingKey struct {
	room domain.RoomID
	user domain.UserID
}

// typingEntry owns the single pending expiry timer for its key. The
// generation counter resolves the cancel/fire race: a timer that fires
// after a refresh observes a newer generation and becomes a no-op.
type typingEntry struct {
	gen   uint64
	timer *time.Timer
}

// TypingCoordinator runs a short-lived idle/typing state machine per
// (room, user) pair. At most one live entry exists per key; a new
// signal replaces rather than stacks. Only genuine transitions are
// broadcast, never refreshes.
type TypingCoordinator struct {
	mu sync.Mutex
	// emitMu is acquired before mu is released whenever a transition
	// was decided, so transitions for a key are published in the order
	// they were decided. Two racing signals from different devices
	// would otherwise broadcast in reversed order and strand remote
	// clients on a stale typing state.
	emitMu     sync.Mutex
	log        *slog.Logger
	dispatcher contract.IDispatcher
	membership contract.IMembership
	ttl        time.Duration
	entries    map[typingKey]*typingEntry
}

func NewTypingCoordinator(log *slog.Logger, dispatcher contract.IDispatcher,
	membership contract.IMembership, ttl time.Duration) *TypingCoordinator {
	return &TypingCoordinator{
		log:        log,
		dispatcher: dispatcher,
		membership: membership,
		ttl:        ttl,
		entries:    make(map[typingKey]*typingEntry),
	}
}

// SetTyping applies a typing signal from one connection.
// idle -> typing broadcasts and arms the expiry timer; a repeated true
// restarts the timer silently; an explicit false clears and broadcasts.
// A signal for a room the connection has not joined is rejected with
// ErrNotJoined and not broadcast.
func (t *TypingCoordinator) SetTyping(ctx context.Context, connID domain.ConnectionID,
	userID domain.UserID, roomID domain.RoomID, isTyping bool) error {
	if !t.membership.IsJoined(connID, roomID) {
		return errors.ErrNotJoined
	}

	key := typingKey{room: roomID, user: userID}

	t.mu.Lock()
	entry, live := t.entries[key]
	var changed bool
	switch {
	case isTyping && live:
		// Refresh: replace the pending timer, keep quiet.
		entry.gen++
		entry.timer.Stop()
		entry.timer = t.armTimer(key, entry.gen)
	case isTyping && !live:
		entry = &typingEntry{}
		entry.timer = t.armTimer(key, entry.gen)
		t.entries[key] = entry
		changed = true
	case !isTyping && live:
		entry.timer.Stop()
		delete(t.entries, key)
		changed = true
	default:
		// false on an already idle key: nothing to do.
	}
	if !changed {
		t.mu.Unlock()
		return nil
	}

	t.emitMu.Lock()
	t.mu.Unlock()
	t.broadcast(ctx, key, isTyping, connID)
	t.emitMu.Unlock()
	return nil
}

// armTimer must be called with the mutex held.
func (t *TypingCoordinator) armTimer(key typingKey, gen uint64) *time.Timer {
	return time.AfterFunc(t.ttl, func() {
		t.expire(key, gen)
	})
}

// expire fires when a typing entry outlived its ttl without a refresh.
// Exactly one idle transition is emitted regardless of how many
// refreshes were missed.
func (t *TypingCoordinator) expire(key typingKey, gen uint64) {
	t.mu.Lock()
	entry, ok := t.entries[key]
	if !ok || entry.gen != gen {
		// Refreshed or cleared concurrently with the firing: no-op.
		t.mu.Unlock()
		return
	}
	delete(t.entries, key)
	t.emitMu.Lock()
	t.mu.Unlock()
	t.broadcast(context.Background(), key, false, "")
	t.emitMu.Unlock()
}

// ClearUser transitions every live typing entry of a user to idle,
// invoked when the user's last connection disconnects.
func (t *TypingCoordinator) ClearUser(ctx context.Context, userID domain.UserID) {
	t.mu.Lock()
	var cleared []typingKey
	for key, entry := range t.entries {
		if key.user != userID {
			continue
		}
		entry.timer.Stop()
		delete(t.entries, key)
		cleared = append(cleared, key)
	}
	t.emitMu.Lock()
	t.mu.Unlock()
	for _, key := range cleared {
		t.broadcast(ctx, key, false, "")
	}
	t.emitMu.Unlock()
}

// broadcast publishes a typing.changed transition to the room,
// excluding the originating connection. Typing events carry no dedup
// key: the coordinator already enforces at-most-one live state per key,
// and a shared key would suppress a legitimate false right after a true.
func (t *TypingCoordinator) broadcast(ctx context.Context, key typingKey, isTyping bool, origin domain.ConnectionID) {
	delivered := t.dispatcher.Publish(ctx, event.Event{
		Kind:   event.KindTypingChanged,
		Target: event.RoomTarget{Room: key.room},
		Payload: event.TypingPayload{
			Room:   key.room,
			User:   key.user,
			Typing: isTyping,
		},
		At:     time.Now().UTC(),
		Origin: origin,
	})
	t.log.Debug("Typing transition broadcast",
		"room", key.room, "user", key.user, "typing", isTyping, "delivered", delivered)
}

// ActiveCount reports live typing entries, for the debug stats page.
func (t *TypingCoordinator) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
