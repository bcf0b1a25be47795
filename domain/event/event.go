// Package event defines the immutable records pushed to connected
// clients, and the tagged delivery targets resolving them to
// connections.
package event

import (
	"fmt"
	"time"

	"cinelive/domain"
)

type Kind string

const (
	KindMessageCreated  Kind = "message.created"
	KindMessageEdited   Kind = "message.edited"
	KindMessageDeleted  Kind = "message.deleted"
	KindTypingChanged   Kind = "typing.changed"
	KindActivityCreated Kind = "activity.created"
)

// Target is a tagged variant: chat events are scoped to a shared room,
// feed events to an explicit recipient user set. The two shapes are kept
// distinct so follower lists never leak into a shared room.
type Target interface {
	isTarget()
}

// RoomTarget delivers to every connection currently joined to the room.
type RoomTarget struct {
	Room domain.RoomID
}

func (RoomTarget) isTarget() {}

// UserSetTarget delivers to every live connection of each recipient,
// regardless of room membership.
type UserSetTarget struct {
	Users []domain.UserID
}

func (UserSetTarget) isTarget() {}

// Event is handed to the dispatcher after the underlying entity has been
// durably persisted. Payload carries the canonical record.
//
// DedupKey guards against the same logical change being published twice
// through different trigger paths. An empty key bypasses deduplication
// (typing transitions manage their own at-most-one state).
//
// Origin, when set, names a connection excluded from delivery; only
// typing events use it.
type Event struct {
	Kind     Kind
	Target   Target
	Payload  any
	DedupKey string
	At       time.Time
	Origin   domain.ConnectionID
}

// DedupKey builds the canonical key for an entity change:
// entity id + kind, plus a revision suffix for edits so successive
// patches to the same message are not suppressed as duplicates.
func DedupKey(entityID string, kind Kind, revision int) string {
	if revision > 0 {
		return fmt.Sprintf("%s:%s:r%d", entityID, kind, revision)
	}
	return fmt.Sprintf("%s:%s", entityID, kind)
}

// TypingPayload is the wire payload of a typing.changed event.
type TypingPayload struct {
	Room   domain.RoomID `json:"roomId"`
	User   domain.UserID `json:"userId"`
	Typing bool          `json:"typing"`
}
