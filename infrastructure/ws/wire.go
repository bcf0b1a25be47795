// Package ws is the WebSocket/HTTP gateway: handshake authentication,
// read/write pumps, client frames, and catch-up REST reads.
package ws

import (
	"time"

	"cinelive/domain"
	"cinelive/domain/event"

	"github.com/samber/lo"
)

// WireEvent is the stable outbound payload shape; clients depend on it.
// Exactly one of RoomID / TargetUserIDs is set, mirroring the tagged
// event target.
type WireEvent struct {
	Kind          string    `json:"kind"`
	RoomID        string    `json:"roomId,omitempty"`
	TargetUserIDs []string  `json:"targetUserIds,omitempty"`
	Payload       any       `json:"payload"`
	DedupKey      string    `json:"dedupKey,omitempty"`
	Ts            time.Time `json:"ts"`
}

func toWireEvent(evt event.Event) WireEvent {
	wire := WireEvent{
		Kind:     string(evt.Kind),
		Payload:  evt.Payload,
		DedupKey: evt.DedupKey,
		Ts:       evt.At,
	}
	switch t := evt.Target.(type) {
	case event.RoomTarget:
		wire.RoomID = string(t.Room)
	case event.UserSetTarget:
		wire.TargetUserIDs = lo.Map(t.Users, func(u domain.UserID, _ int) string {
			return string(u)
		})
	}
	return wire
}

// clientFrame is what a connected client may send over the socket.
type clientFrame struct {
	Action string `json:"action" validate:"required,oneof=join leave typing"`
	RoomID string `json:"roomId" validate:"required"`
	Typing bool   `json:"typing"`
}
