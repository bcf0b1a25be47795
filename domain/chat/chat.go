// Package chat defines messages and the commands mutating them.
// Messages are immutable once persisted; edits and deletions produce
// new revisions of the same entity.
package chat

import (
	"time"

	"cinelive/domain"

	"github.com/google/uuid"
)

// Message is the canonical chat record, persisted before any fan-out.
// Content is the sanitized form; CensoredWords keeps track of what the
// moderator replaced.
type Message struct {
	ID            uuid.UUID
	Conversation  string
	Author        domain.UserID
	Content       string
	CensoredWords []string
	Lang          string
	Revision      int
	Deleted       bool
	CreatedAt     time.Time
	EditedAt      *time.Time
}

func (m Message) RoomID() domain.RoomID {
	return domain.ChatRoom(m.Conversation)
}

type PostMessageCommand struct {
	Conversation string
	Author       domain.UserID
	Content      string
	CreatedAt    time.Time
}

type EditMessageCommand struct {
	Conversation string
	MessageID    uuid.UUID
	Author       domain.UserID
	Content      string
	EditedAt     time.Time
}

type DeleteMessageCommand struct {
	Conversation string
	MessageID    uuid.UUID
	Author       domain.UserID
}

type GetMessagesCommand struct {
	Conversation string
	Cursor       *string
}
