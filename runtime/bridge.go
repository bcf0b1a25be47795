package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cinelive/contract"
	"cinelive/domain/chat"
	"cinelive/domain/event"
	"cinelive/domain/feed"
)

// Bridge sits between the durable write path and the dispatcher. It is
// invoked only after a successful persist, so it carries no rollback
// semantics of its own: it turns the canonical record into an event and
// publishes it.
type Bridge struct {
	log        *slog.Logger
	directory  contract.Directory
	dispatcher contract.IDispatcher
}

func NewBridge(log *slog.Logger, directory contract.Directory, dispatcher contract.IDispatcher) *Bridge {
	return &Bridge{log: log, directory: directory, dispatcher: dispatcher}
}

// OnWritten publishes the live event for a freshly persisted entity.
// Returns the number of connections delivered to; 0 is valid.
func (b *Bridge) OnWritten(ctx context.Context, entity any) (int, error) {
	switch e := entity.(type) {
	case chat.Message:
		return b.onMessage(ctx, e)
	case feed.Activity:
		return b.onActivity(ctx, e)
	default:
		b.log.Debug(fmt.Sprintf("No live event for entity %T", entity))
		return 0, nil
	}
}

func (b *Bridge) onMessage(ctx context.Context, msg chat.Message) (int, error) {
	// Participant lookup validates the conversation still exists; the
	// actual recipient set comes from room membership at dispatch time.
	if _, err := b.directory.GetConversationParticipants(ctx, msg.Conversation); err != nil {
		return 0, err
	}

	kind := event.KindMessageCreated
	switch {
	case msg.Deleted:
		kind = event.KindMessageDeleted
	case msg.Revision > 0:
		kind = event.KindMessageEdited
	}

	delivered := b.dispatcher.Publish(ctx, event.Event{
		Kind:     kind,
		Target:   event.RoomTarget{Room: msg.RoomID()},
		Payload:  msg,
		DedupKey: event.DedupKey(msg.ID.String(), kind, msg.Revision),
		At:       time.Now().UTC(),
	})
	b.log.Debug("Message event published",
		"kind", kind, "conversation", msg.Conversation, "delivered", delivered)
	return delivered, nil
}

// onActivity fans an activity out to the actor's followers. Followers
// are resolved page by page so a very large follower list is never held
// in memory at once, and delivered per-user so followers do not see
// each other. The dedup key is claimed once up front: pagination is one
// logical publication, not many.
func (b *Bridge) onActivity(ctx context.Context, act feed.Activity) (int, error) {
	key := event.DedupKey(act.ID.String(), event.KindActivityCreated, 0)
	if !b.dispatcher.Claim(key) {
		b.log.Debug("Duplicate activity publish suppressed", "dedup_key", key)
		return 0, nil
	}

	evt := event.Event{
		Kind:     event.KindActivityCreated,
		Payload:  act,
		DedupKey: key,
		At:       time.Now().UTC(),
	}

	delivered := 0
	var cursor *string
	for {
		followers, next, err := b.directory.GetFollowers(ctx, act.Actor, cursor)
		if err != nil {
			return delivered, err
		}
		if len(followers) > 0 {
			evt.Target = event.UserSetTarget{Users: followers}
			delivered += b.dispatcher.Deliver(ctx, evt)
		}
		if next == nil {
			break
		}
		cursor = next
	}

	b.log.Debug("Activity event published",
		"actor", act.Actor, "verb", act.Verb, "delivered", delivered)
	return delivered, nil
}
