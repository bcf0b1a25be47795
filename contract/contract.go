//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"cinelive/domain"
	"cinelive/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the non-blocking outbound side of one connection.
// Consume must never stall the caller beyond the context deadline.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// IRegistry tracks live connections and which user each belongs to.
type IRegistry interface {
	Register(connID domain.ConnectionID, userID domain.UserID, sink EventSink) error
	// Unregister is idempotent: disconnect races are expected.
	Unregister(connID domain.ConnectionID) (domain.UserID, bool)
	ConnectionsOf(userID domain.UserID) []domain.ConnectionID
	UserOf(connID domain.ConnectionID) (domain.UserID, bool)
	SinkOf(connID domain.ConnectionID) (EventSink, bool)
	Touch(connID domain.ConnectionID)
	IdleConnections(olderThan time.Duration) []domain.ConnectionID
}

// IMembership maps rooms to the connections currently subscribed.
type IMembership interface {
	Join(ctx context.Context, connID domain.ConnectionID, userID domain.UserID, roomID domain.RoomID) error
	Leave(connID domain.ConnectionID, roomID domain.RoomID)
	IsJoined(connID domain.ConnectionID, roomID domain.RoomID) bool
	MembersOf(roomID domain.RoomID) []domain.ConnectionID
	DropConnection(connID domain.ConnectionID) []domain.RoomID
}

// IDispatcher delivers an event to every live connection in scope,
// exactly once per connection, best effort.
type IDispatcher interface {
	// Publish claims the event's dedup key and delivers. Returns the
	// number of connections actually delivered to; 0 is valid.
	Publish(ctx context.Context, evt event.Event) int
	// Claim reserves a dedup key without delivering; used by batched
	// fan-out paths that deliver page by page after a single claim.
	Claim(key string) bool
	// Deliver resolves and delivers without touching the dedup index.
	Deliver(ctx context.Context, evt event.Event) int
}

// Directory is the persistence collaborator consulted for participant,
// follower, and authorization lookups. The core never holds a lock
// across a call into it.
type Directory interface {
	GetConversationParticipants(ctx context.Context, conversationID string) ([]domain.UserID, error)
	GetFollowers(ctx context.Context, userID domain.UserID, cursor *string) ([]domain.UserID, *string, error)
	IsAuthorizedMember(ctx context.Context, userID domain.UserID, roomID domain.RoomID) (bool, error)
}
