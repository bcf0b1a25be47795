package runtime

import (
	"context"
	"testing"
	"time"

	"cinelive/domain"
	"cinelive/domain/chat"
	"cinelive/domain/event"
	"cinelive/errors"
	"cinelive/mocks"
	"cinelive/observability"
	"cinelive/runtime/workers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func orchestratorFixture(t *testing.T) (*Orchestrator, *mocks.MockDirectory) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	log := testLogger()
	directory := mocks.NewMockDirectory(ctrl)
	supervisor := workers.NewSupervisor(log, time.Second)
	stats := observability.NewMonitoringManager(log)

	orchestrator := NewOrchestrator(log, supervisor, directory, stats, Timings{
		DeliveryTimeout:   time.Second,
		DedupWindow:       5 * time.Second,
		DedupPruneEvery:   time.Minute,
		TypingTTL:         time.Minute,
		IdleTimeout:       time.Minute,
		ReapEvery:         time.Minute,
		HeartbeatInterval: time.Minute,
	})
	return orchestrator, directory
}

func TestOrchestrator_Message_Flows_From_Write_To_Joined_Devices(t *testing.T) {
	req := require.New(t)
	orchestrator, directory := orchestratorFixture(t)
	ctx := context.Background()
	roomID := domain.ChatRoom("conv-42")

	directory.EXPECT().
		IsAuthorizedMember(gomock.Any(), gomock.Any(), roomID).
		Return(true, nil).
		Times(3)
	directory.EXPECT().
		GetConversationParticipants(gomock.Any(), "conv-42").
		Return([]domain.UserID{"alice", "bob"}, nil).
		Times(1)

	// Given alice on two devices and bob on one, all joined
	alicePhone := &captureSink{}
	aliceLaptop := &captureSink{}
	bobPhone := &captureSink{}
	req.NoError(orchestrator.Connect("alice-phone", "alice", alicePhone))
	req.NoError(orchestrator.Connect("alice-laptop", "alice", aliceLaptop))
	req.NoError(orchestrator.Connect("bob-phone", "bob", bobPhone))
	req.NoError(orchestrator.Join(ctx, "alice-phone", roomID))
	req.NoError(orchestrator.Join(ctx, "alice-laptop", roomID))
	req.NoError(orchestrator.Join(ctx, "bob-phone", roomID))

	// When a persisted message crosses the bridge
	msg := chat.Message{ID: uuid.New(), Conversation: "conv-42", Author: "alice", Content: "hello"}
	delivered, err := orchestrator.OnWritten(ctx, msg)

	// Then every joined device receives it once, the author included
	req.NoError(err)
	req.Equal(3, delivered)
	req.Equal(1, alicePhone.count())
	req.Equal(1, aliceLaptop.count())
	req.Equal(1, bobPhone.count())
}

func TestOrchestrator_Join_Requires_A_Live_Connection(t *testing.T) {
	req := require.New(t)
	orchestrator, _ := orchestratorFixture(t)

	// When an unknown connection joins
	err := orchestrator.Join(context.Background(), "ghost", domain.ChatRoom("conv-42"))

	req.ErrorIs(err, errors.ErrNotFound)
}

func TestOrchestrator_Disconnect_Cascade_Clears_Typing_On_Last_Connection(t *testing.T) {
	req := require.New(t)
	orchestrator, directory := orchestratorFixture(t)
	ctx := context.Background()
	roomID := domain.ChatRoom("conv-42")

	directory.EXPECT().
		IsAuthorizedMember(gomock.Any(), gomock.Any(), roomID).
		Return(true, nil).
		Times(3)

	// Given alice typing, observed by bob
	bob := &captureSink{}
	req.NoError(orchestrator.Connect("alice-phone", "alice", &captureSink{}))
	req.NoError(orchestrator.Connect("alice-laptop", "alice", &captureSink{}))
	req.NoError(orchestrator.Connect("bob-phone", "bob", bob))
	req.NoError(orchestrator.Join(ctx, "alice-phone", roomID))
	req.NoError(orchestrator.Join(ctx, "alice-laptop", roomID))
	req.NoError(orchestrator.Join(ctx, "bob-phone", roomID))
	req.NoError(orchestrator.SetTyping(ctx, "alice-phone", roomID, true))
	req.Equal(1, bob.count())

	// When a non-last connection of alice disconnects
	orchestrator.Disconnect(ctx, "alice-laptop")

	// Then her typing state survives
	req.Equal(1, bob.count())

	// When her last connection disconnects
	orchestrator.Disconnect(ctx, "alice-phone")

	// Then observers see the forced idle transition
	req.Equal(2, bob.count())
	last := bob.events[len(bob.events)-1]
	req.Equal(event.KindTypingChanged, last.Kind)
	req.False(last.Payload.(event.TypingPayload).Typing)

	// And alice is fully gone
	req.Empty(orchestrator.ConnectionsOf("alice"))
}

func TestOrchestrator_Disconnect_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	orchestrator, _ := orchestratorFixture(t)
	ctx := context.Background()

	req.NoError(orchestrator.Connect("alice-phone", "alice", &captureSink{}))

	// When the same connection is torn down twice (reaper race)
	orchestrator.Disconnect(ctx, "alice-phone")
	orchestrator.Disconnect(ctx, "alice-phone")

	req.Empty(orchestrator.ConnectionsOf("alice"))
}

func TestOrchestrator_Leave_Stops_Delivery(t *testing.T) {
	req := require.New(t)
	orchestrator, directory := orchestratorFixture(t)
	ctx := context.Background()
	roomID := domain.ChatRoom("conv-42")

	directory.EXPECT().
		IsAuthorizedMember(gomock.Any(), gomock.Any(), roomID).
		Return(true, nil).
		Times(2)
	directory.EXPECT().
		GetConversationParticipants(gomock.Any(), "conv-42").
		Return([]domain.UserID{"alice", "bob"}, nil).
		Times(1)

	// Given two joined users, one of whom leaves
	alice := &captureSink{}
	bob := &captureSink{}
	req.NoError(orchestrator.Connect("alice-phone", "alice", alice))
	req.NoError(orchestrator.Connect("bob-phone", "bob", bob))
	req.NoError(orchestrator.Join(ctx, "alice-phone", roomID))
	req.NoError(orchestrator.Join(ctx, "bob-phone", roomID))
	orchestrator.Leave("bob-phone", roomID)

	// When a message is published
	msg := chat.Message{ID: uuid.New(), Conversation: "conv-42", Author: "alice"}
	delivered, err := orchestrator.OnWritten(ctx, msg)

	// Then only the remaining member receives it
	req.NoError(err)
	req.Equal(1, delivered)
	req.Equal(1, alice.count())
	req.Zero(bob.count())
}
