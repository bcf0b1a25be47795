package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cinelive/domain"
	"cinelive/domain/event"
	"cinelive/errors"
	"cinelive/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func typingFixture(t *testing.T, ttl time.Duration) (*TypingCoordinator, *mocks.MockIDispatcher, *mocks.MockIMembership) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	dispatcher := mocks.NewMockIDispatcher(ctrl)
	membership := mocks.NewMockIMembership(ctrl)
	coordinator := NewTypingCoordinator(testLogger(), dispatcher, membership, ttl)
	return coordinator, dispatcher, membership
}

func isTypingEvent(typing bool) gomock.Matcher {
	return gomock.Cond(func(x any) bool {
		evt, ok := x.(event.Event)
		if !ok || evt.Kind != event.KindTypingChanged {
			return false
		}
		payload, ok := evt.Payload.(event.TypingPayload)
		return ok && payload.Typing == typing
	})
}

func TestTyping_First_Signal_Broadcasts_Started(t *testing.T) {
	req := require.New(t)
	coordinator, dispatcher, membership := typingFixture(t, time.Minute)
	roomID := domain.ChatRoom("conv-42")

	membership.EXPECT().IsJoined(domain.ConnectionID("conn-1"), roomID).Return(true).Times(1)

	// Then exactly one "started typing" transition goes out, with the
	// origin connection excluded
	dispatcher.EXPECT().
		Publish(gomock.Any(), isTypingEvent(true)).
		DoAndReturn(func(ctx context.Context, evt event.Event) int {
			require.Equal(t, domain.ConnectionID("conn-1"), evt.Origin)
			require.Empty(t, evt.DedupKey)
			return 1
		}).
		Times(1)

	// When a first typing signal arrives
	err := coordinator.SetTyping(context.Background(), "conn-1", "alice", roomID, true)
	req.NoError(err)
	req.Equal(1, coordinator.ActiveCount())
}

func TestTyping_Refresh_Is_Silent(t *testing.T) {
	req := require.New(t)
	coordinator, dispatcher, membership := typingFixture(t, time.Minute)
	roomID := domain.ChatRoom("conv-42")

	membership.EXPECT().IsJoined(gomock.Any(), gomock.Any()).Return(true).Times(3)

	// Then only the initial transition is broadcast
	dispatcher.EXPECT().Publish(gomock.Any(), isTypingEvent(true)).Return(1).Times(1)

	// When the client keeps signalling while typing
	req.NoError(coordinator.SetTyping(context.Background(), "conn-1", "alice", roomID, true))
	req.NoError(coordinator.SetTyping(context.Background(), "conn-1", "alice", roomID, true))
	req.NoError(coordinator.SetTyping(context.Background(), "conn-1", "alice", roomID, true))

	req.Equal(1, coordinator.ActiveCount())
}

func TestTyping_Explicit_Stop_Broadcasts_Idle(t *testing.T) {
	req := require.New(t)
	coordinator, dispatcher, membership := typingFixture(t, time.Minute)
	roomID := domain.ChatRoom("conv-42")

	membership.EXPECT().IsJoined(gomock.Any(), gomock.Any()).Return(true).Times(2)

	dispatcher.EXPECT().Publish(gomock.Any(), isTypingEvent(true)).Return(1).Times(1)
	dispatcher.EXPECT().Publish(gomock.Any(), isTypingEvent(false)).Return(1).Times(1)

	// Given a typing user
	req.NoError(coordinator.SetTyping(context.Background(), "conn-1", "alice", roomID, true))

	// When they explicitly stop
	req.NoError(coordinator.SetTyping(context.Background(), "conn-1", "alice", roomID, false))

	// Then the entry is gone
	req.Zero(coordinator.ActiveCount())
}

func TestTyping_Stop_While_Idle_Is_Noop(t *testing.T) {
	req := require.New(t)
	coordinator, dispatcher, membership := typingFixture(t, time.Minute)
	roomID := domain.ChatRoom("conv-42")

	membership.EXPECT().IsJoined(gomock.Any(), gomock.Any()).Return(true).Times(1)
	dispatcher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// When a stop arrives with no live typing entry
	req.NoError(coordinator.SetTyping(context.Background(), "conn-1", "alice", roomID, false))
	req.Zero(coordinator.ActiveCount())
}

func TestTyping_Not_Joined_Is_Rejected_Without_Broadcast(t *testing.T) {
	req := require.New(t)
	coordinator, dispatcher, membership := typingFixture(t, time.Minute)
	roomID := domain.ChatRoom("conv-42")

	membership.EXPECT().IsJoined(domain.ConnectionID("conn-1"), roomID).Return(false).Times(1)
	dispatcher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// When a typing signal arrives for an unjoined room
	err := coordinator.SetTyping(context.Background(), "conn-1", "alice", roomID, true)

	req.ErrorIs(err, errors.ErrNotJoined)
	req.Zero(coordinator.ActiveCount())
}

func TestTyping_Expiry_Emits_Single_Idle_Transition(t *testing.T) {
	req := require.New(t)
	coordinator, dispatcher, membership := typingFixture(t, 20*time.Millisecond)
	roomID := domain.ChatRoom("conv-42")

	membership.EXPECT().IsJoined(gomock.Any(), gomock.Any()).Return(true).Times(1)

	var idleBroadcasts atomic.Int32
	dispatcher.EXPECT().Publish(gomock.Any(), isTypingEvent(true)).Return(1).Times(1)
	dispatcher.EXPECT().
		Publish(gomock.Any(), isTypingEvent(false)).
		DoAndReturn(func(ctx context.Context, evt event.Event) int {
			idleBroadcasts.Add(1)
			return 1
		}).
		Times(1)

	// Given a typing user that goes quiet
	req.NoError(coordinator.SetTyping(context.Background(), "conn-1", "alice", roomID, true))

	// When the ttl elapses without a refresh
	require.Eventually(t, func() bool {
		return idleBroadcasts.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// Then the entry expired exactly once
	req.Zero(coordinator.ActiveCount())
}

func TestTyping_Racing_Devices_Publish_In_Decided_Order(t *testing.T) {
	roomID := domain.ChatRoom("conv-42")

	// Two devices of the same user racing a true and a false signal:
	// whichever transition is decided last must also be broadcast last,
	// or remote clients end up stuck on a stale typing state.
	for i := 0; i < 100; i++ {
		coordinator, dispatcher, membership := typingFixture(t, time.Minute)
		membership.EXPECT().IsJoined(gomock.Any(), gomock.Any()).Return(true).AnyTimes()

		var mu sync.Mutex
		var published []bool
		dispatcher.EXPECT().
			Publish(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, evt event.Event) int {
				mu.Lock()
				published = append(published, evt.Payload.(event.TypingPayload).Typing)
				mu.Unlock()
				return 1
			}).
			AnyTimes()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = coordinator.SetTyping(context.Background(), "conn-a", "alice", roomID, true)
		}()
		go func() {
			defer wg.Done()
			_ = coordinator.SetTyping(context.Background(), "conn-b", "alice", roomID, false)
		}()
		wg.Wait()

		// The true signal always broadcasts, so at least one event went
		// out; its last one must match the coordinator's final state
		mu.Lock()
		require.NotEmpty(t, published)
		last := published[len(published)-1]
		mu.Unlock()
		require.Equal(t, coordinator.ActiveCount() > 0, last)
	}
}

func TestTyping_ClearUser_Transitions_All_Rooms_To_Idle(t *testing.T) {
	req := require.New(t)
	coordinator, dispatcher, membership := typingFixture(t, time.Minute)
	room1 := domain.ChatRoom("conv-1")
	room2 := domain.ChatRoom("conv-2")

	membership.EXPECT().IsJoined(gomock.Any(), gomock.Any()).Return(true).Times(3)

	dispatcher.EXPECT().Publish(gomock.Any(), isTypingEvent(true)).Return(1).Times(3)
	// Then alice's two rooms transition to idle, bob's entry survives
	dispatcher.EXPECT().
		Publish(gomock.Any(), isTypingEvent(false)).
		DoAndReturn(func(ctx context.Context, evt event.Event) int {
			payload := evt.Payload.(event.TypingPayload)
			require.Equal(t, domain.UserID("alice"), payload.User)
			return 1
		}).
		Times(2)

	// Given alice typing in two rooms and bob in one
	req.NoError(coordinator.SetTyping(context.Background(), "conn-1", "alice", room1, true))
	req.NoError(coordinator.SetTyping(context.Background(), "conn-1", "alice", room2, true))
	req.NoError(coordinator.SetTyping(context.Background(), "conn-2", "bob", room1, true))

	// When alice's last connection disconnects
	coordinator.ClearUser(context.Background(), "alice")

	req.Equal(1, coordinator.ActiveCount())
}
