package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"cinelive/domain/chat"
	"cinelive/errors"
	"cinelive/mocks"
	"cinelive/moderation"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// recordingBridge captures what the service hands to the live fan-out.
type recordingBridge struct {
	mu       sync.Mutex
	entities []any
}

func (b *recordingBridge) OnWritten(ctx context.Context, entity any) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entities = append(b.entities, entity)
	return 1, nil
}

func newTestModerator(t *testing.T) *moderation.Moderator {
	t.Helper()
	mod, err := moderation.NewModerator([]string{"badger"}, '*')
	require.NoError(t, err)
	return &mod
}

func TestChatService_PostMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIMessageRepository(ctrl)
	bridge := &recordingBridge{}
	svc := NewChatService(mockRepo, newTestModerator(t), bridge, 500)

	t.Run("should sanitize persist and bridge", func(t *testing.T) {
		req := require.New(t)

		var stored chat.Message
		mockRepo.EXPECT().
			StoreMessage(gomock.Any()).
			DoAndReturn(func(msg chat.Message) error {
				stored = msg
				return nil
			}).
			Times(1)

		message, err := svc.PostMessage(context.Background(), chat.PostMessageCommand{
			Conversation: "conv-42",
			Author:       "alice",
			Content:      "this badger is a problem",
			CreatedAt:    time.Now().UTC(),
		})

		req.NoError(err)
		// The stored record carries the censored form, and the bridged
		// payload is that same canonical record
		req.Equal("this ****** is a problem", stored.Content)
		req.Equal([]string{"badger"}, stored.CensoredWords)
		req.NotEmpty(stored.Lang)
		req.Equal(stored, message)
		req.Equal([]any{stored}, bridge.entities)
	})

	t.Run("should reject content above the limit", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().StoreMessage(gomock.Any()).Times(0)

		_, err := svc.PostMessage(context.Background(), chat.PostMessageCommand{
			Conversation: "conv-42",
			Author:       "alice",
			Content:      strings.Repeat("x", 501),
		})

		req.ErrorIs(err, errors.ErrContentTooLong)
	})
}

func TestChatService_EditMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIMessageRepository(ctrl)
	bridge := &recordingBridge{}
	svc := NewChatService(mockRepo, newTestModerator(t), bridge, 500)
	messageID := uuid.New()

	t.Run("should bump revision and set edited timestamp", func(t *testing.T) {
		req := require.New(t)
		editedAt := time.Now().UTC()

		mockRepo.EXPECT().
			GetMessage(messageID).
			Return(chat.Message{ID: messageID, Conversation: "conv-42", Author: "alice", Content: "old"}, nil).
			Times(1)

		var stored chat.Message
		mockRepo.EXPECT().
			StoreMessage(gomock.Any()).
			DoAndReturn(func(msg chat.Message) error {
				stored = msg
				return nil
			}).
			Times(1)

		message, err := svc.EditMessage(context.Background(), chat.EditMessageCommand{
			Conversation: "conv-42",
			MessageID:    messageID,
			Author:       "alice",
			Content:      "new badger text",
			EditedAt:     editedAt,
		})

		req.NoError(err)
		req.Equal(1, stored.Revision)
		req.Equal("new ****** text", stored.Content)
		req.Equal(&editedAt, stored.EditedAt)
		req.Equal(stored, message)
	})

	t.Run("should refuse edits from another author", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetMessage(messageID).
			Return(chat.Message{ID: messageID, Author: "alice"}, nil).
			Times(1)
		mockRepo.EXPECT().StoreMessage(gomock.Any()).Times(0)

		_, err := svc.EditMessage(context.Background(), chat.EditMessageCommand{
			MessageID: messageID,
			Author:    "mallory",
			Content:   "hijacked",
		})

		req.ErrorIs(err, errors.ErrNotAuthorized)
	})

	t.Run("should refuse editing a deleted message", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetMessage(messageID).
			Return(chat.Message{ID: messageID, Author: "alice", Deleted: true}, nil).
			Times(1)
		mockRepo.EXPECT().StoreMessage(gomock.Any()).Times(0)

		_, err := svc.EditMessage(context.Background(), chat.EditMessageCommand{
			MessageID: messageID,
			Author:    "alice",
			Content:   "resurrection attempt",
		})

		req.ErrorIs(err, errors.ErrNotAuthorized)
	})
}

func TestChatService_DeleteMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIMessageRepository(ctrl)
	bridge := &recordingBridge{}
	svc := NewChatService(mockRepo, newTestModerator(t), bridge, 500)
	messageID := uuid.New()

	t.Run("should tombstone the record", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetMessage(messageID).
			Return(chat.Message{
				ID: messageID, Conversation: "conv-42", Author: "alice",
				Content: "secret", CensoredWords: []string{"x"},
			}, nil).
			Times(1)

		var stored chat.Message
		mockRepo.EXPECT().
			StoreMessage(gomock.Any()).
			DoAndReturn(func(msg chat.Message) error {
				stored = msg
				return nil
			}).
			Times(1)

		message, err := svc.DeleteMessage(context.Background(), chat.DeleteMessageCommand{
			Conversation: "conv-42",
			MessageID:    messageID,
			Author:       "alice",
		})

		req.NoError(err)
		req.True(stored.Deleted)
		req.Empty(stored.Content)
		req.Nil(stored.CensoredWords)
		req.Equal(1, stored.Revision)
		req.Equal(stored, message)
	})

	t.Run("should be idempotent on an already deleted message", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetMessage(messageID).
			Return(chat.Message{ID: messageID, Author: "alice", Deleted: true}, nil).
			Times(1)
		mockRepo.EXPECT().StoreMessage(gomock.Any()).Times(0)

		message, err := svc.DeleteMessage(context.Background(), chat.DeleteMessageCommand{
			MessageID: messageID,
			Author:    "alice",
		})

		req.NoError(err)
		req.True(message.Deleted)
	})

	t.Run("should refuse deletion by another author", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetMessage(messageID).
			Return(chat.Message{ID: messageID, Author: "alice"}, nil).
			Times(1)
		mockRepo.EXPECT().StoreMessage(gomock.Any()).Times(0)

		_, err := svc.DeleteMessage(context.Background(), chat.DeleteMessageCommand{
			MessageID: messageID,
			Author:    "mallory",
		})

		req.ErrorIs(err, errors.ErrNotAuthorized)
	})
}
