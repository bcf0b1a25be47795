package services

import (
	"context"
	"time"

	"cinelive/domain/chat"
	"cinelive/errors"
	"cinelive/moderation"
	"cinelive/repositories"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

// LiveBridge hands freshly persisted entities to the live fan-out. The
// service invokes it only after a successful durable write.
type LiveBridge interface {
	OnWritten(ctx context.Context, entity any) (int, error)
}

type IChatService interface {
	PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error)
	EditMessage(ctx context.Context, cmd chat.EditMessageCommand) (chat.Message, error)
	DeleteMessage(ctx context.Context, cmd chat.DeleteMessageCommand) (chat.Message, error)
	GetMessages(cmd chat.GetMessagesCommand) ([]chat.Message, *string, error)
}

type ChatService struct {
	messageRepository repositories.IMessageRepository
	moderator         *moderation.Moderator
	bridge            LiveBridge
	maxContentLength  int
}

func NewChatService(repo repositories.IMessageRepository, moderator *moderation.Moderator,
	bridge LiveBridge, maxContentLength int) *ChatService {
	return &ChatService{
		messageRepository: repo,
		moderator:         moderator,
		bridge:            bridge,
		maxContentLength:  maxContentLength,
	}
}

// PostMessage sanitizes, persists, then publishes. The fan-out payload
// is the stored canonical record, so every device sees the same
// sanitized content with the same timestamps.
func (s *ChatService) PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error) {
	if len(cmd.Content) > s.maxContentLength {
		return chat.Message{}, errors.ErrContentTooLong
	}

	sanitized, foundWords := s.moderator.Censor(cmd.Content)
	info := whatlanggo.Detect(cmd.Content)

	message := chat.Message{
		ID:            uuid.New(),
		Conversation:  cmd.Conversation,
		Author:        cmd.Author,
		Content:       sanitized,
		CensoredWords: foundWords,
		Lang:          info.Lang.Iso6391(),
		CreatedAt:     cmd.CreatedAt,
	}
	if err := s.messageRepository.StoreMessage(message); err != nil {
		return chat.Message{}, err
	}

	// Best-effort live push; failures never roll back the write.
	_, err := s.bridge.OnWritten(ctx, message)
	return message, err
}

// EditMessage stores a new revision of an existing message and
// publishes message.edited so clients patch their local views.
func (s *ChatService) EditMessage(ctx context.Context, cmd chat.EditMessageCommand) (chat.Message, error) {
	if len(cmd.Content) > s.maxContentLength {
		return chat.Message{}, errors.ErrContentTooLong
	}

	message, err := s.messageRepository.GetMessage(cmd.MessageID)
	if err != nil {
		return chat.Message{}, err
	}
	if message.Author != cmd.Author || message.Deleted {
		return chat.Message{}, errors.ErrNotAuthorized
	}

	sanitized, foundWords := s.moderator.Censor(cmd.Content)
	message.Content = sanitized
	message.CensoredWords = foundWords
	message.Revision++
	message.EditedAt = &cmd.EditedAt

	if err := s.messageRepository.StoreMessage(message); err != nil {
		return chat.Message{}, err
	}
	_, err = s.bridge.OnWritten(ctx, message)
	return message, err
}

// DeleteMessage tombstones the record; clients receive message.deleted
// and blank it locally, catch-up readers see the tombstone.
func (s *ChatService) DeleteMessage(ctx context.Context, cmd chat.DeleteMessageCommand) (chat.Message, error) {
	message, err := s.messageRepository.GetMessage(cmd.MessageID)
	if err != nil {
		return chat.Message{}, err
	}
	if message.Author != cmd.Author {
		return chat.Message{}, errors.ErrNotAuthorized
	}
	if message.Deleted {
		return message, nil
	}

	now := time.Now().UTC()
	message.Content = ""
	message.CensoredWords = nil
	message.Deleted = true
	message.Revision++
	message.EditedAt = &now

	if err := s.messageRepository.StoreMessage(message); err != nil {
		return chat.Message{}, err
	}
	_, err = s.bridge.OnWritten(ctx, message)
	return message, err
}

func (s *ChatService) GetMessages(cmd chat.GetMessagesCommand) ([]chat.Message, *string, error) {
	return s.messageRepository.GetMessages(cmd.Conversation, cmd.Cursor)
}
