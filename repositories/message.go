//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"cinelive/domain"
	"cinelive/domain/chat"
	"cinelive/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	StoreMessage(message chat.Message) error
	GetMessage(messageID uuid.UUID) (chat.Message, error)
	GetMessages(conversation string, cursor *string) ([]chat.Message, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// diskMessage is the stored form of a chat message.
type diskMessage struct {
	ID            uuid.UUID  `json:"id"`
	Conversation  string     `json:"conversation"`
	Author        string     `json:"author"`
	Content       string     `json:"content"`
	CensoredWords []string   `json:"censored_words,omitempty"`
	Lang          string     `json:"lang,omitempty"`
	Revision      int        `json:"revision"`
	Deleted       bool       `json:"deleted"`
	CreatedAt     time.Time  `json:"created_at"`
	EditedAt      *time.Time `json:"edited_at,omitempty"`
}

// StoreMessage persists a message revision.
// The primary key is "msg:{conversation}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
//
// A secondary index "idx:msg:{uuid}" points at the primary key so edits
// and deletions can rewrite the same record in place.
func (m MessageRepository) StoreMessage(message chat.Message) error {
	primary := messageKey(message.Conversation, message.CreatedAt, message.ID)
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(primary), bytes); err != nil {
			return err
		}
		return txn.Set([]byte(messageIndexKey(message.ID)), []byte(primary))
	})
}

// GetMessage resolves a message by id through the secondary index.
func (m MessageRepository) GetMessage(messageID uuid.UUID) (chat.Message, error) {
	var stored diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(messageIndexKey(messageID)))
		if err != nil {
			return err
		}
		var primary []byte
		if err = item.Value(func(val []byte) error {
			primary = append(primary, val...)
			return nil
		}); err != nil {
			return err
		}
		item, err = txn.Get(primary)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err == badger.ErrKeyNotFound {
		return chat.Message{}, errors.ErrNotFound
	}
	if err != nil {
		return chat.Message{}, err
	}
	return toMessage(stored), nil
}

// GetMessages retrieves the newest messages of a conversation using a
// reverse prefix scan. Thanks to the padded timestamp in the key,
// messages are naturally sorted by time. The returned cursor resumes
// the scan on the next page.
func (m MessageRepository) GetMessages(conversation string, cursor *string) ([]chat.Message, *string, error) {
	var stored []diskMessage
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", conversation)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible position, then walk back.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(stored) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			// Memorize the cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				var msg diskMessage
				if err := json.Unmarshal(value, &msg); err != nil {
					return err
				}
				stored = append(stored, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// An exhausted scan ends the pagination; never hand back an empty
	// cursor that would restart it.
	if len(stored) == 0 {
		return nil, nil, nil
	}

	messages := lo.Map(stored, func(item diskMessage, _ int) chat.Message {
		return toMessage(item)
	})
	return messages, &lastKey, nil
}

func messageKey(conversation string, at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("msg:%s:%019d:%s", conversation, at.UnixNano(), id)
}

func messageIndexKey(id uuid.UUID) string {
	return fmt.Sprintf("idx:msg:%s", id)
}

func fromMessage(message chat.Message) diskMessage {
	return diskMessage{
		ID:            message.ID,
		Conversation:  message.Conversation,
		Author:        string(message.Author),
		Content:       message.Content,
		CensoredWords: message.CensoredWords,
		Lang:          message.Lang,
		Revision:      message.Revision,
		Deleted:       message.Deleted,
		CreatedAt:     message.CreatedAt,
		EditedAt:      message.EditedAt,
	}
}

func toMessage(stored diskMessage) chat.Message {
	return chat.Message{
		ID:            stored.ID,
		Conversation:  stored.Conversation,
		Author:        domain.UserID(stored.Author),
		Content:       stored.Content,
		CensoredWords: stored.CensoredWords,
		Lang:          stored.Lang,
		Revision:      stored.Revision,
		Deleted:       stored.Deleted,
		CreatedAt:     stored.CreatedAt,
		EditedAt:      stored.EditedAt,
	}
}
