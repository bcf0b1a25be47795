package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"cinelive/domain"
	"cinelive/errors"

	"github.com/dgraph-io/badger/v4"
)

// SocialRepository stores the follow graph and conversation membership,
// and implements the Directory collaborator the live core consults for
// participant, follower, and authorization lookups.
//
// Key layout:
//
//	conv:{conversationId}:{userId}  -> membership marker
//	follower:{followeeId}:{followerId} -> follow edge
//
// Follower pagination rides the lexicographic key order; the opaque
// cursor is the last follower id of the previous page.
type SocialRepository struct {
	db       *badger.DB
	log      *slog.Logger
	pageSize int
}

func NewSocialRepository(db *badger.DB, log *slog.Logger, pageSize int) *SocialRepository {
	return &SocialRepository{db: db, log: log, pageSize: pageSize}
}

// CreateConversation records the participant set of a conversation.
func (s *SocialRepository) CreateConversation(conversationID string, members []domain.UserID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, member := range members {
			key := conversationKey(conversationID, member)
			if err := txn.Set([]byte(key), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// Follow records follower -> followee; the follower will receive the
// followee's activity events while connected.
func (s *SocialRepository) Follow(follower, followee domain.UserID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(followerKey(followee, follower)), nil)
	})
}

func (s *SocialRepository) Unfollow(follower, followee domain.UserID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(followerKey(followee, follower)))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// GetConversationParticipants fails with ErrNotFound if the
// conversation is absent.
func (s *SocialRepository) GetConversationParticipants(_ context.Context, conversationID string) ([]domain.UserID, error) {
	var members []domain.UserID
	prefix := []byte(fmt.Sprintf("conv:%s:", conversationID))
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			members = append(members, domain.UserID(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, errors.ErrNotFound
	}
	return members, nil
}

// GetFollowers returns one page of followers and the cursor for the
// next one, nil when the scan is exhausted. Pages are bounded so very
// large follower lists are never loaded at once.
func (s *SocialRepository) GetFollowers(_ context.Context, userID domain.UserID, cursor *string) ([]domain.UserID, *string, error) {
	var followers []domain.UserID
	var lastID string
	exhausted := true

	prefixStr := fmt.Sprintf("follower:%s:", userID)
	prefix := []byte(prefixStr)
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := prefix
		if cursor != nil {
			seekKey = []byte(prefixStr + *cursor)
		}
		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(followers) == s.pageSize {
				exhausted = false
				break
			}
			key := it.Item().Key()
			lastID = string(key[len(prefix):])
			followers = append(followers, domain.UserID(lastID))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if exhausted {
		return followers, nil, nil
	}
	return followers, &lastID, nil
}

// IsAuthorizedMember is the authorization boundary for room joins:
// chat rooms require conversation membership, a feed room belongs to
// its owner only.
func (s *SocialRepository) IsAuthorizedMember(_ context.Context, userID domain.UserID, roomID domain.RoomID) (bool, error) {
	if owner, ok := roomID.FeedOwner(); ok {
		return owner == userID, nil
	}
	conversationID, ok := roomID.Conversation()
	if !ok {
		return false, nil
	}

	var member bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(conversationKey(conversationID, userID)))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		member = true
		return nil
	})
	return member, err
}

func conversationKey(conversationID string, userID domain.UserID) string {
	return fmt.Sprintf("conv:%s:%s", conversationID, userID)
}

func followerKey(followee, follower domain.UserID) string {
	return fmt.Sprintf("follower:%s:%s", followee, follower)
}
