//go:generate go run go.uber.org/mock/mockgen -source=activity.go -destination=../mocks/mock_activity_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"cinelive/domain"
	"cinelive/domain/feed"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IActivityRepository interface {
	StoreActivity(activity feed.Activity) error
	GetActivities(actor domain.UserID, cursor *string) ([]feed.Activity, *string, error)
}

// ActivityRepository persists feed activities under
// "act:{actor}:{timestamp_padded}:{uuid}" keys, same layout as
// messages: chronological by construction, collision-proof by uuid.
type ActivityRepository struct {
	db    *badger.DB
	log   *slog.Logger
	limit *int
}

func NewActivityRepository(db *badger.DB, log *slog.Logger, limit *int) ActivityRepository {
	return ActivityRepository{db: db, log: log, limit: limit}
}

type diskActivity struct {
	ID        uuid.UUID `json:"id"`
	Actor     string    `json:"actor"`
	Verb      string    `json:"verb"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (r ActivityRepository) StoreActivity(activity feed.Activity) error {
	key := fmt.Sprintf("act:%s:%019d:%s", activity.Actor, activity.CreatedAt.UnixNano(), activity.ID)
	bytes, err := json.Marshal(fromActivity(activity))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// GetActivities pages an actor's activities newest-first, the pull side
// of the catch-up model for feeds.
func (r ActivityRepository) GetActivities(actor domain.UserID, cursor *string) ([]feed.Activity, *string, error) {
	var stored []diskActivity
	var lastKey string
	err := r.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("act:%s:", actor)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if r.limit != nil && len(stored) == *r.limit {
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				var act diskActivity
				if err := json.Unmarshal(value, &act); err != nil {
					return err
				}
				stored = append(stored, act)
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

	if len(stored) == 0 {
		return nil, nil, nil
	}

	activities := lo.Map(stored, func(item diskActivity, _ int) feed.Activity {
		return toActivity(item)
	})
	return activities, &lastKey, nil
}

func fromActivity(activity feed.Activity) diskActivity {
	return diskActivity{
		ID:        activity.ID,
		Actor:     string(activity.Actor),
		Verb:      string(activity.Verb),
		Subject:   activity.Subject,
		Body:      activity.Body,
		CreatedAt: activity.CreatedAt,
	}
}

func toActivity(stored diskActivity) feed.Activity {
	return feed.Activity{
		ID:        stored.ID,
		Actor:     domain.UserID(stored.Actor),
		Verb:      feed.Verb(stored.Verb),
		Subject:   stored.Subject,
		Body:      stored.Body,
		CreatedAt: stored.CreatedAt,
	}
}
