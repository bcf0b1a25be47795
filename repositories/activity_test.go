package repositories

import (
	"log/slog"
	"testing"
	"time"

	"cinelive/domain/feed"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_GetActivities_Newest_First_With_Cursor(t *testing.T) {
	req := require.New(t)
	limit := 2
	repository := NewActivityRepository(openTestDB(t), slog.Default(), &limit)
	at := time.Now().UTC()

	for i := 0; i < 3; i++ {
		req.NoError(repository.StoreActivity(feed.Activity{
			ID:        uuid.New(),
			Actor:     "alice",
			Verb:      feed.VerbReviewed,
			Subject:   "movie-9",
			CreatedAt: at.Add(time.Duration(i) * time.Minute),
		}))
	}

	page1, cursor, err := repository.GetActivities("alice", nil)
	req.NoError(err)
	req.Len(page1, 2)
	req.NotNil(cursor)
	// Reverse scan over padded timestamps: newest first
	req.True(page1[0].CreatedAt.After(page1[1].CreatedAt))

	page2, cursor, err := repository.GetActivities("alice", cursor)
	req.NoError(err)
	req.Len(page2, 1)

	// An exhausted scan returns no cursor, ending the pagination loop
	empty, next, err := repository.GetActivities("alice", cursor)
	req.NoError(err)
	req.Empty(empty)
	req.Nil(next)
}

func Test_GetActivities_Ignores_Other_Actors(t *testing.T) {
	req := require.New(t)
	repository := NewActivityRepository(openTestDB(t), slog.Default(), nil)
	at := time.Now().UTC()

	req.NoError(repository.StoreActivity(feed.Activity{
		ID: uuid.New(), Actor: "alice", Verb: feed.VerbRated, Subject: "movie-1", CreatedAt: at,
	}))
	req.NoError(repository.StoreActivity(feed.Activity{
		ID: uuid.New(), Actor: "bob", Verb: feed.VerbRated, Subject: "movie-2", CreatedAt: at,
	}))

	fetched, _, err := repository.GetActivities("alice", nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("movie-1", fetched[0].Subject)
}
