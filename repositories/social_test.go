package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"cinelive/domain"
	"cinelive/errors"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func Test_Conversation_Participants_Roundtrip(t *testing.T) {
	req := require.New(t)
	repository := NewSocialRepository(openTestDB(t), slog.Default(), 100)
	ctx := context.Background()

	members := []domain.UserID{"alice", "bob", "carol"}
	req.NoError(repository.CreateConversation("conv-42", members))

	fetched, err := repository.GetConversationParticipants(ctx, "conv-42")
	req.NoError(err)
	req.ElementsMatch(members, fetched)

	// An absent conversation is an explicit not-found, never an empty set
	_, err = repository.GetConversationParticipants(ctx, "ghost")
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_IsAuthorizedMember_Chat_Room(t *testing.T) {
	req := require.New(t)
	repository := NewSocialRepository(openTestDB(t), slog.Default(), 100)
	ctx := context.Background()

	req.NoError(repository.CreateConversation("conv-42", []domain.UserID{"alice", "bob"}))

	ok, err := repository.IsAuthorizedMember(ctx, "alice", domain.ChatRoom("conv-42"))
	req.NoError(err)
	req.True(ok)

	// A non-participant must not be able to join
	ok, err = repository.IsAuthorizedMember(ctx, "mallory", domain.ChatRoom("conv-42"))
	req.NoError(err)
	req.False(ok)
}

func Test_IsAuthorizedMember_Feed_Room_Belongs_To_Owner(t *testing.T) {
	req := require.New(t)
	repository := NewSocialRepository(openTestDB(t), slog.Default(), 100)
	ctx := context.Background()

	ok, err := repository.IsAuthorizedMember(ctx, "alice", domain.FeedRoom("alice"))
	req.NoError(err)
	req.True(ok)

	ok, err = repository.IsAuthorizedMember(ctx, "bob", domain.FeedRoom("alice"))
	req.NoError(err)
	req.False(ok)
}

func Test_Follow_Unfollow_And_Paged_Followers(t *testing.T) {
	req := require.New(t)
	repository := NewSocialRepository(openTestDB(t), slog.Default(), 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		req.NoError(repository.Follow(domain.UserID(fmt.Sprintf("fan-%d", i)), "star"))
	}

	// When paging with a page size of 2
	var all []domain.UserID
	var cursor *string
	pages := 0
	for {
		page, next, err := repository.GetFollowers(ctx, "star", cursor)
		req.NoError(err)
		all = append(all, page...)
		pages++
		if next == nil {
			break
		}
		cursor = next
	}

	// Then every follower appears exactly once across three pages
	req.Equal(3, pages)
	req.Len(lo.Uniq(all), 5)

	// When one unfollows
	req.NoError(repository.Unfollow("fan-0", "star"))
	page, next, err := repository.GetFollowers(ctx, "star", nil)
	req.NoError(err)
	req.NotContains(page, domain.UserID("fan-0"))
	req.NotNil(next)
}

func Test_GetFollowers_Without_Followers_Is_Empty(t *testing.T) {
	req := require.New(t)
	repository := NewSocialRepository(openTestDB(t), slog.Default(), 100)

	page, next, err := repository.GetFollowers(context.Background(), "hermit", nil)
	req.NoError(err)
	req.Empty(page)
	req.Nil(next)
}
