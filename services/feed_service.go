package services

import (
	"context"

	"cinelive/domain/feed"
	"cinelive/repositories"

	"github.com/google/uuid"
)

type IFeedService interface {
	PostActivity(ctx context.Context, cmd feed.PostActivityCommand) (feed.Activity, error)
	GetActivities(cmd feed.GetActivitiesCommand) ([]feed.Activity, *string, error)
}

type FeedService struct {
	activityRepository repositories.IActivityRepository
	bridge             LiveBridge
}

func NewFeedService(repo repositories.IActivityRepository, bridge LiveBridge) *FeedService {
	return &FeedService{activityRepository: repo, bridge: bridge}
}

// PostActivity persists the activity, then fans it out to the actor's
// connected followers. Offline followers see it on their next feed
// pull.
func (s *FeedService) PostActivity(ctx context.Context, cmd feed.PostActivityCommand) (feed.Activity, error) {
	activity := feed.Activity{
		ID:        uuid.New(),
		Actor:     cmd.Actor,
		Verb:      cmd.Verb,
		Subject:   cmd.Subject,
		Body:      cmd.Body,
		CreatedAt: cmd.CreatedAt,
	}
	if err := s.activityRepository.StoreActivity(activity); err != nil {
		return feed.Activity{}, err
	}

	_, err := s.bridge.OnWritten(ctx, activity)
	return activity, err
}

func (s *FeedService) GetActivities(cmd feed.GetActivitiesCommand) ([]feed.Activity, *string, error) {
	return s.activityRepository.GetActivities(cmd.Actor, cmd.Cursor)
}
