// Package feed defines activity records published to followers.
package feed

import (
	"time"

	"cinelive/domain"

	"github.com/google/uuid"
)

// Verb describes what the actor did.
type Verb string

const (
	VerbReviewed Verb = "reviewed"
	VerbRated    Verb = "rated"
	VerbListed   Verb = "listed"
	VerbFollowed Verb = "followed"
)

// Activity is the canonical feed record. Followers must not see each
// other, so activities are delivered per-user and never through a
// shared room.
type Activity struct {
	ID        uuid.UUID
	Actor     domain.UserID
	Verb      Verb
	Subject   string
	Body      string
	CreatedAt time.Time
}

type PostActivityCommand struct {
	Actor     domain.UserID
	Verb      Verb
	Subject   string
	Body      string
	CreatedAt time.Time
}

type GetActivitiesCommand struct {
	Actor  domain.UserID
	Cursor *string
}
