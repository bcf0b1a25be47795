// Package domain contains core concepts of the live fan-out system.
// Identifiers are opaque strings; no runtime, network, or UI logic
// should be added here.
package domain

import "strings"

type UserID string

// ConnectionID identifies one live client socket. A user has
// zero-to-many connections (multi-device).
type ConnectionID string

// RoomID is a logical broadcast scope. Two kinds exist:
// "chat:<conversationId>" for private conversations and
// "feed:<userId>" for a user's activity feed.
type RoomID string

const (
	chatPrefix = "chat:"
	feedPrefix = "feed:"
)

func ChatRoom(conversationID string) RoomID {
	return RoomID(chatPrefix + conversationID)
}

func FeedRoom(userID UserID) RoomID {
	return RoomID(feedPrefix + string(userID))
}

// Conversation extracts the conversation id from a chat room.
func (r RoomID) Conversation() (string, bool) {
	if strings.HasPrefix(string(r), chatPrefix) {
		return string(r[len(chatPrefix):]), true
	}
	return "", false
}

// FeedOwner extracts the owning user of a feed room.
func (r RoomID) FeedOwner() (UserID, bool) {
	if strings.HasPrefix(string(r), feedPrefix) {
		return UserID(r[len(feedPrefix):]), true
	}
	return "", false
}

func (r RoomID) IsChat() bool {
	return strings.HasPrefix(string(r), chatPrefix)
}
