package services

import (
	"context"

	"cinelive/contract"
	"cinelive/domain"
	"cinelive/runtime"
)

// ILiveService is the surface the WebSocket gateway drives: connection
// lifecycle, room subscriptions, and typing signals.
type ILiveService interface {
	Connect(connID domain.ConnectionID, userID domain.UserID, sink contract.EventSink) error
	Disconnect(ctx context.Context, connID domain.ConnectionID)
	Join(ctx context.Context, connID domain.ConnectionID, roomID domain.RoomID) error
	Leave(connID domain.ConnectionID, roomID domain.RoomID)
	SetTyping(ctx context.Context, connID domain.ConnectionID, roomID domain.RoomID, isTyping bool) error
	Touch(connID domain.ConnectionID)
	IsOnline(userID domain.UserID) bool
}

type LiveService struct {
	orchestrator *runtime.Orchestrator
}

func NewLiveService(o *runtime.Orchestrator) *LiveService {
	return &LiveService{orchestrator: o}
}

func (s *LiveService) Connect(connID domain.ConnectionID, userID domain.UserID, sink contract.EventSink) error {
	return s.orchestrator.Connect(connID, userID, sink)
}

func (s *LiveService) Disconnect(ctx context.Context, connID domain.ConnectionID) {
	s.orchestrator.Disconnect(ctx, connID)
}

func (s *LiveService) Join(ctx context.Context, connID domain.ConnectionID, roomID domain.RoomID) error {
	return s.orchestrator.Join(ctx, connID, roomID)
}

func (s *LiveService) Leave(connID domain.ConnectionID, roomID domain.RoomID) {
	s.orchestrator.Leave(connID, roomID)
}

func (s *LiveService) SetTyping(ctx context.Context, connID domain.ConnectionID, roomID domain.RoomID, isTyping bool) error {
	return s.orchestrator.SetTyping(ctx, connID, roomID, isTyping)
}

func (s *LiveService) Touch(connID domain.ConnectionID) {
	s.orchestrator.Touch(connID)
}

func (s *LiveService) IsOnline(userID domain.UserID) bool {
	return len(s.orchestrator.ConnectionsOf(userID)) > 0
}
