package ws

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cinelive/domain"
	stderrors "cinelive/errors"
	"cinelive/services"
	"cinelive/sink"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 4096
)

var frameValidator = validator.New()

// session owns one upgraded connection: the read pump consumes client
// frames (join/leave/typing), the write pump drains the sink. Closing
// either pump tears the whole session down; teardown is idempotent.
type session struct {
	log    *slog.Logger
	conn   *websocket.Conn
	connID domain.ConnectionID
	userID domain.UserID
	sink   *sink.ConnSink
	live   services.ILiveService
	// errs funnels rejected-frame notices into the write pump. The
	// write pump is the sole writer on conn; gorilla forbids
	// concurrent writes on the same connection.
	errs chan []byte
}

// run blocks until the client disconnects or a network error occurs.
// Registration happened before run; the deferred disconnect prevents
// registry leaks on any exit path.
func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.live.Disconnect(context.Background(), s.connID)

	go s.writePump(ctx, cancel)
	s.readPump(ctx)
}

func (s *session) readPump(ctx context.Context) {
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.live.Touch(s.connID)
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn(fmt.Sprintf("Client %s disconnected abruptly", s.connID), "error", err)
			}
			return
		}
		s.handleFrame(ctx, raw)
	}
}

func (s *session) handleFrame(ctx context.Context, raw []byte) {
	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.sendError("bad frame", err)
		return
	}
	if err := frameValidator.Struct(frame); err != nil {
		s.sendError("invalid frame", err)
		return
	}

	roomID := domain.RoomID(frame.RoomID)
	var err error
	switch frame.Action {
	case "join":
		err = s.live.Join(ctx, s.connID, roomID)
	case "leave":
		s.live.Leave(s.connID, roomID)
	case "typing":
		err = s.live.SetTyping(ctx, s.connID, roomID, frame.Typing)
	}
	if err != nil {
		s.sendError(frame.Action+" rejected", err)
	}
}

// sendError reports a rejected frame back to this client only; the
// error never propagates beyond the session. The frame is handed to
// the write pump rather than written here, keeping a single writer on
// the connection. A client flooding invalid frames faster than its
// socket drains simply loses the extra notices.
func (s *session) sendError(msg string, err error) {
	body, _ := json.Marshal(map[string]any{
		"kind":   "error",
		"error":  msg,
		"detail": err.Error(),
		"status": stderrors.MapToHTTPStatus(err),
	})
	select {
	case s.errs <- body:
	default:
	}
}

// writePump pushes sink events and pings to the peer. A write error
// cancels the session context so the read pump unwinds too.
func (s *session) writePump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-s.sink.Events:
			body, err := json.Marshal(toWireEvent(evt))
			if err != nil {
				s.log.Error("Failed to encode wire event", "kind", evt.Kind, "error", err)
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				s.log.Debug("Write failed, closing session",
					"connection", s.connID, "error", err)
				return
			}
		case body := <-s.errs:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
