package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cinelive/auth"
	"cinelive/domain"
	"cinelive/domain/chat"
	"cinelive/domain/feed"
	stderrors "cinelive/errors"
	"cinelive/repositories"
	"cinelive/services"
	"cinelive/sink"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server exposes the gateway: auth endpoints, the WebSocket upgrade,
// the write path, and cursor-paginated catch-up reads.
type Server struct {
	log                  *slog.Logger
	live                 services.ILiveService
	chat                 services.IChatService
	feed                 services.IFeedService
	auth                 services.IAuthService
	social               *repositories.SocialRepository
	tokens               auth.TokenManager
	connectionBufferSize int
	upgrader             websocket.Upgrader
}

func NewServer(log *slog.Logger, live services.ILiveService, chatService services.IChatService,
	feedService services.IFeedService, authService services.IAuthService,
	social *repositories.SocialRepository, tokens auth.TokenManager,
	connectionBufferSize int) *Server {
	return &Server{
		log:                  log,
		live:                 live,
		chat:                 chatService,
		feed:                 feedService,
		auth:                 authService,
		social:               social,
		tokens:               tokens,
		connectionBufferSize: connectionBufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients come from the app origin; tightening this
			// is the reverse proxy's job in production.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /conversations", s.withUser(s.handleCreateConversation))
	mux.HandleFunc("GET /conversations/{id}/messages", s.withUser(s.handleGetMessages))
	mux.HandleFunc("POST /conversations/{id}/messages", s.withUser(s.handlePostMessage))
	mux.HandleFunc("PUT /conversations/{id}/messages/{messageId}", s.withUser(s.handleEditMessage))
	mux.HandleFunc("DELETE /conversations/{id}/messages/{messageId}", s.withUser(s.handleDeleteMessage))
	mux.HandleFunc("POST /activities", s.withUser(s.handlePostActivity))
	mux.HandleFunc("GET /users/{id}/activities", s.withUser(s.handleGetActivities))
	mux.HandleFunc("POST /users/{id}/follow", s.withUser(s.handleFollow))
	mux.HandleFunc("GET /users/{id}/online", s.withUser(s.handleOnline))
	return mux
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID domain.UserID)

// withUser authenticates the bearer token and threads the user id into
// the handler.
func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.authenticate(r)
		if err != nil {
			s.writeError(w, stderrors.ErrInvalidCredentials)
			return
		}
		next(w, r, userID)
	}
}

func (s *Server) authenticate(r *http.Request) (domain.UserID, error) {
	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return domain.UserID(claims.UserID), nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		Password    string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	token, err := s.auth.Register(req.Email, req.DisplayName, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"token": string(token)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	token, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"token": string(token)})
}

// handleWebSocket upgrades the connection, registers a dedicated sink
// in the live core, and blocks in the session pumps until disconnect.
// Proper cleanup is ensured by the session's deferred disconnect, so no
// registry entry leaks.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, stderrors.ErrInvalidCredentials)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	connID := domain.ConnectionID(uuid.NewString())
	connSink := sink.NewConnSink(s.connectionBufferSize)
	if err := s.live.Connect(connID, userID, connSink); err != nil {
		_ = conn.Close()
		return
	}

	sess := &session{
		log:    s.log,
		conn:   conn,
		connID: connID,
		userID: userID,
		sink:   connSink,
		live:   s.live,
		errs:   make(chan []byte, 8),
	}
	sess.run(r.Context())
	_ = conn.Close()
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request, userID domain.UserID) {
	var req struct {
		ID      string   `json:"id"`
		Members []string `json:"members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	members := []domain.UserID{userID}
	for _, m := range req.Members {
		if domain.UserID(m) != userID {
			members = append(members, domain.UserID(m))
		}
	}
	if err := s.social.CreateConversation(req.ID, members); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

func (s *Server) requireMember(ctx context.Context, w http.ResponseWriter, userID domain.UserID, conversationID string) bool {
	ok, err := s.social.IsAuthorizedMember(ctx, userID, domain.ChatRoom(conversationID))
	if err != nil {
		s.writeError(w, err)
		return false
	}
	if !ok {
		s.writeError(w, stderrors.ErrNotAuthorized)
		return false
	}
	return true
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request, userID domain.UserID) {
	conversationID := r.PathValue("id")
	if !s.requireMember(r.Context(), w, userID, conversationID) {
		return
	}

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	messages, next, err := s.chat.GetMessages(chat.GetMessagesCommand{
		Conversation: conversationID,
		Cursor:       cursor,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"cursor":   next,
	})
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request, userID domain.UserID) {
	conversationID := r.PathValue("id")
	if !s.requireMember(r.Context(), w, userID, conversationID) {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	message, err := s.chat.PostMessage(r.Context(), chat.PostMessageCommand{
		Conversation: conversationID,
		Author:       userID,
		Content:      req.Content,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, message)
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request, userID domain.UserID) {
	conversationID := r.PathValue("id")
	if !s.requireMember(r.Context(), w, userID, conversationID) {
		return
	}
	messageID, err := uuid.Parse(r.PathValue("messageId"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	message, err := s.chat.EditMessage(r.Context(), chat.EditMessageCommand{
		Conversation: conversationID,
		MessageID:    messageID,
		Author:       userID,
		Content:      req.Content,
		EditedAt:     time.Now().UTC(),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, message)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request, userID domain.UserID) {
	conversationID := r.PathValue("id")
	if !s.requireMember(r.Context(), w, userID, conversationID) {
		return
	}
	messageID, err := uuid.Parse(r.PathValue("messageId"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	message, err := s.chat.DeleteMessage(r.Context(), chat.DeleteMessageCommand{
		Conversation: conversationID,
		MessageID:    messageID,
		Author:       userID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, message)
}

func (s *Server) handlePostActivity(w http.ResponseWriter, r *http.Request, userID domain.UserID) {
	var req struct {
		Verb    string `json:"verb"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	activity, err := s.feed.PostActivity(r.Context(), feed.PostActivityCommand{
		Actor:     userID,
		Verb:      feed.Verb(req.Verb),
		Subject:   req.Subject,
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, activity)
}

func (s *Server) handleGetActivities(w http.ResponseWriter, r *http.Request, _ domain.UserID) {
	actor := domain.UserID(r.PathValue("id"))
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	activities, next, err := s.feed.GetActivities(feed.GetActivitiesCommand{
		Actor:  actor,
		Cursor: cursor,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"activities": activities,
		"cursor":     next,
	})
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request, userID domain.UserID) {
	followee := domain.UserID(r.PathValue("id"))
	if err := s.social.Follow(userID, followee); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request, _ domain.UserID) {
	target := domain.UserID(r.PathValue("id"))
	s.writeJSON(w, http.StatusOK, map[string]bool{"online": s.live.IsOnline(target)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := stderrors.MapToHTTPStatus(err)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
