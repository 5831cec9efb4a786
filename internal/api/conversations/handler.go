package conversations

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Vasu1712/adminchat/internal/chat"
	"github.com/Vasu1712/adminchat/internal/models"
	"github.com/Vasu1712/adminchat/internal/session"
	"github.com/Vasu1712/adminchat/internal/ws"
)

const (
	// SessionHeader selects the session a request acts for.
	SessionHeader = "X-Session-ID"
	// DefaultSession is used when a request names no session.
	DefaultSession = "default"
	// SocketSession is the session that stores messages arriving on /ws/chat.
	SocketSession = "socket"
	// SocketChannel is the hub channel shared by every /ws/chat connection.
	SocketChannel = "chat-sockets"
)

// ConversationHandler serves the chat API. Each request is executed by the
// session named in the request.
type ConversationHandler struct {
	Sessions      *session.Manager
	Hub           *ws.Hub
	AllowedOrigin string // empty accepts sockets from any origin
	Now           func() time.Time
	Logger        *slog.Logger
}

type conversationResponse struct {
	Conversation ConversationView `json:"conversation"`
	Messages     []models.Message `json:"messages"`
}

func (h *ConversationHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *ConversationHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func sessionID(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	if id := r.URL.Query().Get("session"); id != "" {
		return id
	}
	return DefaultSession
}

func (h *ConversationHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.Sessions.Get(r.Context(), sessionID(r))
	if err != nil {
		h.logger().Error("session unavailable", "session_id", sessionID(r), "error", err)
		writeError(w, http.StatusServiceUnavailable, "session unavailable")
		return nil, false
	}
	return s, true
}

// ListConversations handles GET /api/v1/conversations?filter=&q=.
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	filter := models.Role(r.URL.Query().Get("filter"))
	if filter != "" && filter != models.RoleAll && !filter.Valid() {
		writeError(w, http.StatusBadRequest, "unknown filter")
		return
	}

	convs, err := s.List(r.Context(), filter, r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, err)
		return
	}
	nowMs := h.now().UnixMilli()
	views := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		views = append(views, newConversationView(c, nowMs))
	}
	writeJSON(w, http.StatusOK, views)
}

// CreateConversation handles POST /api/v1/conversations.
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string      `json:"title"`
		Role  models.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleClient
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	conv, err := s.Create(r.Context(), req.Title, req.Role)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newConversationView(conv, h.now().UnixMilli()))
}

// OpenConversation handles GET /api/v1/conversations/{id}.
func (h *ConversationHandler) OpenConversation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	conv, msgs, err := s.Open(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversationResponse{
		Conversation: newConversationView(conv, h.now().UnixMilli()),
		Messages:     msgs,
	})
}

// SendMessage handles POST /api/v1/conversations/{id}/messages.
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	msg, err := s.Send(r.Context(), mux.Vars(r)["id"], req.Body)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// Typing handles POST /api/v1/conversations/{id}/typing.
func (h *ConversationHandler) Typing(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Keystroke(r.Context(), mux.Vars(r)["id"]); err != nil {
		// Typing is best effort.
		h.logger().Debug("typing event not sent", "session_id", s.ID(), "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// TypingState handles GET /api/v1/typing.
func (h *ConversationHandler) TypingState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"typing":         s.Typing(),
		"conversationId": s.Active(),
	})
}

func (h *ConversationHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, chat.ErrInvalidTitle),
		errors.Is(err, chat.ErrInvalidRole),
		errors.Is(err, chat.ErrEmptyBody):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrSessionClosed):
		writeError(w, http.StatusServiceUnavailable, "shutting down")
	default:
		h.logger().Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
