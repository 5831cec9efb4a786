package conversations

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes registers the conversation API and the chat socket.
// Routes sit on r itself so a wrong method answers 405 rather than 404.
func RegisterRoutes(r *mux.Router, handler *ConversationHandler) {
	r.HandleFunc("/api/v1/conversations", handler.ListConversations).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/conversations", handler.CreateConversation).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/conversations/{id}", handler.OpenConversation).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/conversations/{id}/messages", handler.SendMessage).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/conversations/{id}/typing", handler.Typing).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/typing", handler.TypingState).Methods(http.MethodGet)

	r.HandleFunc("/ws/chat", handler.ServeWS).Methods(http.MethodGet)
}
