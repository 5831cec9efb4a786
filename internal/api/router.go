// Package api assembles the HTTP surface of the chat server.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Vasu1712/adminchat/internal/api/conversations"
	"github.com/Vasu1712/adminchat/internal/middleware"
)

// NewRouter returns the full handler chain. CORS wraps the router so that
// preflight requests are answered before route matching.
func NewRouter(handler *conversations.ConversationHandler, allowedOrigin string, logger *slog.Logger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	conversations.RegisterRoutes(r, handler)

	return middleware.CORS(allowedOrigin, logger)(middleware.RequestLogger(logger)(r))
}
