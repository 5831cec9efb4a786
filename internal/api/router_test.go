package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/adminchat/internal/api/conversations"
	"github.com/Vasu1712/adminchat/internal/session"
	"github.com/Vasu1712/adminchat/internal/storage/memory"
	"github.com/Vasu1712/adminchat/internal/transport"
	"github.com/Vasu1712/adminchat/internal/ws"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub(nil)
	go hub.Run(ctx)
	t.Cleanup(cancel)

	sessions := session.NewManager(memory.NewRecordStore(), func(ctx context.Context, origin string) (transport.Transport, error) {
		return transport.NewLocal(ctx, hub, "pe-chat", origin, nil)
	}, session.Options{})
	t.Cleanup(func() { sessions.Close() })

	return NewRouter(&conversations.ConversationHandler{Sessions: sessions, Hub: hub}, "http://127.0.0.1:5173", nil)
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "http://127.0.0.1:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_PreflightBeforeRouting(t *testing.T) {
	h := newTestRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/conversations/c1/messages", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_EmptyStoreListsNothing(t *testing.T) {
	h := newTestRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
