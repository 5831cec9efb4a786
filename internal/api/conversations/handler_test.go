package conversations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/adminchat/internal/chat"
	"github.com/Vasu1712/adminchat/internal/models"
	"github.com/Vasu1712/adminchat/internal/session"
	"github.com/Vasu1712/adminchat/internal/storage/memory"
	"github.com/Vasu1712/adminchat/internal/transport"
	"github.com/Vasu1712/adminchat/internal/ws"
)

type testEnv struct {
	router   *mux.Router
	handler  *ConversationHandler
	records  *memory.RecordStore
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	records := memory.NewRecordStore()
	require.NoError(t, chat.NewStore(records).Seed(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub(nil)
	go hub.Run(ctx)
	t.Cleanup(cancel)

	sessions := session.NewManager(records, func(ctx context.Context, origin string) (transport.Transport, error) {
		return transport.NewLocal(ctx, hub, "pe-chat", origin, nil)
	}, session.Options{
		TypingTimeout: time.Minute,
		DeliveryDelay: 10 * time.Millisecond,
	})
	t.Cleanup(func() { sessions.Close() })

	h := &ConversationHandler{Sessions: sessions, Hub: hub}
	r := mux.NewRouter()
	RegisterRoutes(r, h)
	return &testEnv{router: r, handler: h, records: records, sessions: sessions}
}

func (e *testEnv) do(t *testing.T, method, path, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestListConversations(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		query   string
		wantIDs []string
		status  int
	}{
		{name: "all, newest first", query: "", wantIDs: []string{"c3", "c1", "c2"}, status: http.StatusOK},
		{name: "explicit all", query: "?filter=all", wantIDs: []string{"c3", "c1", "c2"}, status: http.StatusOK},
		{name: "clients", query: "?filter=client", wantIDs: []string{"c1", "c2"}, status: http.StatusOK},
		{name: "marketers", query: "?filter=marketer", wantIDs: []string{"c3"}, status: http.StatusOK},
		{name: "search title", query: "?q=ada", wantIDs: []string{"c2"}, status: http.StatusOK},
		{name: "search last message", query: "?q=PLOT", wantIDs: []string{"c1"}, status: http.StatusOK},
		{name: "no match", query: "?filter=marketer&q=john", wantIDs: []string{}, status: http.StatusOK},
		{name: "bad filter", query: "?filter=vip", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/conversations"+tt.query, "", "")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			views := decode[[]ConversationView](t, rec)
			ids := make([]string, 0, len(views))
			for _, v := range views {
				ids = append(ids, v.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestListConversations_ViewFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/conversations?q=john", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	views := decode[[]ConversationView](t, rec)
	require.Len(t, views, 1)
	assert.Equal(t, "JD", views[0].Initials)
	assert.Equal(t, "1h", views[0].Ago)
	assert.Equal(t, 2, views[0].Unread)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Contains(t, raw[0], "updatedAt")
	assert.Contains(t, raw[0], "initials")
}

func TestOpenConversation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/conversations/c1", "tab-a", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[conversationResponse](t, rec)
	assert.Equal(t, "c1", resp.Conversation.ID)
	assert.Equal(t, 0, resp.Conversation.Unread)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "m1", resp.Messages[0].ID)
	assert.Equal(t, "m2", resp.Messages[1].ID)

	// Unread is shared state: another session sees it cleared too.
	rec = env.do(t, http.MethodGet, "/api/v1/conversations?q=john", "tab-b", "")
	views := decode[[]ConversationView](t, rec)
	require.Len(t, views, 1)
	assert.Equal(t, 0, views[0].Unread)

	rec = env.do(t, http.MethodGet, "/api/v1/conversations/nope", "tab-a", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateConversation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/conversations", "tab-a", `{"title":"Demo Client 7","role":"client"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	view := decode[ConversationView](t, rec)
	assert.True(t, strings.HasPrefix(view.ID, "c_"))
	assert.Equal(t, "DC", view.Initials)
	assert.Equal(t, "now", view.Ago)
	assert.Equal(t, models.RoleClient, view.Role)

	s, err := env.sessions.Get(context.Background(), "tab-a")
	require.NoError(t, err)
	assert.Equal(t, view.ID, s.Active())

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed", body: `{"title":`},
		{name: "blank title", body: `{"title":"  "}`},
		{name: "unknown role", body: `{"title":"X","role":"vip"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/conversations", "tab-a", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/api/v1/conversations/c2", "tab-a", "")
	rec := env.do(t, http.MethodPost, "/api/v1/conversations/c2/messages", "tab-a", `{"body":"See you at the site"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	msg := decode[models.Message](t, rec)
	assert.Equal(t, models.AdminID, msg.From)
	assert.Equal(t, "c2", msg.To)
	assert.Equal(t, models.StatusSent, msg.Status)

	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/v1/conversations/c2", "tab-a", "")
		resp := decode[conversationResponse](t, rec)
		last := resp.Messages[len(resp.Messages)-1]
		return last.ID == msg.ID && last.Status == models.StatusDelivered
	}, 2*time.Second, 10*time.Millisecond)

	rec = env.do(t, http.MethodGet, "/api/v1/conversations", "tab-a", "")
	views := decode[[]ConversationView](t, rec)
	assert.Equal(t, "c2", views[0].ID)
	assert.Equal(t, "See you at the site", views[0].Last)

	rec = env.do(t, http.MethodPost, "/api/v1/conversations/c2/messages", "tab-a", `{"body":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/conversations/nope/messages", "tab-a", `{"body":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTyping(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/api/v1/conversations/c1", "tab-b", "")
	env.do(t, http.MethodGet, "/api/v1/conversations/c1", "tab-a", "")

	rec := env.do(t, http.MethodPost, "/api/v1/conversations/c1/typing", "tab-a", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/v1/typing", "tab-b", "")
		state := decode[map[string]any](t, rec)
		return state["typing"] == true && state["conversationId"] == "c1"
	}, 2*time.Second, 10*time.Millisecond)

	rec = env.do(t, http.MethodGet, "/api/v1/typing", "tab-a", "")
	assert.Equal(t, false, decode[map[string]any](t, rec)["typing"])
}

func TestSessionSelection(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/api/v1/conversations/c3?session=tab-q", "", "")
	env.do(t, http.MethodGet, "/api/v1/conversations/c2", "", "")

	q, err := env.sessions.Get(context.Background(), "tab-q")
	require.NoError(t, err)
	assert.Equal(t, "c3", q.Active())

	d, err := env.sessions.Get(context.Background(), DefaultSession)
	require.NoError(t, err)
	assert.Equal(t, "c2", d.Active())
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodDelete, "/api/v1/conversations/c1", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
