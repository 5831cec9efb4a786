package conversations

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Vasu1712/adminchat/internal/chat"
	"github.com/Vasu1712/adminchat/internal/models"
	"github.com/Vasu1712/adminchat/internal/ws"
)

const maxMessageSize = 64 << 10

func (h *ConversationHandler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return h.AllowedOrigin == "" || origin == "" || origin == h.AllowedOrigin
		},
	}
}

// ServeWS handles GET /ws/chat. Every message:create is stored through the
// socket session and echoed as message:created to all connected sockets,
// including the sender; clients drop their own echo by origin.
func (h *ConversationHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		h.logger().Warn("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(uuid.NewString(), SocketChannel, conn)
	if err := h.Hub.Join(r.Context(), client); err != nil {
		conn.Close()
		return
	}
	log := h.logger().With("client_id", client.ID)
	log.Debug("socket connected", "remote_addr", r.RemoteAddr)

	go client.WritePump()

	// Read pump
	go func() {
		defer func() {
			h.Hub.Leave(client)
			conn.Close()
			log.Debug("socket disconnected")
		}()
		conn.SetReadLimit(maxMessageSize)
		for {
			var frame models.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Event != models.SocketMessageCreate {
				log.Debug("ignoring frame", "event", frame.Event)
				continue
			}
			h.handleCreate(r, frame.Data)
		}
	}()
}

func (h *ConversationHandler) handleCreate(r *http.Request, data json.RawMessage) {
	log := h.logger()

	var p models.MessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		log.Warn("discarding malformed message:create", "error", err)
		return
	}
	msg := p.Message
	if msg == nil {
		if strings.TrimSpace(p.Body) == "" {
			log.Warn("discarding empty message:create", "conversation_id", p.ConversationID)
			return
		}
		msg = &models.Message{
			From:   models.AdminID,
			To:     p.ConversationID,
			Body:   p.Body,
			TS:     h.now().UnixMilli(),
			Status: models.StatusSent,
		}
	}
	if msg.ID == "" {
		msg.ID = chat.NewMessageID()
	}

	// The request context is cancelled once the upgrade handler returns.
	ctx := context.WithoutCancel(r.Context())
	s, err := h.Sessions.Get(ctx, SocketSession)
	if err != nil {
		log.Error("socket session unavailable", "error", err)
		return
	}
	if _, err := s.Accept(ctx, p.ConversationID, *msg); err != nil {
		log.Warn("message:create rejected",
			"conversation_id", p.ConversationID,
			"message_id", msg.ID,
			"error", err)
		return
	}

	out, err := json.Marshal(models.MessagePayload{
		ConversationID: p.ConversationID,
		Message:        msg,
		Origin:         p.Origin,
	})
	if err != nil {
		log.Error("encode message:created", "error", err)
		return
	}
	frame, err := json.Marshal(models.Frame{Event: models.SocketMessageCreated, Data: out})
	if err != nil {
		log.Error("encode frame", "error", err)
		return
	}
	if err := h.Hub.Publish(ctx, ws.BroadcastMessage{Channel: SocketChannel, Data: frame}); err != nil {
		log.Warn("message:created not broadcast", "error", err)
	}
}
