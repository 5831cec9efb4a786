package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vasu1712/adminchat/internal/models"
)

const socketWriteTimeout = 5 * time.Second

// Socket speaks the message:create / message:created protocol to a
// real-time server. It only carries message events.
type Socket struct {
	handlerSet
	conn      *websocket.Conn
	origin    string
	writeMu   sync.Mutex
	connected atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	logger    *slog.Logger
}

// DialSocket connects to url. A failed dial is returned to the caller, who
// is expected to fall back to another transport.
func DialSocket(ctx context.Context, url, origin string, logger *slog.Logger) (*Socket, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	s := &Socket{
		conn:   conn,
		origin: origin,
		done:   make(chan struct{}),
		logger: logger.With("component", "socket_transport", "origin", origin),
	}
	s.connected.Store(true)
	go s.readLoop()
	return s, nil
}

func (s *Socket) readLoop() {
	defer close(s.done)
	defer s.connected.Store(false)

	for {
		var frame models.Frame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.logger.Warn("socket disconnected", "error", err)
			}
			return
		}
		if frame.Event != models.SocketMessageCreated {
			continue
		}
		var p models.MessagePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			s.logger.Warn("discarding malformed frame", "event", frame.Event, "error", err)
			continue
		}
		if p.ConversationID == "" || p.Message == nil {
			continue
		}
		if p.Origin == s.origin {
			continue
		}
		s.dispatch(models.Event{
			Type:           models.EventMessage,
			ConversationID: p.ConversationID,
			Message:        p.Message,
			Origin:         p.Origin,
		})
	}
}

func (s *Socket) Connected() bool { return s.connected.Load() }

func (s *Socket) Send(ctx context.Context, ev models.Event) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	if ev.Type != models.EventMessage {
		return ErrUnsupported
	}
	if ev.Origin == "" {
		ev.Origin = s.origin
	}
	data, err := json.Marshal(models.MessagePayload{
		ConversationID: ev.ConversationID,
		Message:        ev.Message,
		Origin:         ev.Origin,
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	deadline := time.Now().Add(socketWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	frame := models.Frame{Event: models.SocketMessageCreate, Data: data}
	if err := s.conn.WriteJSON(frame); err != nil {
		s.connected.Store(false)
		return fmt.Errorf("write %s: %w", frame.Event, err)
	}
	return nil
}

// Close sends a close frame and waits for the read loop to exit.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.connected.Store(false)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
		<-s.done
	})
	return err
}
