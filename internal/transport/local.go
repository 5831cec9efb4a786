package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Vasu1712/adminchat/internal/models"
	"github.com/Vasu1712/adminchat/internal/ws"
)

// Local connects sessions living in the same process through a ws.Hub.
type Local struct {
	handlerSet
	hub       *ws.Hub
	client    *ws.Client
	origin    string
	connected atomic.Bool
	done      chan struct{}
	logger    *slog.Logger
}

// NewLocal joins channel on hub as origin. Events published by origin are
// never delivered back to it.
func NewLocal(ctx context.Context, hub *ws.Hub, channel, origin string, logger *slog.Logger) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Local{
		hub:    hub,
		client: ws.NewClient(origin, channel, nil),
		origin: origin,
		done:   make(chan struct{}),
		logger: logger.With("component", "local_transport", "origin", origin),
	}
	if err := hub.Join(ctx, l.client); err != nil {
		return nil, fmt.Errorf("join %s: %w", channel, err)
	}
	l.connected.Store(true)
	go l.readLoop()
	return l, nil
}

func (l *Local) readLoop() {
	defer close(l.done)
	defer l.connected.Store(false)

	for data := range l.client.Send {
		var ev models.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			l.logger.Warn("discarding malformed event", "error", err)
			continue
		}
		if ev.Origin == l.origin {
			continue
		}
		l.dispatch(ev)
	}
}

func (l *Local) Connected() bool { return l.connected.Load() }

func (l *Local) Send(ctx context.Context, ev models.Event) error {
	if !l.Connected() {
		return ErrNotConnected
	}
	if ev.Origin == "" {
		ev.Origin = l.origin
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return l.hub.Publish(ctx, ws.BroadcastMessage{
		Channel: l.client.Channel,
		Origin:  l.origin,
		Data:    data,
	})
}

// Close leaves the hub and waits for the read loop to finish.
func (l *Local) Close() error {
	l.hub.Leave(l.client)
	<-l.done
	return nil
}
