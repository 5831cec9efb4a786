package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/adminchat/internal/models"
)

// Valkey broadcasts events over a Valkey pub/sub channel so that sessions
// in separate processes can reach each other.
type Valkey struct {
	handlerSet
	client    valkey.Client
	channel   string
	origin    string
	connected atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	logger    *slog.Logger
}

// NewValkey subscribes to channel until ctx is cancelled or Close is called.
func NewValkey(ctx context.Context, client valkey.Client, channel, origin string, logger *slog.Logger) *Valkey {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	v := &Valkey{
		client:  client,
		channel: channel,
		origin:  origin,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  logger.With("component", "valkey_transport", "origin", origin),
	}
	v.connected.Store(true)
	go v.subscribe(ctx)
	return v
}

func (v *Valkey) subscribe(ctx context.Context) {
	defer close(v.done)
	defer v.connected.Store(false)

	cmd := v.client.B().Subscribe().Channel(v.channel).Build()
	err := v.client.Receive(ctx, cmd, func(msg valkey.PubSubMessage) {
		v.handle([]byte(msg.Message))
	})
	if err != nil && ctx.Err() == nil {
		v.logger.Warn("subscription ended", "channel", v.channel, "error", err)
	}
}

func (v *Valkey) handle(data []byte) {
	var ev models.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		v.logger.Warn("discarding malformed event", "error", err)
		return
	}
	if ev.Origin == v.origin {
		return
	}
	v.dispatch(ev)
}

func (v *Valkey) Connected() bool { return v.connected.Load() }

func (v *Valkey) Send(ctx context.Context, ev models.Event) error {
	if !v.Connected() {
		return ErrNotConnected
	}
	if ev.Origin == "" {
		ev.Origin = v.origin
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	cmd := v.client.B().Publish().Channel(v.channel).Message(string(data)).Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("publish %s: %w", v.channel, err)
	}
	return nil
}

// Close stops the subscription. The underlying client is left open.
func (v *Valkey) Close() error {
	v.cancel()
	<-v.done
	return nil
}
