package transport

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Vasu1712/adminchat/internal/models"
)

// Fallback sends on primary while it is connected and on secondary
// otherwise. Incoming events are accepted from both.
type Fallback struct {
	primary   Transport
	secondary Transport
	logger    *slog.Logger
}

func NewFallback(primary, secondary Transport, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With("component", "fallback_transport"),
	}
}

func (f *Fallback) Connected() bool {
	return f.primary.Connected() || f.secondary.Connected()
}

func (f *Fallback) Send(ctx context.Context, ev models.Event) error {
	if f.primary.Connected() {
		err := f.primary.Send(ctx, ev)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrUnsupported):
		default:
			f.logger.Warn("primary send failed, using fallback",
				"type", ev.Type, "conversation_id", ev.ConversationID, "error", err)
		}
	}
	return f.secondary.Send(ctx, ev)
}

func (f *Fallback) OnMessage(h Handler) {
	f.primary.OnMessage(h)
	f.secondary.OnMessage(h)
}

func (f *Fallback) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}
