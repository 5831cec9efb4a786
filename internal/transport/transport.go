// Package transport carries cross-context events between sessions.
//
// A session only sees the Transport interface. Which concrete transport it
// gets (in-process hub, Valkey pub/sub, real-time socket, or a socket with a
// fallback) is decided once at startup.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/Vasu1712/adminchat/internal/models"
)

var (
	// ErrNotConnected is returned by Send while the transport is down.
	ErrNotConnected = errors.New("transport not connected")
	// ErrUnsupported is returned for event types a transport does not carry.
	ErrUnsupported = errors.New("event type not supported by transport")
)

// Handler receives events published by other contexts.
type Handler func(models.Event)

// Transport is a best-effort, unacknowledged event channel. Events are
// never persisted; a context that is not listening misses them.
type Transport interface {
	Connected() bool
	Send(ctx context.Context, ev models.Event) error
	OnMessage(h Handler)
	Close() error
}

// handlerSet is embedded by every implementation.
type handlerSet struct {
	mu       sync.RWMutex
	handlers []Handler
}

func (s *handlerSet) OnMessage(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

func (s *handlerSet) dispatch(ev models.Event) {
	s.mu.RLock()
	handlers := make([]Handler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
