package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Vasu1712/adminchat/internal/chat"
	"github.com/Vasu1712/adminchat/internal/storage"
	"github.com/Vasu1712/adminchat/internal/transport"
)

// TransportFactory builds the transport for a new session. origin is the
// session id.
type TransportFactory func(ctx context.Context, origin string) (transport.Transport, error)

// Manager owns every running session. All sessions read and write the same
// records; each keeps its own active conversation.
type Manager struct {
	records  storage.Store
	factory  TransportFactory
	opts     Options
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	sessions map[string]*entry
	wg       sync.WaitGroup
	logger   *slog.Logger
}

type entry struct {
	session   *Session
	transport transport.Transport
}

func NewManager(records storage.Store, factory TransportFactory, opts Options) *Manager {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		records:  records,
		factory:  factory,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*entry),
		logger:   opts.Logger.With("component", "session_manager"),
	}
}

// Get returns the session with the given id, starting it on first use.
// The transport is built without holding the lock, so a slow dial only
// delays the session being created.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if s, ok, err := m.lookup(id); ok || err != nil {
		return s, err
	}

	tr, err := m.factory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("transport for session %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		m.discard(id, tr)
		return e.session, nil
	}
	if m.ctx.Err() != nil {
		m.discard(id, tr)
		return nil, ErrSessionClosed
	}

	store := chat.NewStore(m.records, chat.WithClock(m.opts.Now), chat.WithLogger(m.opts.Logger))
	s := New(id, store, tr, m.opts)
	m.sessions[id] = &entry{session: s, transport: tr}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := s.Run(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("session stopped", "session_id", id, "error", err)
		}
	}()
	m.logger.Info("session started", "session_id", id, "connected", tr.Connected())
	return s, nil
}

func (m *Manager) lookup(id string) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		return e.session, true, nil
	}
	if m.ctx.Err() != nil {
		return nil, false, ErrSessionClosed
	}
	return nil, false, nil
}

// discard closes a transport that lost the race to start session id.
func (m *Manager) discard(id string, tr transport.Transport) {
	if err := tr.Close(); err != nil {
		m.logger.Warn("close unused transport", "session_id", id, "error", err)
	}
}

// Len returns the number of running sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every session and closes its transport.
func (m *Manager) Close() error {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for id, e := range m.sessions {
		if err := e.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport of %s: %w", id, err))
		}
		delete(m.sessions, id)
	}
	return errors.Join(errs...)
}
