// Package session runs one chat context: a view of the shared conversation
// store plus the transport that links it to every other context.
//
// All store mutations of a Session, whether started locally or by a remote
// event, go through a single queue drained by Run, so they apply in the
// order they were queued.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Vasu1712/adminchat/internal/chat"
	"github.com/Vasu1712/adminchat/internal/models"
	"github.com/Vasu1712/adminchat/internal/transport"
)

// SimulatedReply is the counterparty message sent after a conversation is
// created when Options.SimulateReply is set.
const SimulatedReply = "Hi, I saw your listing — interested!"

// ErrSessionClosed is returned for calls made after Run has exited.
var ErrSessionClosed = errors.New("session closed")

type Options struct {
	TypingTimeout time.Duration
	DeliveryDelay time.Duration
	ReplyDelay    time.Duration
	SimulateReply bool
	InboxSize     int
	Now           func() time.Time
	Logger        *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.TypingTimeout <= 0 {
		o.TypingTimeout = 1500 * time.Millisecond
	}
	if o.DeliveryDelay <= 0 {
		o.DeliveryDelay = 900 * time.Millisecond
	}
	if o.ReplyDelay <= 0 {
		o.ReplyDelay = 1400 * time.Millisecond
	}
	if o.InboxSize <= 0 {
		o.InboxSize = 64
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type op func(ctx context.Context)

type Session struct {
	id        string
	store     *chat.Store
	transport transport.Transport
	opts      Options
	inbox     chan op
	stopped   chan struct{}
	stopOnce  sync.Once
	logger    *slog.Logger

	typingMu    sync.Mutex
	typingConv  string
	typingGen   uint64
	typingTimer *time.Timer
}

// New wires a session to its store and transport. Nothing is processed
// until Run is called.
func New(id string, store *chat.Store, tr transport.Transport, opts Options) *Session {
	opts = opts.withDefaults()
	s := &Session{
		id:        id,
		store:     store,
		transport: tr,
		opts:      opts,
		inbox:     make(chan op, opts.InboxSize),
		stopped:   make(chan struct{}),
		logger:    opts.Logger.With("component", "session", "session_id", id),
	}
	tr.OnMessage(s.receive)
	return s
}

func (s *Session) ID() string { return s.id }

// Run drains the queue until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer s.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.inbox:
			fn(ctx)
		}
	}
}

func (s *Session) stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		s.typingMu.Lock()
		if s.typingTimer != nil {
			s.typingTimer.Stop()
		}
		s.typingMu.Unlock()
	})
}

// do queues fn and waits for its result. When do returns an error, fn
// may still be running, so callers must not read what it writes.
func (s *Session) do(ctx context.Context, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)
	wrapped := func(runCtx context.Context) { result <- fn(runCtx) }

	select {
	case s.inbox <- wrapped:
	case <-s.stopped:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-s.stopped:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue queues fn without waiting. A full queue drops it.
func (s *Session) enqueue(what string, fn op) {
	select {
	case <-s.stopped:
		return
	default:
	}
	select {
	case s.inbox <- fn:
	default:
		s.logger.Warn("inbox full, dropping", "op", what)
	}
}

// after queues fn once d has elapsed, unless the session stops first.
func (s *Session) after(d time.Duration, what string, fn op) {
	go func() {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			s.enqueue(what, fn)
		case <-s.stopped:
		}
	}()
}

// List returns conversations newest first, filtered by role and search
// query.
func (s *Session) List(ctx context.Context, filter models.Role, query string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		convs, err = s.store.ListConversations(ctx, filter, query)
		return err
	})
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// Open makes id the active conversation and marks it read.
func (s *Session) Open(ctx context.Context, id string) (models.Conversation, []models.Message, error) {
	var (
		conv models.Conversation
		msgs []models.Message
	)
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		conv, msgs, err = s.store.OpenConversation(ctx, id)
		if err == nil {
			s.clearTypingUnless(id)
		}
		return err
	})
	if err != nil {
		return models.Conversation{}, nil, err
	}
	return conv, msgs, nil
}

// Messages returns a conversation's history without marking it read.
func (s *Session) Messages(ctx context.Context, id string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		msgs, err = s.store.Messages(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Active returns the id of the open conversation, or "".
func (s *Session) Active() string { return s.store.Active() }

// Send appends an admin message and publishes it to the other contexts.
// Its status moves from sent to delivered after DeliveryDelay.
func (s *Session) Send(ctx context.Context, conversationID, body string) (models.Message, error) {
	var msg models.Message
	err := s.do(ctx, func(ctx context.Context) error {
		if strings.TrimSpace(body) == "" {
			return chat.ErrEmptyBody
		}
		if _, err := s.store.Conversation(ctx, conversationID); err != nil {
			return err
		}
		msg = models.Message{
			ID:     chat.NewMessageID(),
			From:   models.AdminID,
			To:     conversationID,
			Body:   body,
			TS:     s.opts.Now().UnixMilli(),
			Status: models.StatusSent,
		}
		if _, err := s.store.AppendMessage(ctx, conversationID, msg); err != nil {
			return fmt.Errorf("send to %s: %w", conversationID, err)
		}
		s.publish(ctx, models.Event{Type: models.EventMessage, ConversationID: conversationID, Message: &msg})

		msgID := msg.ID
		s.after(s.opts.DeliveryDelay, "mark delivered", func(ctx context.Context) {
			if err := s.store.SetStatus(ctx, conversationID, msgID, models.StatusDelivered); err != nil {
				s.logger.Debug("status update skipped",
					"conversation_id", conversationID,
					"message_id", msgID,
					"error", err)
			}
		})
		return nil
	})
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Accept stores a message that was produced elsewhere, such as one arriving
// on the socket server. It is not published.
func (s *Session) Accept(ctx context.Context, conversationID string, msg models.Message) (bool, error) {
	var applied bool
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		applied, err = s.store.AppendMessage(ctx, conversationID, msg)
		return err
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Keystroke tells the other contexts the admin is typing.
func (s *Session) Keystroke(ctx context.Context, conversationID string) error {
	return s.transport.Send(ctx, models.Event{
		Type:           models.EventTyping,
		ConversationID: conversationID,
		Origin:         s.id,
	})
}

// Create adds a conversation and opens it. With SimulateReply the
// counterparty answers after ReplyDelay.
func (s *Session) Create(ctx context.Context, title string, role models.Role) (models.Conversation, error) {
	var conv models.Conversation
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		conv, err = s.store.CreateConversation(ctx, title, role)
		if err != nil {
			return err
		}
		if _, _, err := s.store.OpenConversation(ctx, conv.ID); err != nil {
			return err
		}
		s.clearTypingUnless(conv.ID)
		if s.opts.SimulateReply {
			s.after(s.opts.ReplyDelay, "simulated reply", func(ctx context.Context) {
				s.simulateReply(ctx, conv.ID)
			})
		}
		return nil
	})
	if err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

func (s *Session) simulateReply(ctx context.Context, conversationID string) {
	msg := models.Message{
		ID:   chat.NewMessageID(),
		From: conversationID,
		To:   models.AdminID,
		Body: SimulatedReply,
		TS:   s.opts.Now().UnixMilli(),
	}
	if _, err := s.store.AppendMessage(ctx, conversationID, msg); err != nil {
		s.logger.Warn("simulated reply failed", "conversation_id", conversationID, "error", err)
		return
	}
	s.publish(ctx, models.Event{Type: models.EventMessage, ConversationID: conversationID, Message: &msg})
}

// Typing reports whether another context is typing in the active
// conversation.
func (s *Session) Typing() bool {
	s.typingMu.Lock()
	defer s.typingMu.Unlock()
	return s.typingConv != "" && s.typingConv == s.store.Active()
}

// publish never fails the caller: the message is already stored.
func (s *Session) publish(ctx context.Context, ev models.Event) {
	ev.Origin = s.id
	if err := s.transport.Send(ctx, ev); err != nil {
		s.logger.Warn("broadcast failed",
			"type", ev.Type,
			"conversation_id", ev.ConversationID,
			"error", err)
	}
}

// receive is the transport callback. It runs on the transport's goroutine
// and only queues work.
func (s *Session) receive(ev models.Event) {
	if ev.Origin == s.id {
		return
	}
	switch ev.Type {
	case models.EventMessage:
		if ev.Message == nil || ev.ConversationID == "" {
			return
		}
		s.enqueue("remote message", func(ctx context.Context) {
			s.applyRemoteMessage(ctx, ev)
		})
	case models.EventTyping:
		s.enqueue("remote typing", func(context.Context) {
			if ev.ConversationID == s.store.Active() {
				s.showTyping(ev.ConversationID)
			}
		})
	default:
		s.logger.Debug("ignoring event", "type", ev.Type)
	}
}

func (s *Session) applyRemoteMessage(ctx context.Context, ev models.Event) {
	applied, err := s.store.AppendMessage(ctx, ev.ConversationID, *ev.Message)
	if err != nil {
		s.logger.Warn("remote message rejected",
			"conversation_id", ev.ConversationID,
			"message_id", ev.Message.ID,
			"error", err)
		return
	}
	if applied {
		s.logger.Debug("remote message applied",
			"conversation_id", ev.ConversationID,
			"message_id", ev.Message.ID,
			"origin", ev.Origin)
	}
	if ev.ConversationID == s.store.Active() {
		s.clearTypingUnless("")
	}
}

// showTyping turns the indicator on, restarting its timeout.
func (s *Session) showTyping(conversationID string) {
	s.typingMu.Lock()
	defer s.typingMu.Unlock()

	s.typingConv = conversationID
	s.typingGen++
	gen := s.typingGen
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(s.opts.TypingTimeout, func() {
		s.typingMu.Lock()
		defer s.typingMu.Unlock()
		if s.typingGen == gen {
			s.typingConv = ""
		}
	})
}

// clearTypingUnless hides the indicator unless it belongs to keep.
func (s *Session) clearTypingUnless(keep string) {
	s.typingMu.Lock()
	defer s.typingMu.Unlock()
	if s.typingConv != "" && s.typingConv != keep {
		s.typingConv = ""
		s.typingGen++
	}
}
