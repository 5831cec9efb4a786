// Package chat is the conversation store: conversation metadata and message
// history persisted under two fixed keys of a shared storage.Store.
//
// Every mutation is a read-modify-write of a whole record. The Store
// serializes its own callers but has no coordination with other Stores
// writing the same records, so concurrent writers from different sessions
// overwrite each other (last writer wins).
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vasu1712/adminchat/internal/models"
	"github.com/Vasu1712/adminchat/internal/storage"
)

// NewConversationPreview is the list preview of a conversation with no
// messages yet.
const NewConversationPreview = "(new)"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrInvalidTitle         = errors.New("conversation title cannot be empty")
	ErrInvalidRole          = errors.New("unknown conversation role")
	ErrEmptyBody            = errors.New("message body cannot be empty")
)

// Store reads and writes the conversation and message records on behalf of
// one session. The active conversation is session state and is never
// persisted.
type Store struct {
	mu      sync.Mutex
	records storage.Store
	active  string
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock used for new conversations and seeds.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewStore(records storage.Store, opts ...Option) *Store {
	s := &Store{
		records: records,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chat_store")
	return s
}

// NewConversationID returns a fresh conversation id.
func NewConversationID() string { return "c_" + uuid.NewString() }

// NewMessageID returns a fresh message id, unique across sessions.
func NewMessageID() string { return "m_" + uuid.NewString() }

// Active returns the id of the conversation currently on screen, or "".
func (s *Store) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActive changes the active conversation without touching unread counts.
// Use OpenConversation to view a conversation.
func (s *Store) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = id
}

// ListConversations returns conversations sorted by UpdatedAt, newest first.
// filter is a role or RoleAll (empty means all); query is matched
// case-insensitively against title and last message.
func (s *Store) ListConversations(ctx context.Context, filter models.Role, query string) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.readConversations(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	result := make([]models.Conversation, 0, len(convs))
	for _, c := range convs {
		if filter != "" && filter != models.RoleAll && c.Role != filter {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(c.Title), q) &&
			!strings.Contains(strings.ToLower(c.Last), q) {
			continue
		}
		result = append(result, c)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UpdatedAt > result[j].UpdatedAt
	})
	return result, nil
}

// OpenConversation makes id the active conversation, resets its unread count
// and returns it with its messages in ts order. An unknown id changes
// nothing and yields ErrConversationNotFound.
func (s *Store) OpenConversation(ctx context.Context, id string) (models.Conversation, []models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.readConversations(ctx)
	if err != nil {
		return models.Conversation{}, nil, err
	}
	idx := indexOf(convs, id)
	if idx < 0 {
		return models.Conversation{}, nil, fmt.Errorf("open %s: %w", id, ErrConversationNotFound)
	}

	s.active = id
	convs[idx].Unread = 0
	if err := s.writeJSON(ctx, storage.ConversationsKey, convs); err != nil {
		return models.Conversation{}, nil, err
	}

	msgs, err := s.readMessages(ctx)
	if err != nil {
		return models.Conversation{}, nil, err
	}
	return convs[idx], sortedByTS(msgs[id]), nil
}

// Conversation looks up one conversation without changing anything.
func (s *Store) Conversation(ctx context.Context, id string) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convs, err := s.readConversations(ctx)
	if err != nil {
		return models.Conversation{}, err
	}
	idx := indexOf(convs, id)
	if idx < 0 {
		return models.Conversation{}, fmt.Errorf("lookup %s: %w", id, ErrConversationNotFound)
	}
	return convs[idx], nil
}

// Messages returns the history of a conversation in ts order without
// marking anything read.
func (s *Store) Messages(ctx context.Context, id string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.readMessages(ctx)
	if err != nil {
		return nil, err
	}
	return sortedByTS(msgs[id]), nil
}

// AppendMessage adds msg to the conversation's history and refreshes the
// conversation's last message and UpdatedAt. Unread grows by one unless the
// conversation is active. A message whose id is already in the history is
// ignored and reported with applied=false.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg models.Message) (applied bool, err error) {
	if msg.Body == "" {
		return false, ErrEmptyBody
	}
	if msg.ID == "" {
		msg.ID = NewMessageID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.readMessages(ctx)
	if err != nil {
		return false, err
	}
	for _, existing := range msgs[conversationID] {
		if existing.ID == msg.ID {
			s.logger.Debug("message already stored",
				"conversation_id", conversationID,
				"message_id", msg.ID)
			return false, nil
		}
	}
	msgs[conversationID] = append(msgs[conversationID], msg)
	if err := s.writeJSON(ctx, storage.MessagesKey, msgs); err != nil {
		return false, err
	}

	convs, err := s.readConversations(ctx)
	if err != nil {
		return true, err
	}
	idx := indexOf(convs, conversationID)
	if idx < 0 {
		s.logger.Debug("message stored for unknown conversation",
			"conversation_id", conversationID,
			"message_id", msg.ID)
		return true, nil
	}

	conv := &convs[idx]
	if conversationID != s.active {
		conv.Unread++
	}
	conv.Last = msg.Body
	if msg.TS > conv.UpdatedAt {
		conv.UpdatedAt = msg.TS
	}
	if err := s.writeJSON(ctx, storage.ConversationsKey, convs); err != nil {
		return true, err
	}
	return true, nil
}

// CreateConversation inserts a new, empty conversation at the head of the
// list.
func (s *Store) CreateConversation(ctx context.Context, title string, role models.Role) (models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Conversation{}, ErrInvalidTitle
	}
	if !role.Valid() {
		return models.Conversation{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := models.Conversation{
		ID:        NewConversationID(),
		Title:     title,
		Role:      role,
		Last:      NewConversationPreview,
		UpdatedAt: s.now().UnixMilli(),
	}

	convs, err := s.readConversations(ctx)
	if err != nil {
		return models.Conversation{}, err
	}
	convs = append([]models.Conversation{conv}, convs...)
	if err := s.writeJSON(ctx, storage.ConversationsKey, convs); err != nil {
		return models.Conversation{}, err
	}

	msgs, err := s.readMessages(ctx)
	if err != nil {
		return models.Conversation{}, err
	}
	if _, ok := msgs[conv.ID]; !ok {
		msgs[conv.ID] = []models.Message{}
	}
	if err := s.writeJSON(ctx, storage.MessagesKey, msgs); err != nil {
		return models.Conversation{}, err
	}

	s.logger.Info("conversation created",
		"conversation_id", conv.ID,
		"role", conv.Role)
	return conv, nil
}

// SetStatus updates the advisory status of one message.
func (s *Store) SetStatus(ctx context.Context, conversationID, messageID string, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.readMessages(ctx)
	if err != nil {
		return err
	}
	list := msgs[conversationID]
	for i := range list {
		if list[i].ID == messageID {
			list[i].Status = status
			return s.writeJSON(ctx, storage.MessagesKey, msgs)
		}
	}
	return fmt.Errorf("status of %s: %w", messageID, ErrMessageNotFound)
}

// readConversations treats a missing or corrupt record as empty.
func (s *Store) readConversations(ctx context.Context) ([]models.Conversation, error) {
	convs, err := readRecord[[]models.Conversation](ctx, s, storage.ConversationsKey)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	return convs, nil
}

// readMessages treats a missing or corrupt record as empty.
func (s *Store) readMessages(ctx context.Context) (map[string][]models.Message, error) {
	msgs, err := readRecord[map[string][]models.Message](ctx, s, storage.MessagesKey)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = make(map[string][]models.Message)
	}
	return msgs, nil
}

func readRecord[T any](ctx context.Context, s *Store, key string) (T, error) {
	var v T
	raw, err := s.records.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return v, nil
	}
	if err != nil {
		return v, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Warn("corrupt record, treating as empty",
			"key", key,
			"error", err)
		var zero T
		return zero, nil
	}
	return v, nil
}

func (s *Store) writeJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.records.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func indexOf(convs []models.Conversation, id string) int {
	for i := range convs {
		if convs[i].ID == id {
			return i
		}
	}
	return -1
}

func sortedByTS(msgs []models.Message) []models.Message {
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	return out
}
