// Package conversation keeps one user's conversation list in memory and
// writes the whole list through to storage after every mutation.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"symptomai/internal/domain"
	"symptomai/internal/storage"
)

// Store owns the conversations of a single user and the pointer to the active
// one. It is not safe for concurrent use; callers serialize access.
type Store struct {
	kv     storage.Adapter
	logger *slog.Logger
	newID  func() string

	userID        string
	conversations []domain.Conversation
	activeID      string
	messages      []domain.ChatMessage
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewStore(kv storage.Adapter, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, errors.New("conversation: storage adapter must not be nil")
	}
	s := &Store{
		kv:     kv,
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load reads the persisted list for userID. A missing, undecodable or null
// list is replaced with an empty one, which is persisted immediately. A read
// error yields an empty list in memory without touching storage.
func (s *Store) Load(ctx context.Context, userID string) []domain.Conversation {
	s.userID = domain.NormalizeUserID(userID)
	s.conversations = nil
	s.activeID = ""
	s.messages = nil

	key := domain.ConversationsKey(s.userID)
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		// the stored list may still be intact; leave it alone
		s.logger.Error("failed to read conversations", "key", key, "err", err)
		return s.Conversations()
	}
	if !found {
		s.persist(ctx)
		return s.Conversations()
	}

	var list []domain.Conversation
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		s.logger.Error("failed to decode conversations, resetting", "key", key, "err", err)
		s.persist(ctx)
		return s.Conversations()
	}
	if list == nil {
		s.logger.Error("stored conversations are null, resetting", "key", key)
		s.persist(ctx)
		return s.Conversations()
	}
	s.conversations = list
	if len(list) > 0 {
		s.activeID = list[0].ID
		s.messages = cloneMessages(list[0].Messages)
	}
	return s.Conversations()
}

// CreateConversation prepends an empty conversation and makes it active.
func (s *Store) CreateConversation(ctx context.Context) string {
	conv := domain.Conversation{
		ID:       s.newID(),
		Title:    domain.DefaultConversationTitle,
		Messages: []domain.ChatMessage{},
	}
	s.conversations = append([]domain.Conversation{conv}, s.conversations...)
	s.activeID = conv.ID
	s.messages = nil
	s.persist(ctx)
	return conv.ID
}

// SelectConversation makes id active. Unknown ids are ignored.
func (s *Store) SelectConversation(id string) bool {
	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	s.activeID = id
	s.messages = cloneMessages(s.conversations[idx].Messages)
	return true
}

// AppendMessage appends to the visible buffer and mirrors it into the active
// conversation. Without an active conversation only the buffer changes.
func (s *Store) AppendMessage(ctx context.Context, msg domain.ChatMessage) {
	s.messages = append(s.messages, msg)
	idx := s.indexOf(s.activeID)
	if idx < 0 {
		return
	}
	s.conversations[idx].Messages = cloneMessages(s.messages)
	s.applyTitle(idx)
	s.persist(ctx)
}

// AppendMessageTo appends to the named conversation whether or not it is
// active. It reports false when id is unknown.
func (s *Store) AppendMessageTo(ctx context.Context, id string, msg domain.ChatMessage) bool {
	if id == s.activeID {
		if s.indexOf(id) < 0 {
			return false
		}
		s.AppendMessage(ctx, msg)
		return true
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	s.conversations[idx].Messages = append(s.conversations[idx].Messages, msg)
	s.applyTitle(idx)
	s.persist(ctx)
	return true
}

// ClearAll empties the user's history. Nothing happens unless confirm is set.
func (s *Store) ClearAll(ctx context.Context, confirm bool) bool {
	if !confirm {
		return false
	}
	s.conversations = nil
	s.activeID = ""
	s.messages = nil
	s.persist(ctx)
	return true
}

// Save writes the current list and reports any storage failure.
func (s *Store) Save(ctx context.Context) error {
	if s.userID == "" {
		return errors.New("conversation: store not loaded")
	}
	raw, err := json.Marshal(s.listForWrite())
	if err != nil {
		return fmt.Errorf("conversation: encode: %w", err)
	}
	if err := s.kv.Set(ctx, domain.ConversationsKey(s.userID), string(raw)); err != nil {
		return fmt.Errorf("conversation: save: %w", err)
	}
	return nil
}

func (s *Store) UserID() string {
	return s.userID
}

func (s *Store) ActiveID() string {
	return s.activeID
}

// Active returns a copy of the active conversation.
func (s *Store) Active() (domain.Conversation, bool) {
	idx := s.indexOf(s.activeID)
	if idx < 0 {
		return domain.Conversation{}, false
	}
	return cloneConversation(s.conversations[idx]), true
}

// Messages returns a copy of the visible message buffer.
func (s *Store) Messages() []domain.ChatMessage {
	return cloneMessages(s.messages)
}

// Conversations returns a copy of the list, newest first.
func (s *Store) Conversations() []domain.Conversation {
	out := make([]domain.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, cloneConversation(c))
	}
	return out
}

// applyTitle fixes the title once the first message is a user message.
func (s *Store) applyTitle(idx int) {
	conv := &s.conversations[idx]
	if len(conv.Messages) == 1 && conv.Messages[0].Role == domain.RoleUser {
		conv.Title = domain.TitleFromContent(conv.Messages[0].Content)
	}
}

func (s *Store) persist(ctx context.Context) {
	if err := s.Save(ctx); err != nil {
		s.logger.Error("failed to persist conversations", "user", s.userID, "err", err)
	}
}

func (s *Store) listForWrite() []domain.Conversation {
	if s.conversations == nil {
		return []domain.Conversation{}
	}
	return s.conversations
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneConversation(c domain.Conversation) domain.Conversation {
	c.Messages = cloneMessages(c.Messages)
	return c
}

func cloneMessages(in []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(in))
	copy(out, in)
	return out
}
