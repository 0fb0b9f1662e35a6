package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"symptomai/internal/conversation"
	"symptomai/internal/domain"
)

// FallbackMessage replaces the bot reply whenever the analysis call fails.
const FallbackMessage = "I'm sorry, I couldn't find a match for your symptoms right now. " +
	"Please try rephrasing or listing your symptoms differently, and I'll do my best to help!"

type Analyzer interface {
	Analyze(ctx context.Context, text string) (string, error)
}

// ChatPage is the dashboard of one signed-in user: the conversation store,
// the analyzer and the busy flag that blocks a second submission.
type ChatPage struct {
	mu       sync.Mutex
	userID   string
	store    *conversation.Store
	analyzer Analyzer
	logger   *slog.Logger
	now      func() time.Time
	busy     atomic.Bool
}

type PageView struct {
	Conversations        []domain.Conversation `json:"conversations"`
	ActiveConversationID string                `json:"activeConversationId"`
	Messages             []domain.ChatMessage  `json:"messages"`
	Busy                 bool                  `json:"busy"`
}

// Exchange is the result of one submission.
type Exchange struct {
	ConversationID string             `json:"conversationId"`
	UserMessage    domain.ChatMessage `json:"userMessage"`
	BotMessage     domain.ChatMessage `json:"botMessage"`
	Fallback       bool               `json:"fallback"`
}

// NewChatPage loads userID's conversations into store.
func NewChatPage(ctx context.Context, userID string, store *conversation.Store, analyzer Analyzer, logger *slog.Logger) (*ChatPage, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if analyzer == nil {
		return nil, errors.New("usecase: analyzer must not be nil")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("usecase: user id must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &ChatPage{
		userID:   domain.NormalizeUserID(userID),
		store:    store,
		analyzer: analyzer,
		logger:   logger,
		now:      time.Now,
	}
	store.Load(ctx, p.userID)
	return p, nil
}

func (p *ChatPage) UserID() string {
	return p.userID
}

func (p *ChatPage) View() PageView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

func (p *ChatPage) viewLocked() PageView {
	return PageView{
		Conversations:        p.store.Conversations(),
		ActiveConversationID: p.store.ActiveID(),
		Messages:             p.store.Messages(),
		Busy:                 p.busy.Load(),
	}
}

// Refresh re-reads the stored list so writes from other processes are seen,
// keeping the current conversation active when it still exists.
func (p *ChatPage) Refresh(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	active := p.store.ActiveID()
	p.store.Load(ctx, p.userID)
	if active != "" {
		p.store.SelectConversation(active)
	}
}

func (p *ChatPage) NewConversation(ctx context.Context) PageView {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store.CreateConversation(ctx)
	return p.viewLocked()
}

// SelectConversation switches the active conversation; unknown ids leave the
// page unchanged.
func (p *ChatPage) SelectConversation(id string) PageView {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store.SelectConversation(id)
	return p.viewLocked()
}

func (p *ChatPage) ClearHistory(ctx context.Context, confirm bool) (PageView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.store.ClearAll(ctx, confirm) {
		return PageView{}, newUserError(ErrorConfirmationRequired, "clear_not_confirmed",
			"Are you sure you want to clear all conversation history? This action cannot be undone.", nil)
	}
	return p.viewLocked(), nil
}

// Save writes the conversation list; logout calls it before erasing the session.
func (p *ChatPage) Save(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Save(ctx)
}

// Submit appends the user's message, asks the analyzer and appends exactly one
// bot message to the same conversation. Analyzer failures become the fallback
// reply. A submission while another is in flight is rejected.
func (p *ChatPage) Submit(ctx context.Context, content string) (Exchange, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return Exchange{}, newUserError(ErrorInvalidInput, "empty_message", "Please describe your symptoms.", nil)
	}
	if !p.busy.CompareAndSwap(false, true) {
		return Exchange{}, newUserError(ErrorBusy, "submission_in_flight", "Please wait for the current reply.", nil)
	}
	defer p.busy.Store(false)

	p.mu.Lock()
	if p.store.ActiveID() == "" {
		p.store.CreateConversation(ctx)
	}
	convID := p.store.ActiveID()
	userMsg := domain.NewChatMessage(p.now(), domain.RoleUser, text)
	p.store.AppendMessage(ctx, userMsg)
	p.mu.Unlock()

	out := Exchange{ConversationID: convID, UserMessage: userMsg}
	reply, err := p.analyzer.Analyze(ctx, text)
	if err != nil {
		p.logger.Warn("analysis failed, using fallback reply", "user", p.userID, "err", err)
		reply = FallbackMessage
		out.Fallback = true
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	out.BotMessage = domain.NewChatMessage(p.now(), domain.RoleBot, reply)
	if !p.store.AppendMessageTo(ctx, convID, out.BotMessage) {
		p.logger.Warn("conversation vanished before reply arrived", "user", p.userID, "conversation", convID)
	}
	return out, nil
}
