// Package settings manages the appSettings preferences and the data export
// offered from the settings dialog.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"symptomai/internal/domain"
	"symptomai/internal/session"
	"symptomai/internal/storage"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

var ErrInvalidTheme = errors.New("settings: theme must be light, dark or auto")

type Settings struct {
	EmailNotifications  bool   `json:"emailNotifications"`
	HealthReminders     bool   `json:"healthReminders"`
	DataCollection      bool   `json:"dataCollection"`
	ConversationHistory bool   `json:"conversationHistory"`
	Theme               Theme  `json:"theme"`
	Language            string `json:"language"`
}

func Defaults() Settings {
	return Settings{
		EmailNotifications:  true,
		HealthReminders:     true,
		DataCollection:      false,
		ConversationHistory: true,
		Theme:               ThemeLight,
		Language:            "en",
	}
}

// Export is the downloadable bundle of everything stored for a user.
type Export struct {
	Conversations []domain.Conversation `json:"conversations"`
	UserInfo      *domain.Profile       `json:"userInfo"`
	Settings      Settings              `json:"settings"`
	ExportDate    string                `json:"exportDate"`
}

type Service struct {
	kv     storage.Adapter
	logger *slog.Logger
	now    func() time.Time
}

func NewService(kv storage.Adapter, logger *slog.Logger) (*Service, error) {
	if kv == nil {
		return nil, errors.New("settings: storage adapter must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{kv: kv, logger: logger, now: time.Now}, nil
}

// Load merges stored values over the defaults. Unreadable settings yield the
// defaults.
func (s *Service) Load(ctx context.Context) Settings {
	out := Defaults()
	raw, found, err := s.kv.Get(ctx, session.KeyAppSettings)
	if err != nil {
		s.logger.Error("failed to read settings", "err", err)
		return out
	}
	if !found {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.logger.Error("failed to parse settings", "err", err)
		return Defaults()
	}
	return out
}

func (s *Service) Update(ctx context.Context, in Settings) (Settings, error) {
	switch in.Theme {
	case ThemeLight, ThemeDark, ThemeAuto:
	default:
		return Settings{}, ErrInvalidTheme
	}
	if in.Language == "" {
		in.Language = Defaults().Language
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: encode: %w", err)
	}
	if err := s.kv.Set(ctx, session.KeyAppSettings, string(raw)); err != nil {
		return Settings{}, fmt.Errorf("settings: write: %w", err)
	}
	return in, nil
}

// Export collects conversations, profile and settings for userID. Broken
// entries are exported as empty rather than failing the download.
func (s *Service) Export(ctx context.Context, userID string) Export {
	out := Export{
		Conversations: []domain.Conversation{},
		Settings:      s.Load(ctx),
		ExportDate:    s.now().UTC().Format(time.RFC3339),
	}

	if raw, found, err := s.kv.Get(ctx, domain.ConversationsKey(userID)); err != nil {
		s.logger.Error("failed to read conversations for export", "err", err)
	} else if found {
		var list []domain.Conversation
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			s.logger.Error("failed to parse conversations for export", "err", err)
		} else if list != nil {
			out.Conversations = list
		}
	}

	if raw, found, err := s.kv.Get(ctx, session.KeyUserInfo); err != nil {
		s.logger.Error("failed to read user info for export", "err", err)
	} else if found {
		var p domain.Profile
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			out.UserInfo = &p
		}
	}
	return out
}
