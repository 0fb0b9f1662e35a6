// Package session implements the presence-only auth guard that runs once per
// protected view entry. Possession of the token key is the only check made.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"symptomai/internal/domain"
	"symptomai/internal/storage"
)

const (
	KeyAuthToken   = "authToken"
	KeyUserID      = "userId"
	KeyUserInfo    = "userInfo"
	KeyAppSettings = "appSettings"

	// TokenValue is the opaque marker written at login.
	TokenValue = "loggedin"

	LoginRoute   = "/login"
	LandingRoute = "/"
)

type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Decision is the outcome of a guard check. Redirect is set only when the
// caller must navigate away.
type Decision struct {
	State    State
	UserID   string
	Profile  domain.Profile
	Redirect string
}

// Guard reads and writes the session keys of one browser profile.
type Guard struct {
	kv     storage.Adapter
	logger *slog.Logger
	state  State
}

func NewGuard(kv storage.Adapter, logger *slog.Logger) (*Guard, error) {
	if kv == nil {
		return nil, errors.New("session: storage adapter must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{kv: kv, logger: logger, state: Unauthenticated}, nil
}

func (g *Guard) State() State {
	return g.state
}

// Enter checks for the token and user id. Storage read failures count as
// absence and send the caller to the login view.
func (g *Guard) Enter(ctx context.Context) Decision {
	token := g.read(ctx, KeyAuthToken)
	userID := g.read(ctx, KeyUserID)
	if token == "" || userID == "" {
		g.state = Unauthenticated
		return Decision{State: Unauthenticated, Redirect: LoginRoute}
	}

	g.state = Authenticated
	return Decision{
		State:   Authenticated,
		UserID:  userID,
		Profile: g.profile(ctx, userID),
	}
}

// Login writes the session keys. A nil profile falls back to one derived from
// the identifier the user typed. The user's conversation key is initialized
// when absent.
func (g *Guard) Login(ctx context.Context, identifier string, profile *domain.Profile) (Decision, error) {
	identifier = strings.TrimSpace(identifier)
	userID := domain.NormalizeUserID(identifier)
	if userID == "" {
		return Decision{}, errors.New("session: identifier must not be empty")
	}
	p := domain.Profile{Username: identifier, Email: identifier}
	if profile != nil {
		p = *profile
	}
	info, err := json.Marshal(p)
	if err != nil {
		return Decision{}, fmt.Errorf("session: encode profile: %w", err)
	}

	if err := g.kv.Set(ctx, KeyAuthToken, TokenValue); err != nil {
		return Decision{}, fmt.Errorf("session: write token: %w", err)
	}
	if err := g.kv.Set(ctx, KeyUserID, userID); err != nil {
		return Decision{}, fmt.Errorf("session: write user id: %w", err)
	}
	if err := g.kv.Set(ctx, KeyUserInfo, string(info)); err != nil {
		return Decision{}, fmt.Errorf("session: write user info: %w", err)
	}

	convKey := domain.ConversationsKey(userID)
	if _, found, err := g.kv.Get(ctx, convKey); err == nil && !found {
		if err := g.kv.Set(ctx, convKey, "[]"); err != nil {
			g.logger.Error("failed to initialize conversations", "key", convKey, "err", err)
		}
	}

	g.state = Authenticated
	return Decision{State: Authenticated, UserID: userID, Profile: p}, nil
}

// Logout runs persist first, then erases the session keys. Failures are logged;
// the caller always ends up on the landing view.
func (g *Guard) Logout(ctx context.Context, persist func(ctx context.Context) error) Decision {
	if persist != nil {
		if err := persist(ctx); err != nil {
			g.logger.Error("failed to save conversations during logout", "err", err)
		}
	}
	for _, key := range []string{KeyAuthToken, KeyUserID, KeyUserInfo} {
		if err := g.kv.Remove(ctx, key); err != nil {
			g.logger.Error("failed to remove session key", "key", key, "err", err)
		}
	}
	g.state = Unauthenticated
	return Decision{State: Unauthenticated, Redirect: LandingRoute}
}

// UpdateProfile rewrites the stored display profile.
func (g *Guard) UpdateProfile(ctx context.Context, p domain.Profile) error {
	info, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("session: encode profile: %w", err)
	}
	if err := g.kv.Set(ctx, KeyUserInfo, string(info)); err != nil {
		return fmt.Errorf("session: write user info: %w", err)
	}
	return nil
}

func (g *Guard) profile(ctx context.Context, userID string) domain.Profile {
	fallback := domain.Profile{Username: userID, Email: userID}
	raw := g.read(ctx, KeyUserInfo)
	if raw == "" {
		return fallback
	}
	var p domain.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		g.logger.Error("failed to parse user info", "err", err)
		return fallback
	}
	return p
}

func (g *Guard) read(ctx context.Context, key string) string {
	v, found, err := g.kv.Get(ctx, key)
	if err != nil {
		g.logger.Error("failed to read session key", "key", key, "err", err)
		return ""
	}
	if !found {
		return ""
	}
	return v
}
