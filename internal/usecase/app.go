package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"symptomai/internal/account"
	"symptomai/internal/conversation"
	"symptomai/internal/domain"
	"symptomai/internal/session"
	"symptomai/internal/settings"
	"symptomai/internal/storage"
)

const msgSomethingWrong = "Something went wrong. Please try again later."

type Accounts interface {
	Signup(ctx context.Context, username, email, password string) (account.Account, error)
	Authenticate(ctx context.Context, identifier, password string) (account.Account, error)
}

type LoginInput struct {
	Username string
	Password string
}

type SignupInput struct {
	Username string
	Email    string
	Password string
}

// App routes each browser profile to its session keys and its chat page.
// Pages are cached per profile for the life of the process.
type App struct {
	backend  storage.Backend
	accounts Accounts
	analyzer Analyzer
	logger   *slog.Logger

	mu    sync.Mutex
	pages map[string]*ChatPage
}

func NewApp(backend storage.Backend, accounts Accounts, analyzer Analyzer, logger *slog.Logger) (*App, error) {
	if backend == nil {
		return nil, errors.New("usecase: storage backend must not be nil")
	}
	if accounts == nil {
		return nil, errors.New("usecase: accounts must not be nil")
	}
	if analyzer == nil {
		return nil, errors.New("usecase: analyzer must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		backend:  backend,
		accounts: accounts,
		analyzer: analyzer,
		logger:   logger,
		pages:    make(map[string]*ChatPage),
	}, nil
}

func (a *App) guard(profileID string) (*session.Guard, error) {
	return session.NewGuard(a.backend.Namespace(profileID), a.logger)
}

// Enter runs the auth guard for a protected view. On success the user's chat
// page is returned, refreshed from storage.
func (a *App) Enter(ctx context.Context, profileID string) (session.Decision, *ChatPage, error) {
	g, err := a.guard(profileID)
	if err != nil {
		return session.Decision{}, nil, newError(ErrorInternal, "guard_init", err)
	}
	d := g.Enter(ctx)
	if d.State != session.Authenticated {
		a.dropPage(profileID)
		return d, nil, newUserError(ErrorUnauthenticated, "no_session", "Please log in.", nil)
	}

	page, err := a.page(ctx, profileID, d.UserID)
	if err != nil {
		return d, nil, newError(ErrorInternal, "page_init", err)
	}
	return d, page, nil
}

func (a *App) page(ctx context.Context, profileID, userID string) (*ChatPage, error) {
	a.mu.Lock()
	page, ok := a.pages[profileID]
	if ok && page.UserID() == domain.NormalizeUserID(userID) {
		a.mu.Unlock()
		page.Refresh(ctx)
		return page, nil
	}
	a.mu.Unlock()

	store, err := conversation.NewStore(a.backend.Namespace(profileID), conversation.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	page, err = NewChatPage(ctx, userID, store, a.analyzer, a.logger)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.pages[profileID]; ok && existing.UserID() == page.UserID() {
		return existing, nil
	}
	a.pages[profileID] = page
	return page, nil
}

func (a *App) dropPage(profileID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pages, profileID)
}

// Login authenticates against the account backend and opens a session in the
// profile. The session user id is the account's lowercased email so that
// logging in by username or by email reaches the same history.
func (a *App) Login(ctx context.Context, profileID string, in LoginInput) (session.Decision, error) {
	acct, err := a.accounts.Authenticate(ctx, strings.TrimSpace(in.Username), in.Password)
	if err != nil {
		var vErr *account.ValidationError
		switch {
		case errors.As(err, &vErr):
			return session.Decision{}, newUserError(ErrorInvalidInput, "invalid_identifier", vErr.Message, err)
		case errors.Is(err, account.ErrInvalidCredentials):
			return session.Decision{}, newUserError(ErrorAuthFailed, "invalid_credentials", account.MsgLoginFailed, err)
		default:
			return session.Decision{}, newUserError(ErrorInternal, "account_lookup", msgSomethingWrong, err)
		}
	}

	g, err := a.guard(profileID)
	if err != nil {
		return session.Decision{}, newError(ErrorInternal, "guard_init", err)
	}
	profile := acct.Profile()
	d, err := g.Login(ctx, acct.Email, &profile)
	if err != nil {
		return session.Decision{}, newUserError(ErrorInternal, "session_write", msgSomethingWrong, err)
	}
	a.dropPage(profileID)
	return d, nil
}

// Signup registers an account and resets the new user's conversation list in
// this profile.
func (a *App) Signup(ctx context.Context, profileID string, in SignupInput) error {
	acct, err := a.accounts.Signup(ctx, strings.TrimSpace(in.Username), strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		var vErr *account.ValidationError
		switch {
		case errors.As(err, &vErr):
			return newUserError(ErrorInvalidInput, "invalid_signup", vErr.Message, err)
		case errors.Is(err, account.ErrAlreadyExists):
			return newUserError(ErrorConflict, "account_exists", account.MsgSignupFailed, err)
		default:
			return newUserError(ErrorInternal, "account_write", msgSomethingWrong, err)
		}
	}

	ns := a.backend.Namespace(profileID)
	key := domain.ConversationsKey(acct.Email)
	if err := ns.Set(ctx, key, "[]"); err != nil {
		a.logger.Error("failed to initialize conversations after signup", "key", key, "err", err)
	}
	return nil
}

// Logout saves the open page, if any, then clears the session keys.
func (a *App) Logout(ctx context.Context, profileID string) (session.Decision, error) {
	g, err := a.guard(profileID)
	if err != nil {
		return session.Decision{}, newError(ErrorInternal, "guard_init", err)
	}

	a.mu.Lock()
	page := a.pages[profileID]
	delete(a.pages, profileID)
	a.mu.Unlock()

	var persist func(context.Context) error
	if page != nil {
		persist = page.Save
	}
	return g.Logout(ctx, persist), nil
}

// UpdateProfile rewrites the display profile of a signed-in user.
func (a *App) UpdateProfile(ctx context.Context, profileID string, p domain.Profile) (domain.Profile, error) {
	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.TrimSpace(p.Email)
	if p.Username == "" || p.Email == "" {
		return domain.Profile{}, newUserError(ErrorInvalidInput, "empty_profile", account.MsgFieldsRequired, nil)
	}
	if !account.IsEmail(p.Email) {
		return domain.Profile{}, newUserError(ErrorInvalidInput, "invalid_email", account.MsgInvalidEmail, nil)
	}
	g, err := a.guard(profileID)
	if err != nil {
		return domain.Profile{}, newError(ErrorInternal, "guard_init", err)
	}
	if err := g.UpdateProfile(ctx, p); err != nil {
		return domain.Profile{}, newError(ErrorInternal, "profile_write", err)
	}
	return p, nil
}

// Settings returns the settings service of a profile.
func (a *App) Settings(profileID string) (*settings.Service, error) {
	svc, err := settings.NewService(a.backend.Namespace(profileID), a.logger)
	if err != nil {
		return nil, newError(ErrorInternal, "settings_init", err)
	}
	return svc, nil
}
