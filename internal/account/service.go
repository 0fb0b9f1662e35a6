// Package account is the signup/login backend behind /api/signup and
// /api/login. Accounts live in the shared accounts storage namespace.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"symptomai/internal/domain"
	"symptomai/internal/storage"
)

const (
	MsgLoginFailed  = "Login failed. Please use your email and password."
	MsgSignupFailed = "Signup failed. Please try again."
)

var (
	ErrInvalidCredentials = errors.New("account: invalid credentials")
	ErrAlreadyExists      = errors.New("account: already exists")
)

// Account is the stored record. The password is kept only as a bcrypt hash.
type Account struct {
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (a Account) Profile() domain.Profile {
	return domain.Profile{Username: a.Username, Email: a.Email}
}

type Service struct {
	kv       storage.Adapter
	hashCost int
	now      func() time.Time
}

type Option func(*Service)

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hashCost = cost
	}
}

func NewService(kv storage.Adapter, opts ...Option) (*Service, error) {
	if kv == nil {
		return nil, errors.New("account: storage adapter must not be nil")
	}
	s := &Service{kv: kv, hashCost: bcrypt.DefaultCost, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func accountKey(email string) string {
	return "account_" + strings.ToLower(strings.TrimSpace(email))
}

func usernameKey(username string) string {
	return "username_" + strings.ToLower(strings.TrimSpace(username))
}

// Signup validates the form and stores a new account. Email and username are
// both unique, compared case-insensitively.
func (s *Service) Signup(ctx context.Context, username, email, password string) (Account, error) {
	if err := ValidateSignup(username, email, password); err != nil {
		return Account{}, err
	}

	if _, found, err := s.kv.Get(ctx, accountKey(email)); err != nil {
		return Account{}, fmt.Errorf("account: lookup email: %w", err)
	} else if found {
		return Account{}, ErrAlreadyExists
	}
	if _, found, err := s.kv.Get(ctx, usernameKey(username)); err != nil {
		return Account{}, fmt.Errorf("account: lookup username: %w", err)
	} else if found {
		return Account{}, ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return Account{}, fmt.Errorf("account: hash password: %w", err)
	}
	acct := Account{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	raw, err := json.Marshal(acct)
	if err != nil {
		return Account{}, fmt.Errorf("account: encode: %w", err)
	}
	if err := s.kv.Set(ctx, accountKey(email), string(raw)); err != nil {
		return Account{}, fmt.Errorf("account: write: %w", err)
	}
	if err := s.kv.Set(ctx, usernameKey(username), strings.ToLower(email)); err != nil {
		return Account{}, fmt.Errorf("account: write username index: %w", err)
	}
	return acct, nil
}

// Authenticate checks a password for an email address or a username.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (Account, error) {
	if err := ValidateLoginIdentifier(identifier); err != nil {
		return Account{}, err
	}

	email := identifier
	if !IsEmail(identifier) {
		resolved, found, err := s.kv.Get(ctx, usernameKey(identifier))
		if err != nil {
			return Account{}, fmt.Errorf("account: lookup username: %w", err)
		}
		if !found {
			return Account{}, ErrInvalidCredentials
		}
		email = resolved
	}

	raw, found, err := s.kv.Get(ctx, accountKey(email))
	if err != nil {
		return Account{}, fmt.Errorf("account: lookup email: %w", err)
	}
	if !found {
		return Account{}, ErrInvalidCredentials
	}
	var acct Account
	if err := json.Unmarshal([]byte(raw), &acct); err != nil {
		return Account{}, fmt.Errorf("account: decode: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	return acct, nil
}
