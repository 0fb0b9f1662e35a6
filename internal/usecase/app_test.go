package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"symptomai/internal/account"
	"symptomai/internal/domain"
	"symptomai/internal/session"
	"symptomai/internal/settings"
	"symptomai/internal/storage"
)

const testProfile = "profile-1"

func newTestApp(t *testing.T, analyzer Analyzer) (*App, *storage.Memory) {
	t.Helper()
	backend := storage.NewMemory()
	accounts, err := account.NewService(backend.Namespace(storage.AccountsNamespace), account.WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	app, err := NewApp(backend, accounts, analyzer, quietLogger())
	require.NoError(t, err)
	return app, backend
}

func signupAlice(t *testing.T, app *App) {
	t.Helper()
	require.NoError(t, app.Signup(context.Background(), testProfile, SignupInput{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "hunter2",
	}))
}

func TestNewApp_ValidatesDependencies(t *testing.T) {
	backend := storage.NewMemory()
	accounts, err := account.NewService(backend.Namespace(storage.AccountsNamespace))
	require.NoError(t, err)

	_, err = NewApp(nil, accounts, &mockAnalyzer{}, nil)
	require.Error(t, err)
	_, err = NewApp(backend, nil, &mockAnalyzer{}, nil)
	require.Error(t, err)
	_, err = NewApp(backend, accounts, nil, nil)
	require.Error(t, err)
}

func TestEnter_WithoutSessionRedirectsToLogin(t *testing.T) {
	app, _ := newTestApp(t, &mockAnalyzer{reply: "ok"})

	d, page, err := app.Enter(context.Background(), testProfile)
	expectCode(t, err, ErrorUnauthenticated)
	require.Nil(t, page)
	require.Equal(t, session.Unauthenticated, d.State)
	require.Equal(t, session.LoginRoute, d.Redirect)
}

func TestLogin_ByUsernameAndEmailShareHistory(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t, &mockAnalyzer{reply: "Possible Disease: Flu"})
	signupAlice(t, app)

	d, err := app.Login(ctx, testProfile, LoginInput{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", d.UserID)
	require.Equal(t, domain.Profile{Username: "alice", Email: "Alice@Example.com"}, d.Profile)

	_, page, err := app.Enter(ctx, testProfile)
	require.NoError(t, err)
	_, err = page.Submit(ctx, "fever and chills")
	require.NoError(t, err)

	out, err := app.Logout(ctx, testProfile)
	require.NoError(t, err)
	require.Equal(t, session.LandingRoute, out.Redirect)

	_, _, err = app.Enter(ctx, testProfile)
	expectCode(t, err, ErrorUnauthenticated)

	_, err = app.Login(ctx, testProfile, LoginInput{Username: "ALICE@example.com", Password: "hunter2"})
	require.NoError(t, err)
	_, page, err = app.Enter(ctx, testProfile)
	require.NoError(t, err)

	view := page.View()
	require.Len(t, view.Conversations, 1)
	require.Equal(t, "fever and chills", view.Conversations[0].Title)
	require.Len(t, view.Messages, 2)
}

func TestEnter_ReusesPageAcrossRequests(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t, &mockAnalyzer{reply: "ok"})
	signupAlice(t, app)
	_, err := app.Login(ctx, testProfile, LoginInput{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)

	_, first, err := app.Enter(ctx, testProfile)
	require.NoError(t, err)
	_, second, err := app.Enter(ctx, testProfile)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestEnter_ProfilesAreIsolated(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t, &mockAnalyzer{reply: "ok"})
	signupAlice(t, app)
	_, err := app.Login(ctx, testProfile, LoginInput{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)

	_, _, err = app.Enter(ctx, "profile-2")
	expectCode(t, err, ErrorUnauthenticated)
}

func TestLogin_Errors(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t, &mockAnalyzer{reply: "ok"})
	signupAlice(t, app)

	tests := []struct {
		name    string
		in      LoginInput
		code    ErrorCode
		message string
	}{
		{
			name:    "malformed identifier",
			in:      LoginInput{Username: "a b", Password: "x"},
			code:    ErrorInvalidInput,
			message: account.MsgInvalidLoginIdentifier,
		},
		{
			name:    "wrong password",
			in:      LoginInput{Username: "alice", Password: "nope"},
			code:    ErrorAuthFailed,
			message: account.MsgLoginFailed,
		},
		{
			name:    "unknown user",
			in:      LoginInput{Username: "bob@example.com", Password: "hunter2"},
			code:    ErrorAuthFailed,
			message: account.MsgLoginFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.Login(ctx, testProfile, tt.in)
			e := expectCode(t, err, tt.code)
			require.Equal(t, tt.message, e.Message)

			_, _, err = app.Enter(ctx, testProfile)
			expectCode(t, err, ErrorUnauthenticated)
		})
	}
}

func TestSignup_Errors(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t, &mockAnalyzer{reply: "ok"})
	signupAlice(t, app)

	err := app.Signup(ctx, testProfile, SignupInput{Username: "alice", Email: "other@example.com", Password: "x"})
	e := expectCode(t, err, ErrorConflict)
	require.Equal(t, account.MsgSignupFailed, e.Message)

	err = app.Signup(ctx, testProfile, SignupInput{Username: "al", Email: "al@example.com", Password: "x"})
	e = expectCode(t, err, ErrorInvalidInput)
	require.Equal(t, account.MsgInvalidUsername, e.Message)

	err = app.Signup(ctx, testProfile, SignupInput{Username: "carol", Email: "carol", Password: "x"})
	e = expectCode(t, err, ErrorInvalidInput)
	require.Equal(t, account.MsgInvalidEmail, e.Message)

	err = app.Signup(ctx, testProfile, SignupInput{Username: "carol", Email: "", Password: "x"})
	e = expectCode(t, err, ErrorInvalidInput)
	require.Equal(t, account.MsgFieldsRequired, e.Message)
}

func TestSignup_ResetsConversationList(t *testing.T) {
	ctx := context.Background()
	app, backend := newTestApp(t, &mockAnalyzer{reply: "ok"})
	ns := backend.Namespace(testProfile)
	require.NoError(t, ns.Set(ctx, domain.ConversationsKey("alice@example.com"), `[{"id":"old","title":"t","messages":[]}]`))

	signupAlice(t, app)

	raw, found, err := ns.Get(ctx, domain.ConversationsKey("alice@example.com"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "[]", raw)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t, &mockAnalyzer{reply: "ok"})
	signupAlice(t, app)
	_, err := app.Login(ctx, testProfile, LoginInput{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)

	_, err = app.UpdateProfile(ctx, testProfile, domain.Profile{Username: "Alice A", Email: "nope"})
	expectCode(t, err, ErrorInvalidInput)

	p, err := app.UpdateProfile(ctx, testProfile, domain.Profile{Username: " Alice A ", Email: "alice@example.com"})
	require.NoError(t, err)
	require.Equal(t, "Alice A", p.Username)

	d, _, err := app.Enter(ctx, testProfile)
	require.NoError(t, err)
	require.Equal(t, p, d.Profile)
}

func TestSettings_ExportIncludesHistory(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t, &mockAnalyzer{reply: "ok"})
	signupAlice(t, app)
	d, err := app.Login(ctx, testProfile, LoginInput{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)
	_, page, err := app.Enter(ctx, testProfile)
	require.NoError(t, err)
	_, err = page.Submit(ctx, "cough")
	require.NoError(t, err)

	svc, err := app.Settings(testProfile)
	require.NoError(t, err)
	_, err = svc.Update(ctx, settings.Settings{Theme: settings.ThemeDark})
	require.NoError(t, err)

	export := svc.Export(ctx, d.UserID)
	require.Len(t, export.Conversations, 1)
	require.Equal(t, settings.ThemeDark, export.Settings.Theme)
	require.NotNil(t, export.UserInfo)
	require.Equal(t, "alice", export.UserInfo.Username)
}
