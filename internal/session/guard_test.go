package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"symptomai/internal/domain"
	"symptomai/internal/storage"
)

type brokenAdapter struct {
	storage.Adapter
	getErr    error
	setErr    error
	removeErr error
}

func (b *brokenAdapter) Get(ctx context.Context, key string) (string, bool, error) {
	if b.getErr != nil {
		return "", false, b.getErr
	}
	return b.Adapter.Get(ctx, key)
}

func (b *brokenAdapter) Set(ctx context.Context, key, value string) error {
	if b.setErr != nil {
		return b.setErr
	}
	return b.Adapter.Set(ctx, key, value)
}

func (b *brokenAdapter) Remove(ctx context.Context, key string) error {
	if b.removeErr != nil {
		return b.removeErr
	}
	return b.Adapter.Remove(ctx, key)
}

func newTestGuard(t *testing.T, kv storage.Adapter) *Guard {
	t.Helper()
	g, err := NewGuard(kv, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return g
}

func TestNewGuard_NilAdapter(t *testing.T) {
	_, err := NewGuard(nil, nil)
	require.Error(t, err)
}

func TestEnter_NoSessionRedirectsToLogin(t *testing.T) {
	g := newTestGuard(t, storage.NewMemory().Namespace("p"))
	require.Equal(t, Unauthenticated, g.State())

	d := g.Enter(context.Background())
	require.Equal(t, Unauthenticated, d.State)
	require.Equal(t, LoginRoute, d.Redirect)
	require.Equal(t, Unauthenticated, g.State())
}

func TestEnter_TokenWithoutUserIDRedirects(t *testing.T) {
	kv := storage.NewMemory().Namespace("p")
	require.NoError(t, kv.Set(context.Background(), KeyAuthToken, TokenValue))

	d := newTestGuard(t, kv).Enter(context.Background())
	require.Equal(t, LoginRoute, d.Redirect)
}

func TestEnter_AnyTokenValueIsAccepted(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory().Namespace("p")
	require.NoError(t, kv.Set(ctx, KeyAuthToken, "anything"))
	require.NoError(t, kv.Set(ctx, KeyUserID, "alice@example.com"))

	g := newTestGuard(t, kv)
	d := g.Enter(ctx)
	require.Equal(t, Authenticated, d.State)
	require.Empty(t, d.Redirect)
	require.Equal(t, "alice@example.com", d.UserID)
	require.Equal(t, domain.Profile{Username: "alice@example.com", Email: "alice@example.com"}, d.Profile)
	require.Equal(t, Authenticated, g.State())
}

func TestEnter_MalformedProfileFallsBack(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory().Namespace("p")
	require.NoError(t, kv.Set(ctx, KeyAuthToken, TokenValue))
	require.NoError(t, kv.Set(ctx, KeyUserID, "bob"))
	require.NoError(t, kv.Set(ctx, KeyUserInfo, "{oops"))

	d := newTestGuard(t, kv).Enter(ctx)
	require.Equal(t, domain.Profile{Username: "bob", Email: "bob"}, d.Profile)
}

func TestEnter_ReadFailureRedirects(t *testing.T) {
	kv := &brokenAdapter{Adapter: storage.NewMemory().Namespace("p"), getErr: errors.New("down")}
	d := newTestGuard(t, kv).Enter(context.Background())
	require.Equal(t, Unauthenticated, d.State)
	require.Equal(t, LoginRoute, d.Redirect)
}

func TestLogin_WritesSessionKeys(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory().Namespace("p")
	g := newTestGuard(t, kv)

	d, err := g.Login(ctx, "Alice@Example.com", &domain.Profile{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	require.Equal(t, Authenticated, d.State)
	require.Equal(t, "alice@example.com", d.UserID)

	token, _, _ := kv.Get(ctx, KeyAuthToken)
	require.Equal(t, TokenValue, token)
	userID, _, _ := kv.Get(ctx, KeyUserID)
	require.Equal(t, "alice@example.com", userID)
	info, _, _ := kv.Get(ctx, KeyUserInfo)
	require.JSONEq(t, `{"username":"alice","email":"alice@example.com"}`, info)
	convs, found, _ := kv.Get(ctx, "conversations_alice@example.com")
	require.True(t, found)
	require.Equal(t, "[]", convs)

	again := newTestGuard(t, kv).Enter(ctx)
	require.Equal(t, d.Profile, again.Profile)
}

func TestLogin_DefaultProfileAndExistingConversationsKept(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory().Namespace("p")
	require.NoError(t, kv.Set(ctx, "conversations_bob", `[{"id":"1","title":"t","messages":[]}]`))

	d, err := newTestGuard(t, kv).Login(ctx, "Bob", nil)
	require.NoError(t, err)
	require.Equal(t, domain.Profile{Username: "Bob", Email: "Bob"}, d.Profile)

	convs, _, _ := kv.Get(ctx, "conversations_bob")
	require.Equal(t, `[{"id":"1","title":"t","messages":[]}]`, convs)
}

func TestLogin_EmptyIdentifier(t *testing.T) {
	_, err := newTestGuard(t, storage.NewMemory().Namespace("p")).Login(context.Background(), "  ", nil)
	require.Error(t, err)
}

func TestLogin_WriteFailure(t *testing.T) {
	kv := &brokenAdapter{Adapter: storage.NewMemory().Namespace("p"), setErr: errors.New("quota")}
	_, err := newTestGuard(t, kv).Login(context.Background(), "alice", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "write token")
}

func TestLogout_PersistsBeforeErasing(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory().Namespace("p")
	g := newTestGuard(t, kv)
	_, err := g.Login(ctx, "alice", nil)
	require.NoError(t, err)

	var tokenDuringPersist string
	d := g.Logout(ctx, func(ctx context.Context) error {
		tokenDuringPersist, _, _ = kv.Get(ctx, KeyAuthToken)
		return nil
	})
	require.Equal(t, TokenValue, tokenDuringPersist)
	require.Equal(t, LandingRoute, d.Redirect)
	require.Equal(t, Unauthenticated, g.State())

	for _, key := range []string{KeyAuthToken, KeyUserID, KeyUserInfo} {
		_, found, err := kv.Get(ctx, key)
		require.NoError(t, err)
		require.False(t, found, key)
	}
	_, found, _ := kv.Get(ctx, "conversations_alice")
	require.True(t, found)
}

func TestLogout_PersistFailureStillLogsOut(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory().Namespace("p")
	g := newTestGuard(t, kv)
	_, err := g.Login(ctx, "alice", nil)
	require.NoError(t, err)

	d := g.Logout(ctx, func(context.Context) error { return errors.New("boom") })
	require.Equal(t, LandingRoute, d.Redirect)
	require.Equal(t, LoginRoute, g.Enter(ctx).Redirect)
}

func TestLogout_RemoveFailureStillRedirects(t *testing.T) {
	kv := &brokenAdapter{Adapter: storage.NewMemory().Namespace("p"), removeErr: errors.New("down")}
	d := newTestGuard(t, kv).Logout(context.Background(), nil)
	require.Equal(t, LandingRoute, d.Redirect)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory().Namespace("p")
	g := newTestGuard(t, kv)
	_, err := g.Login(ctx, "alice", nil)
	require.NoError(t, err)

	require.NoError(t, g.UpdateProfile(ctx, domain.Profile{Username: "Alice A.", Email: "alice@example.com"}))
	d := g.Enter(ctx)
	require.Equal(t, "Alice A.", d.Profile.Username)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "authenticated", Authenticated.String())
	require.Equal(t, "unauthenticated", Unauthenticated.String())
}
