package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "kv", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return map[string]Backend{
		"memory": NewMemory(),
		"sqlite": db,
	}
}

func TestBackends_SetGetRemove(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ns := b.Namespace("profile-1")

			_, found, err := ns.Get(ctx, "authToken")
			require.NoError(t, err)
			require.False(t, found)

			require.NoError(t, ns.Set(ctx, "authToken", "loggedin"))
			v, found, err := ns.Get(ctx, "authToken")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, "loggedin", v)

			require.NoError(t, ns.Set(ctx, "authToken", "again"))
			v, _, err = ns.Get(ctx, "authToken")
			require.NoError(t, err)
			require.Equal(t, "again", v)

			require.NoError(t, ns.Remove(ctx, "authToken"))
			_, found, err = ns.Get(ctx, "authToken")
			require.NoError(t, err)
			require.False(t, found)
		})
	}
}

func TestBackends_NamespacesAreIsolated(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, b.Namespace("a").Set(ctx, "userId", "alice"))

			_, found, err := b.Namespace("b").Get(ctx, "userId")
			require.NoError(t, err)
			require.False(t, found)
		})
	}
}

func TestBackends_EmptyKey(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ns := b.Namespace("p")
			require.ErrorIs(t, ns.Set(ctx, " ", "v"), ErrEmptyKey)
			_, _, err := ns.Get(ctx, "")
			require.ErrorIs(t, err, ErrEmptyKey)
			require.ErrorIs(t, ns.Remove(ctx, ""), ErrEmptyKey)
		})
	}
}

func TestMemory_RemoveMissingKey(t *testing.T) {
	require.NoError(t, NewMemory().Namespace("p").Remove(context.Background(), "nope"))
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}
