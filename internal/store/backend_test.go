package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamscao/agentca/internal/db"
)

func newTestFileBackend(t *testing.T) Backend {
	t.Helper()
	backend, err := NewFileBackend(filepath.Join(t.TempDir(), "security"))
	require.NoError(t, err)
	return backend
}

func newTestSQLiteBackend(t *testing.T) Backend {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "agentca.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.RunMigrations(database))
	return NewSQLiteBackend(database)
}

// forEachBackend runs fn against every backend implementation
func forEachBackend(t *testing.T, fn func(t *testing.T, backend Backend)) {
	t.Run("file", func(t *testing.T) { fn(t, newTestFileBackend(t)) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestSQLiteBackend(t)) })
}

func TestBackend_PutGetDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()

		exists, err := backend.Exists(ctx, "ca/root.crt")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = backend.Get(ctx, "ca/root.crt")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, backend.Put(ctx, "ca/root.crt", []byte("v1")))
		require.NoError(t, backend.Put(ctx, "ca/root.crt", []byte("v2")))

		exists, err = backend.Exists(ctx, "ca/root.crt")
		require.NoError(t, err)
		assert.True(t, exists)

		got, err := backend.Get(ctx, "ca/root.crt")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)

		require.NoError(t, backend.Delete(ctx, "ca/root.crt"))
		assert.ErrorIs(t, backend.Delete(ctx, "ca/root.crt"), ErrNotFound)
	})
}

func TestBackend_PutIfAbsent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()

		written, err := backend.PutIfAbsent(ctx, "ca/root.key", []byte("first"))
		require.NoError(t, err)
		assert.True(t, written)

		written, err = backend.PutIfAbsent(ctx, "ca/root.key", []byte("second"))
		require.NoError(t, err)
		assert.False(t, written)

		got, err := backend.Get(ctx, "ca/root.key")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), got)
	})
}

func TestBackend_PutIfAbsentConcurrent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()

		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				written, err := backend.PutIfAbsent(ctx, "ca/root.key", []byte("key"))
				assert.NoError(t, err)
				if written {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, winners)
	})
}

func TestBackend_List(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()

		keys, err := backend.List(ctx, "sessions")
		require.NoError(t, err)
		assert.Empty(t, keys)

		require.NoError(t, backend.EnsureNamespace(ctx, "sessions"))
		require.NoError(t, backend.Put(ctx, "sessions/b.json", []byte("{}")))
		require.NoError(t, backend.Put(ctx, "sessions/a.json", []byte("{}")))
		require.NoError(t, backend.Put(ctx, "sessionsx/c.json", []byte("{}")))
		require.NoError(t, backend.Put(ctx, "agents/agent-1/metadata.json", []byte("{}")))

		keys, err = backend.List(ctx, "sessions")
		require.NoError(t, err)
		assert.Equal(t, []string{"sessions/a.json", "sessions/b.json"}, keys)

		keys, err = backend.List(ctx, "agents/")
		require.NoError(t, err)
		assert.Equal(t, []string{"agents/agent-1/metadata.json"}, keys)
	})
}

func TestBackend_RejectsInvalidKeys(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()

		for _, key := range []string{"", "/etc/passwd", "agents/../ca/root.key", "agents//x", "agents/x/"} {
			err := backend.Put(ctx, key, []byte("x"))
			assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
		}
	})
}
