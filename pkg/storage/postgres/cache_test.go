package postgres_test

import (
	"context"
	"qrshield/pkg/storage"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPgSQL_NamespaceStore(t *testing.T) {
	pgSQL, cleanup := setupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	expansions := pgSQL.Namespace("expansions")
	ages := pgSQL.Namespace("domain_age")
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("load missing", func(t *testing.T) {
		_, ok, err := expansions.Load(ctx, "missing")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, expansions.Save(ctx, "k1", storage.Entry{Value: []byte("one"), CreatedAt: now, AccessedAt: now}))

		got, ok, err := expansions.Load(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("one"), got.Value)
		require.True(t, now.Equal(got.CreatedAt))
	})

	t.Run("upsert replaces value and timestamps", func(t *testing.T) {
		later := now.Add(time.Hour)
		require.NoError(t, expansions.Save(ctx, "k1", storage.Entry{Value: []byte("uno"), CreatedAt: now, AccessedAt: later}))

		got, ok, err := expansions.Load(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("uno"), got.Value)
		require.True(t, later.Equal(got.AccessedAt))
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		require.NoError(t, expansions.Save(ctx, "k2", storage.Entry{Value: []byte("two"), CreatedAt: now, AccessedAt: now}))
		require.NoError(t, ages.Save(ctx, "k1", storage.Entry{Value: []byte("42"), CreatedAt: now, AccessedAt: now}))

		metas, err := expansions.List(ctx)
		require.NoError(t, err)
		require.Len(t, metas, 2)

		metas, err = ages.List(ctx)
		require.NoError(t, err)
		require.Len(t, metas, 1)
		require.Equal(t, "k1", metas[0].Key)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, expansions.Delete(ctx, "k1", "k2", "missing"))
		require.NoError(t, expansions.Delete(ctx))

		metas, err := expansions.List(ctx)
		require.NoError(t, err)
		require.Empty(t, metas)

		_, ok, err := ages.Load(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok)
	})
}
