package cache

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) *SQLiteCache {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	c, err := NewSQLiteCache(context.Background(), db)
	require.NoError(t, err)
	return c
}

func TestSQLiteCache_SetAndGet(t *testing.T) {
	c := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), 0))

	v, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
}

func TestSQLiteCache_GetMissing(t *testing.T) {
	c := setupSQLite(t)

	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteCache_SetOverwrites(t *testing.T) {
	c := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("old"), time.Minute))
	require.NoError(t, c.Set(ctx, "k", []byte("new"), 0))

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), v)
}

func TestSQLiteCache_Expiry(t *testing.T) {
	c := setupSQLite(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Second))
	require.NoError(t, c.Set(ctx, "forever", []byte("y"), 0))

	now = now.Add(2 * time.Second)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := c.Exists(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteCache_DeleteIsIdempotent(t *testing.T) {
	c := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))
	require.NoError(t, c.Delete(ctx, "k"))

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteCache_Take(t *testing.T) {
	c := setupSQLite(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "live", []byte("x"), time.Minute))
	require.NoError(t, c.Set(ctx, "stale", []byte("y"), time.Second))
	now = now.Add(2 * time.Second)

	ok, err := c.Take(ctx, "live")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Take(ctx, "live")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Take(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Take(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenSQLiteCache_PersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage.db")

	c, err := OpenSQLiteCache(ctx, path)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "discord-access-token", []byte("T"), 0))
	require.NoError(t, c.Close())

	c, err = OpenSQLiteCache(ctx, path)
	require.NoError(t, err)
	defer c.Close()

	v, err := c.Get(ctx, "discord-access-token")
	require.NoError(t, err)
	assert.Equal(t, []byte("T"), v)
}
