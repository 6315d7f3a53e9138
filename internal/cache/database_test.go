package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/filebridge/internal/database/testutil"
)

func TestDatabaseStore_SetGetDelete(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "token:abc", []byte("payload"), time.Minute))

	value, ok, err := store.Get(ctx, "token:abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), value)

	require.NoError(t, store.Delete(ctx, "token:abc"))

	_, ok, err = store.Get(ctx, "token:abc")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStore_SetOverwritesValue(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "key", []byte("one"), time.Minute))
	require.NoError(t, store.Set(ctx, "key", []byte("two"), time.Minute))

	value, ok, err := store.Get(ctx, "key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("two"), value)
}

func TestDatabaseStore_GetRespectsExpiry(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "transient", []byte("x"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := store.Get(ctx, "transient")
	require.NoError(t, err)
	require.False(t, ok, "expired entries must not be returned")
}

func TestDatabaseStore_IncrementWithTTLCounts(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, ttl, err := store.IncrementWithTTL(ctx, "ratelimit:10.0.0.1", time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, count)
		require.Greater(t, ttl, time.Duration(0))
	}
}

func TestDatabaseStore_IncrementResetsAfterWindow(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	count, _, err := store.IncrementWithTTL(ctx, "burst", 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	time.Sleep(30 * time.Millisecond)

	count, _, err = store.IncrementWithTTL(ctx, "burst", 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(1), count, "an expired window starts counting from one")
}

func TestDatabaseStore_DeleteExpired(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "stale", []byte("x"), 10*time.Millisecond))
	require.NoError(t, store.Set(ctx, "fresh", []byte("y"), time.Hour))
	require.NoError(t, store.Set(ctx, "forever", []byte("z"), 0))

	time.Sleep(30 * time.Millisecond)

	removed, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	_, ok, err := store.Get(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, ok, "entries without expiry survive the sweep")
}
