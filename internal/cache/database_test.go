package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/seiyelan/raidhelper/internal/models"
)

func openCacheTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.CacheEntry{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	store := NewDatabaseStore(openCacheTestDB(t))
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "reminder:abc:24h", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Greater(t, ttl, time.Duration(0))

	count, _, err = store.IncrementWithTTL(ctx, "reminder:abc:24h", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	// Independent key starts its own counter.
	count, _, err = store.IncrementWithTTL(ctx, "reminder:abc:2h", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	store := NewDatabaseStore(openCacheTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "batch:last-flush", []byte("ok"), time.Minute))

	val, found, err := store.Get(ctx, "batch:last-flush")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("ok"), val)

	require.NoError(t, store.Delete(ctx, "batch:last-flush"))

	_, found, err = store.Get(ctx, "batch:last-flush")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreGetExpired(t *testing.T) {
	db := openCacheTestDB(t)
	store := NewDatabaseStore(db)
	ctx := context.Background()

	entry := models.CacheEntry{
		Key:       "stale",
		Value:     []byte("old"),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, db.Create(&entry).Error)

	_, found, err := store.Get(ctx, "stale")
	require.NoError(t, err)
	require.False(t, found)
}
