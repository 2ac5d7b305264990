package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/contenttype/internal/cache"
	"github.com/conduit-lang/contenttype/internal/config"
)

func TestSQLDriver(t *testing.T) {
	tests := []struct {
		database, sqlDriver, want string
	}{
		{config.DatabasePostgres, "pgx", "pgx"},
		{config.DatabasePostgres, "pq", "postgres"},
		{config.DatabaseSQLite, "pgx", "sqlite3"},
	}
	for _, tt := range tests {
		got, err := SQLDriver(&config.Config{Database: tt.database, SQLDriver: tt.sqlDriver})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := SQLDriver(&config.Config{Database: config.DatabaseRedis})
	assert.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseSQLite,
		DBName:   filepath.Join(t.TempDir(), "test.db"),
	}

	store, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "sqlite", store.Name())
}

func TestOpen_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := &config.Config{
		Database: config.DatabaseRedis,
		Redis:    config.RedisConfig{Addr: mr.Addr(), Prefix: "test:"},
	}

	store, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "redis", store.Name())
}

func TestOpenCache(t *testing.T) {
	c, err := OpenCache(&config.Config{Cache: config.CacheConfig{Backend: "memory"}})
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache{}, c)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	c, err = OpenCache(&config.Config{Cache: config.CacheConfig{Backend: "redis", Addr: mr.Addr()}})
	require.NoError(t, err)
	assert.IsType(t, &cache.RedisCache{}, c)

	_, err = OpenCache(&config.Config{Cache: config.CacheConfig{Backend: "memcached"}})
	assert.Error(t, err)
}
