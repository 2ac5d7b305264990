package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	err := cache.Set(ctx, "contentTypes", "1", []byte(`{"ID":1}`))
	require.NoError(t, err)

	value, err := cache.Get(ctx, "contentTypes", "1")
	require.NoError(t, err)
	assert.Equal(t, `{"ID":1}`, string(value))
}

func TestMemoryCache_GetMiss(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	_, err := cache.Get(ctx, "contentTypes", "missing")
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, cache.Set(ctx, "contentTypes", "1", []byte("x")))
	_, err = cache.Get(ctx, "contentTypes", "2")
	assert.True(t, IsCacheMiss(err))
}

func TestMemoryCache_ValuesAreCopied(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	original := []byte("abc")
	require.NoError(t, cache.Set(ctx, "g", "k", original))
	original[0] = 'z'

	value, err := cache.Get(ctx, "g", "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(value))

	value[1] = 'z'
	again, err := cache.Get(ctx, "g", "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "g", "a", []byte("1")))
	require.NoError(t, cache.Set(ctx, "g", "b", []byte("2")))
	require.NoError(t, cache.Delete(ctx, "g", "a"))
	require.NoError(t, cache.Delete(ctx, "unknown", "a"))

	_, err := cache.Get(ctx, "g", "a")
	assert.True(t, IsCacheMiss(err))
	assert.Equal(t, 1, cache.Len("g"))
}

func TestMemoryCache_ClearGroup(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "contents1", "a", []byte("1")))
	require.NoError(t, cache.Set(ctx, "contents1", "b", []byte("2")))
	require.NoError(t, cache.Set(ctx, "contents2", "a", []byte("3")))

	require.NoError(t, cache.ClearGroup(ctx, "contents1"))

	assert.Equal(t, 0, cache.Len("contents1"))
	value, err := cache.Get(ctx, "contents2", "a")
	require.NoError(t, err)
	assert.Equal(t, "3", string(value))
}

func TestMemoryCache_Clear(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", "1", []byte("1")))
	require.NoError(t, cache.Set(ctx, "b", "1", []byte("1")))
	require.NoError(t, cache.Clear(ctx))

	assert.Equal(t, 0, cache.Len("a"))
	assert.Equal(t, 0, cache.Len("b"))
}

func TestMemoryCache_CanceledContext(t *testing.T) {
	cache := NewMemoryCache()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, cache.Set(ctx, "g", "k", []byte("v")), context.Canceled)
	_, err := cache.Get(ctx, "g", "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value := []byte{byte(i)}
			for j := 0; j < 50; j++ {
				_ = cache.Set(ctx, "g", "k", value)
				if got, err := cache.Get(ctx, "g", "k"); err == nil {
					assert.Len(t, got, 1)
				}
				if j%10 == 0 {
					_ = cache.ClearGroup(ctx, "g")
				}
			}
		}(i)
	}
	wg.Wait()
}
