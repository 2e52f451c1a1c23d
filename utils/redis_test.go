package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, NameKey("causes", "7"), "St. Jude", time.Hour))

	v, ok, err := c.Get(ctx, NameKey("causes", "7"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "St. Jude", v)

	now = now.Add(time.Hour)
	_, ok, err = c.Get(ctx, NameKey("causes", "7"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewNameCache_EmptyURLSelectsMemory(t *testing.T) {
	c, err := NewNameCache(context.Background(), "  ")
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)
}

func TestInitRedis_BadURL(t *testing.T) {
	_, err := InitRedis(context.Background(), "not-a-url")
	assert.Error(t, err)
}
