package rdx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "places:all", "[]", time.Minute))
	v, err := m.Get(ctx, "places:all")
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	now = now.Add(time.Minute)
	_, err = m.Get(ctx, "places:all")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCacheDel(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "a", "1", 0))
	require.NoError(t, m.Set(ctx, "b", "2", 0))
	require.NoError(t, m.Del(ctx, "a", "b"))
	_, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
}
