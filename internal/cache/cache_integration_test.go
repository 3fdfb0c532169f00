package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/cache"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/testutil"
)

func TestIdentityCache_RoundTrip(t *testing.T) {
	client := testutil.NewRedisClient(t)
	ctx := context.Background()
	identities := cache.NewIdentityCache(client, time.Minute)

	missing, err := identities.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	want := domain.Identity{ID: "u-1", Name: "Ana", Email: "ana@x.io", Role: domain.RoleAgent}
	require.NoError(t, identities.Set(ctx, want))

	got, err := identities.Get(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	ttl, err := client.TTL(ctx, "identity:u-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, client.Set(ctx, "identity:u-2", "not json", time.Minute).Err())
	require.NoError(t, client.Set(ctx, "identity:u-3", `{"id":"u-9"}`, time.Minute).Err())
	corrupted, err := identities.Get(ctx, "u-2")
	require.NoError(t, err)
	assert.Nil(t, corrupted)

	mismatched, err := identities.Get(ctx, "u-3")
	require.NoError(t, err)
	assert.Nil(t, mismatched)
}

func TestLoginThrottle_BlocksAfterBudget(t *testing.T) {
	client := testutil.NewRedisClient(t)
	ctx := context.Background()
	throttle := cache.NewLoginThrottle(client, 3, time.Minute)

	for i := int64(1); i <= 3; i++ {
		blocked, _, err := throttle.Blocked(ctx, "a@x.io")
		require.NoError(t, err)
		assert.False(t, blocked)

		count, err := throttle.RecordFailure(ctx, "A@x.io")
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	blocked, retryAfter, err := throttle.Blocked(ctx, "a@x.io")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.LessOrEqual(t, retryAfter, time.Minute)

	require.NoError(t, throttle.Reset(ctx, "a@x.io"))
	blocked, _, err = throttle.Blocked(ctx, "a@x.io")
	require.NoError(t, err)
	assert.False(t, blocked)
}
