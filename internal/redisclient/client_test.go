package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires TEST_REDIS_ADDR")
	}
	c := newClient(redis.NewClient(&redis.Options{Addr: addr}))
	require.NoError(t, c.Ping(context.Background()))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIdempotencyKeyIsNamespaced(t *testing.T) {
	assert.Equal(t, "idempotency:abc", idempotencyKey("abc"))
}

func TestClaimCompleteRelease(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	key := uuid.NewString()

	claimed, _, err := c.ClaimIdempotencyKey(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, existing, err := c.ClaimIdempotencyKey(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, PendingResult, existing)

	require.NoError(t, c.CompleteIdempotencyKey(ctx, key, "PMTO10", time.Minute))
	_, existing, err = c.ClaimIdempotencyKey(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "PMTO10", existing)

	require.NoError(t, c.ReleaseIdempotencyKey(ctx, key))
	claimed, _, err = c.ClaimIdempotencyKey(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}
