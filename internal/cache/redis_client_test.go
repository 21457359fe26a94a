package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	logger, _ := test.NewNullLogger()

	c, err := NewClient(context.Background(), mr.Addr(), "", logger)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestNewClient_Unreachable(t *testing.T) {
	logger, _ := test.NewNullLogger()

	_, err := NewClient(context.Background(), "", "", logger)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewClient(context.Background(), addr, "", logger)
	assert.Error(t, err)
}

func TestGetSet(t *testing.T) {
	c, mr := setupRedis(t)
	ctx := context.Background()

	type report struct {
		Status string   `json:"status"`
		Logs   []string `json:"logs"`
	}

	var got report
	found, err := c.Get(ctx, Key("sync", "last"), &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetWithTTL(ctx, Key("sync", "last"), report{Status: "success", Logs: []string{"a"}}, time.Minute))

	found, err = c.Get(ctx, Key("sync", "last"), &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "success", got.Status)

	mr.FastForward(2 * time.Minute)
	found, err = c.Get(ctx, Key("sync", "last"), &got)
	require.NoError(t, err)
	assert.False(t, found, "expired")

	require.NoError(t, c.Set(ctx, "k", 1))
	require.NoError(t, c.Delete(ctx, "k"))
	assert.False(t, mr.Exists("k"))

	require.NoError(t, c.HealthCheck(ctx))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "assetforge:sync:full", Key("sync", "full"))
}

func TestLease(t *testing.T) {
	c, mr := setupRedis(t)
	ctx := context.Background()
	key := Key("lease", "sync")

	lease, err := c.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, key, lease.Key())

	_, err = c.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrLeaseHeld)

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists(key))

	again, err := c.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestLease_ReleaseAfterExpiryKeepsNewHolder(t *testing.T) {
	c, mr := setupRedis(t)
	ctx := context.Background()
	key := Key("lease", "sync")

	stale, err := c.Acquire(ctx, key, time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	fresh, err := c.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists(key), "stale release must not drop the new holder's lease")

	require.NoError(t, fresh.Release(ctx))
	assert.False(t, mr.Exists(key))
}
