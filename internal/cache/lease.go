package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseHeld is returned when another holder owns the lease
var ErrLeaseHeld = errors.New("lease is held by another process")

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is an exclusive, expiring claim on a key
type Lease struct {
	client *Client
	key    string
	token  string
}

// Acquire claims key for ttl. It returns ErrLeaseHeld when someone else has it.
// The TTL bounds how long a crashed holder can block others.
func (c *Client) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lease acquire failed for key %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}

	c.logger.WithField("key", key).Debug("lease acquired")
	return &Lease{client: c, key: key, token: token}, nil
}

// Key returns the leased key
func (l *Lease) Key() string {
	return l.key
}

// Release gives the lease back. Releasing a lease that already expired and
// was taken by someone else is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("redis lease release failed for key %s: %w", l.key, err)
	}
	if n == 0 {
		l.client.logger.WithField("key", l.key).Warn("lease expired before release")
	}
	return nil
}
