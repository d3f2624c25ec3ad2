package rewards

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown throttles repeated scans of the same bin by the same user.
type Cooldown interface {
	// Acquire reports false when the pair is still cooling down.
	Acquire(ctx context.Context, userID, binID string) (bool, error)
	Release(ctx context.Context, userID, binID string) error
}

// RedisCooldown keeps one expiring key per user and bin.
type RedisCooldown struct {
	client *redis.Client
	window time.Duration
}

// NewCooldown returns a Redis cooldown, or a no-op one when client is nil or
// the window is zero.
func NewCooldown(client *redis.Client, window time.Duration) Cooldown {
	if client == nil || window <= 0 {
		return noCooldown{}
	}
	return &RedisCooldown{client: client, window: window}
}

func cooldownKey(userID, binID string) string {
	return "scan:cooldown:" + userID + ":" + binID
}

func (c *RedisCooldown) Acquire(ctx context.Context, userID, binID string) (bool, error) {
	return c.client.SetNX(ctx, cooldownKey(userID, binID), time.Now().UTC().Unix(), c.window).Result()
}

func (c *RedisCooldown) Release(ctx context.Context, userID, binID string) error {
	return c.client.Del(ctx, cooldownKey(userID, binID)).Err()
}

type noCooldown struct{}

func (noCooldown) Acquire(context.Context, string, string) (bool, error) { return true, nil }
func (noCooldown) Release(context.Context, string, string) error         { return nil }
