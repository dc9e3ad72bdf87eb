package entitlements

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the set holding the ids of premium users.
const DefaultRedisKey = "flowstore:premium_users"

// Redis reads premium membership from a Redis set maintained by the
// billing system.
type Redis struct {
	client redis.UniversalClient
	key    string
}

func NewRedis(client redis.UniversalClient, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}

	return &Redis{client: client, key: key}
}

func (r *Redis) IsPremium(ctx context.Context, userID string) (bool, error) {
	member, err := r.client.SIsMember(ctx, r.key, userID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check premium membership: %w", err)
	}

	return member, nil
}
