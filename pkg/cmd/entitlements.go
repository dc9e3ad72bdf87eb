package cmd

import (
	"fmt"
	"strings"

	"github.com/dukex/flowstore/pkg/entitlements"
	"github.com/redis/go-redis/v9"
)

// NewEntitlements picks the premium lookup: a Redis set when redisURL is set,
// otherwise the comma separated premiumUsers list, where "*" grants everyone.
// The returned close function releases the Redis connection.
func NewEntitlements(redisURL, premiumUsers string) (entitlements.Checker, func() error, error) {
	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}

		client := redis.NewClient(opts)

		return entitlements.NewRedis(client, entitlements.DefaultRedisKey), client.Close, nil
	}

	noop := func() error { return nil }

	if strings.TrimSpace(premiumUsers) == "*" {
		return entitlements.AllowAll(), noop, nil
	}

	var users []string

	for _, user := range strings.Split(premiumUsers, ",") {
		if user = strings.TrimSpace(user); user != "" {
			users = append(users, user)
		}
	}

	return entitlements.NewStatic(users...), noop, nil
}
