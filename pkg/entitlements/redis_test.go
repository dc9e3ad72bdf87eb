package entitlements_test

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/flowstore/pkg/entitlements"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) redis.UniversalClient {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Redis container tests in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, testcontainers.TerminateContainer(container))
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestRedis_IsPremium(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, client.SAdd(ctx, entitlements.DefaultRedisKey, "user_premium").Err())

	checker := entitlements.NewRedis(client, "")

	premium, err := checker.IsPremium(ctx, "user_premium")
	require.NoError(t, err)
	assert.True(t, premium)

	premium, err = checker.IsPremium(ctx, "user_free")
	require.NoError(t, err)
	assert.False(t, premium)
}

func TestRedis_ReportsConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	_, err := entitlements.NewRedis(client, "custom").IsPremium(context.Background(), "user_1")
	assert.Error(t, err)
}
