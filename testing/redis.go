package testing

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAddrEnv names the environment variable holding the Redis address
// used by Redis-backed tests.
const RedisAddrEnv = "CREDSHARE_REDIS_ADDR"

// RedisClient returns a client for the Redis server named by
// CREDSHARE_REDIS_ADDR, or skips the test when the variable is unset or the
// server does not answer PING.
//
// Every test gets a fresh logical database flush, so tests using this helper
// must not run in parallel with each other.
func RedisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv(RedisAddrEnv)
	if addr == "" {
		t.Skipf("%s not set; skipping Redis test", RedisAddrEnv)
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis at %s unavailable: %v", addr, err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		_ = client.Close()
		t.Fatalf("Failed to flush Redis: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })

	return client
}
