package session

import (
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"vetdirectory/internal/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger()
}

// newUnreachableRedisClient returns a client pointed at a port nothing
// listens on, with tight timeouts. Every call errors quickly, which is
// exactly what the fail-open tests need.
func newUnreachableRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		ReadTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	return client
}
