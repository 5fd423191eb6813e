package counter

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var incrDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "bulwark_counter_incr_duration_ms",
	Help:    "Latency of counter store increments in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

// incrScript atomically increments a counter and starts its window on the
// first increment. A fresh key expires after the window; later increments in
// the same window never extend it (fixed window, not sliding).
var incrScript = redis.NewScript(`
local current = redis.call("INCRBY", KEYS[1], ARGV[1])
if current == tonumber(ARGV[1]) then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return current
`)

// RedisStore is the production counter store shared by all gateway
// instances. Counters are plain integer keys with a TTL equal to the window.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed counter store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// IncrBy atomically increments key by amount within the fixed window,
// returning the post-increment count.
func (s *RedisStore) IncrBy(ctx context.Context, key string, amount int64, window time.Duration) (int64, error) {
	start := time.Now()
	defer func() {
		incrDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	res, err := incrScript.Run(ctx, s.client, []string{key}, amount, window.Milliseconds()).Int64()
	if err != nil {
		return 0, err
	}
	return res, nil
}

// Get returns the current count for key, 0 if the window has expired.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Reset deletes the given counters. Uses a pipeline for batch deletes.
func (s *RedisStore) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	_, err := pipe.Exec(ctx)
	return err
}
