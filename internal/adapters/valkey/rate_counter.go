package valkey

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// slidingWindowScript keeps one sorted-set member per admitted request,
// scored by its time in milliseconds, and admits only while fewer than
// limit members are younger than the window.
const slidingWindowScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", tonumber(ARGV[1]) - tonumber(ARGV[2]))
if redis.call("ZCARD", KEYS[1]) < tonumber(ARGV[3]) then
  redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  return 1
end
return 0`

// RateCounter implements ports.RateCounter as a sliding window per key,
// shared across replicas. Any span of window length admits at most limit.
type RateCounter struct {
	c   *Client
	now func() time.Time
}

// NewRateCounter creates a new RateCounter.
func NewRateCounter(c *Client) *RateCounter {
	return &RateCounter{c: c, now: time.Now}
}

// Allow records one request for key if the window still has room.
func (r *RateCounter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	client := r.c.client
	cmd := client.B().Eval().Script(slidingWindowScript).Numkeys(1).
		Key(rateKey(key)).
		Arg(windowArgs(r.now(), window, limit, uuid.NewString())...).
		Build()

	admitted, err := client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, fmt.Errorf("valkey sliding window: %w", err)
	}
	return admitted == 1, nil
}

func rateKey(key string) string {
	return "rl:" + key
}

// windowArgs are the script arguments: now and window in milliseconds, the
// limit and a unique member for this request. Entries exactly one window
// old are expired, matching the in-memory counter.
func windowArgs(now time.Time, window time.Duration, limit int, member string) []string {
	return []string{
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(window.Milliseconds(), 10),
		strconv.Itoa(limit),
		member,
	}
}
