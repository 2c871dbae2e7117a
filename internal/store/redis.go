package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache serializes the operations that must never race across
// orchestrator processes: per-rail daily limit debits (spec.md §4.4,
// "daily_limit_remaining" must never go negative under concurrent
// attempts) and idempotent-ingest dedup on (workflow_id, event_type,
// line_id, seq) (spec.md §5). Grounded on the teacher's
// wscluster.Cluster use of go-redis for cross-process coordination.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error { return c.client.Close() }

// debitLimitScript atomically checks and decrements a rail's remaining
// daily limit, returning 0 (insufficient) or 1 (debited). Run as a
// single Lua script so the check-then-decrement is race-free under
// concurrent line execution (spec.md §5 concurrency model).
var debitLimitScript = redis.NewScript(`
local remaining = tonumber(redis.call("GET", KEYS[1]) or ARGV[2])
local amount = tonumber(ARGV[1])
if remaining < amount then
	return 0
end
redis.call("SET", KEYS[1], remaining - amount)
return 1
`)

// DebitDailyLimit attempts to debit amount from rail's remaining daily
// limit, seeding the counter from initial on first use. Returns false
// if the debit would drive the counter negative.
func (c *RedisCache) DebitDailyLimit(ctx context.Context, rail string, amount, initial float64) (bool, error) {
	key := fmt.Sprintf("rail:%s:daily_limit_remaining", rail)
	res, err := debitLimitScript.Run(ctx, c.client, []string{key}, amount, initial).Int()
	if err != nil {
		return false, fmt.Errorf("debit daily limit for %s: %w", rail, err)
	}
	return res == 1, nil
}

// ResetDailyLimit restores a rail's remaining limit to its configured
// ceiling. Invoked by the railregistry cron job at local midnight.
func (c *RedisCache) ResetDailyLimit(ctx context.Context, rail string, ceiling float64) error {
	key := fmt.Sprintf("rail:%s:daily_limit_remaining", rail)
	return c.client.Set(ctx, key, ceiling, 0).Err()
}

// ClaimIngestEvent records that (workflowID, eventType, lineID, seq) has
// been processed, returning false if it was already claimed (spec.md
// §5: "HandleEvent is idempotent on this tuple"). The claim expires
// after ttl so the dedup set does not grow unbounded.
func (c *RedisCache) ClaimIngestEvent(ctx context.Context, workflowID, eventType, lineID string, seq int64, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("ingest:claim:%s:%s:%s:%d", workflowID, eventType, lineID, seq)
	ok, err := c.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim ingest event: %w", err)
	}
	return ok, nil
}
