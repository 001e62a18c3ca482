package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fluentz/placement-backend/internal/config"
	"github.com/fluentz/placement-backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisCompletionGuard claims state tokens with SET NX so each one is
// answered once.
type RedisCompletionGuard struct {
	rdb *redis.Client
}

// NewRedisCompletionGuard creates a new RedisCompletionGuard.
func NewRedisCompletionGuard(rdb *redis.Client) *RedisCompletionGuard {
	return &RedisCompletionGuard{rdb: rdb}
}

func (g *RedisCompletionGuard) Claim(ctx context.Context, stateToken string, ttl time.Duration) (bool, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := g.rdb.SetNX(ctx, completionKey(stateToken), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx completion: %w", err)
	}
	return ok, nil
}

func (g *RedisCompletionGuard) Release(ctx context.Context, stateToken string) error {
	return g.rdb.Del(ctx, completionKey(stateToken)).Err()
}

func completionKey(stateToken string) string {
	sum := sha256.Sum256([]byte(stateToken))
	return config.CacheKey.AssessmentCompletionKey(hex.EncodeToString(sum[:]))
}

// RedisVerdictQueue hands verdicts to the persistence worker.
type RedisVerdictQueue struct {
	rdb *redis.Client
}

// NewRedisVerdictQueue creates a new RedisVerdictQueue.
func NewRedisVerdictQueue(rdb *redis.Client) *RedisVerdictQueue {
	return &RedisVerdictQueue{rdb: rdb}
}

// Publish pushes one record onto the persist queue.
func (q *RedisVerdictQueue) Publish(ctx context.Context, rec model.VerdictRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistVerdictsQueue, raw).Err(); err != nil {
		return fmt.Errorf("push verdict: %w", err)
	}
	return nil
}
