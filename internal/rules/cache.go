package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pilarhub/eventcore/internal/database"
)

// DefaultCacheTTL is how long a user's rule set stays in Redis.
const DefaultCacheTTL = 5 * time.Minute

// CacheKey returns the Redis key holding a user's enabled rules.
func CacheKey(userID string) string {
	return "rules:user:" + userID
}

// redisClient is the subset of *redis.Client the cache uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedRuleStore caches ListEnabledRules per user in Redis. Redis failures
// fall through to the underlying store; stale entries expire after the TTL or
// on Invalidate.
type CachedRuleStore struct {
	store  RuleStore
	client redisClient
	ttl    time.Duration
}

// NewCachedRuleStore wraps store with a Redis cache. ttl <= 0 uses DefaultCacheTTL.
func NewCachedRuleStore(store RuleStore, client redisClient, ttl time.Duration) *CachedRuleStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedRuleStore{
		store:  store,
		client: client,
		ttl:    ttl,
	}
}

// ListEnabledRules serves the user's rules from Redis when cached.
func (c *CachedRuleStore) ListEnabledRules(ctx context.Context, userID string) ([]*database.Rule, error) {
	key := CacheKey(userID)

	data, err := c.client.Get(ctx, key).Result()
	switch {
	case err == redis.Nil:
	case err != nil:
		slog.Warn("Rule cache read failed, using database", "key", key, "error", err)
	default:
		var rules []*database.Rule
		if err := json.Unmarshal([]byte(data), &rules); err == nil {
			return rules, nil
		}
		slog.Warn("Discarding corrupt rule cache entry", "key", key)
	}

	rules, err := c.store.ListEnabledRules(ctx, userID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rules: %w", err)
	}
	if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
		slog.Warn("Rule cache write failed", "key", key, "error", err)
	}
	return rules, nil
}

// GetRule reads through to the store.
func (c *CachedRuleStore) GetRule(ctx context.Context, ruleID string) (*database.Rule, error) {
	return c.store.GetRule(ctx, ruleID)
}

// RecordRuleTriggered writes through to the store. Statistics do not affect
// evaluation, so the cache entry is kept.
func (c *CachedRuleStore) RecordRuleTriggered(ctx context.Context, ruleID string, at time.Time) error {
	return c.store.RecordRuleTriggered(ctx, ruleID, at)
}

// Invalidate drops a user's cached rule set. Call it after rules are edited.
func (c *CachedRuleStore) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, CacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate rule cache: %w", err)
	}
	return nil
}
