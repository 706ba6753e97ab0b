package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gosuda/trainhub/internal/domain"
)

const DefaultStrategyTTL = 10 * time.Minute

// StrategyCache shares resolved isolation strategies between processes so a
// fleet restart does not hit the tenants table once per process.
type StrategyCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (s *Store) StrategyCache(ttl time.Duration) *StrategyCache {
	if ttl <= 0 {
		ttl = DefaultStrategyTTL
	}
	return &StrategyCache{client: s.client, ttl: ttl}
}

type cachedStrategy struct {
	Kind   string `json:"kind"`
	Schema string `json:"schema,omitempty"`
}

func (c *StrategyCache) GetStrategy(ctx context.Context, tenantID string) (domain.Strategy, bool, error) {
	raw, err := c.client.Get(ctx, StrategyKey(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Strategy{}, false, nil
	}
	if err != nil {
		return domain.Strategy{}, false, fmt.Errorf("redis.StrategyCache.GetStrategy: %w", err)
	}

	var cs cachedStrategy
	if err := json.Unmarshal(raw, &cs); err != nil {
		return domain.Strategy{}, false, fmt.Errorf("redis.StrategyCache.GetStrategy: decode: %w", err)
	}

	return domain.Strategy{Kind: domain.IsolationStrategy(cs.Kind), Schema: cs.Schema}, true, nil
}

func (c *StrategyCache) SetStrategy(ctx context.Context, tenantID string, s domain.Strategy) error {
	raw, err := json.Marshal(cachedStrategy{Kind: string(s.Kind), Schema: s.Schema})
	if err != nil {
		return fmt.Errorf("redis.StrategyCache.SetStrategy: encode: %w", err)
	}

	if err := c.client.Set(ctx, StrategyKey(tenantID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis.StrategyCache.SetStrategy: %w", err)
	}
	return nil
}

// Invalidate drops a tenant's cached strategy, e.g. after a migration to a
// dedicated schema.
func (c *StrategyCache) Invalidate(ctx context.Context, tenantID string) error {
	if err := c.client.Del(ctx, StrategyKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("redis.StrategyCache.Invalidate: %w", err)
	}
	return nil
}
