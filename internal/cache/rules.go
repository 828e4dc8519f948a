package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/redis/go-redis/v9"
)

const bundleKeyPrefix = "rules:bundles:"

// BundleSource lists the active bundles priced in a currency.
type BundleSource interface {
	ActiveBundles(ctx context.Context, currency string) ([]domain.BundleRule, error)
}

// RuleCache serves bundle snapshots from redis and falls back to the source on
// a miss or a redis failure.
type RuleCache struct {
	client *redis.Client
	source BundleSource
	ttl    time.Duration
	logger *slog.Logger
}

func NewRuleCache(client *redis.Client, source BundleSource, ttl time.Duration, logger *slog.Logger) *RuleCache {
	return &RuleCache{client: client, source: source, ttl: ttl, logger: logger}
}

func bundleKey(currency string) string {
	return bundleKeyPrefix + currency
}

func (c *RuleCache) ActiveBundles(ctx context.Context, currency string) ([]domain.BundleRule, error) {
	key := bundleKey(currency)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rules []domain.BundleRule
		if err := json.Unmarshal(data, &rules); err == nil {
			return rules, nil
		}
		c.logger.Warn("discarding undecodable bundle snapshot", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("rule cache read failed", "key", key, "error", err)
	}

	rules, err := c.source.ActiveBundles(ctx, currency)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bundle snapshot: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("rule cache write failed", "key", key, "error", err)
	}
	return rules, nil
}

// Invalidate drops every cached bundle snapshot.
func (c *RuleCache) Invalidate(ctx context.Context) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, bundleKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan rule cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate rule cache: %w", err)
	}
	return nil
}
