package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/config"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
)

const (
	resultKeyPrefix     = "forecast:result"
	resultScanBatchSize = 100
)

// ResultCache stores completed SKU results keyed by a hash of the input
// and the resolved config.
type ResultCache interface {
	Get(ctx context.Context, in domain.SKUInput, cfg domain.PlanConfig) (*domain.SKUResult, bool, error)
	Set(ctx context.Context, in domain.SKUInput, cfg domain.PlanConfig, res domain.SKUResult) error
	InvalidateAll(ctx context.Context) error
}

type redisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopResultCache struct{}

// NewResultCache connects to redis when caching is enabled.
func NewResultCache(cfg config.CacheConfig) (ResultCache, error) {
	if !cfg.Enabled {
		return &noopResultCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return NewRedisResultCache(client, ttl), nil
}

// NewRedisResultCache wraps an existing client.
func NewRedisResultCache(client *redis.Client, ttl time.Duration) ResultCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisResultCache{client: client, ttl: ttl}
}

func NewNoopResultCache() ResultCache {
	return &noopResultCache{}
}

func (c *redisResultCache) Get(ctx context.Context, in domain.SKUInput, cfg domain.PlanConfig) (*domain.SKUResult, bool, error) {
	key, err := ResultKey(in, cfg)
	if err != nil {
		return nil, false, err
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var res domain.SKUResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, false, fmt.Errorf("decode result cache: %w", err)
	}
	return &res, true, nil
}

func (c *redisResultCache) Set(ctx context.Context, in domain.SKUInput, cfg domain.PlanConfig, res domain.SKUResult) error {
	key, err := ResultKey(in, cfg)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisResultCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, resultKeyPrefix, resultScanBatchSize)
}

func (n *noopResultCache) Get(ctx context.Context, in domain.SKUInput, cfg domain.PlanConfig) (*domain.SKUResult, bool, error) {
	return nil, false, nil
}

func (n *noopResultCache) Set(ctx context.Context, in domain.SKUInput, cfg domain.PlanConfig, res domain.SKUResult) error {
	return nil
}

func (n *noopResultCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// ResultKey hashes the input together with the config it will be planned
// under. Struct fields encode in declaration order so the key is stable.
func ResultKey(in domain.SKUInput, cfg domain.PlanConfig) (string, error) {
	raw, err := json.Marshal(struct {
		Input  domain.SKUInput   `json:"input"`
		Config domain.PlanConfig `json:"config"`
	}{in, cfg})
	if err != nil {
		return "", fmt.Errorf("encode result key: %w", err)
	}
	sum := sha1.Sum(raw)
	return fmt.Sprintf("%s:%s:%s", resultKeyPrefix, in.ProductID, hex.EncodeToString(sum[:])), nil
}
