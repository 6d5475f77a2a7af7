package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/exambot/internal/model"
	"github.com/kart-io/exambot/pkg/utils/json"
)

// QueryCacheConfig 查询缓存配置。
type QueryCacheConfig struct {
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// QueryCache 基于 Redis 的查询结果缓存。
type QueryCache struct {
	redis  *goredis.Client
	config *QueryCacheConfig

	// 进程内命中统计，重启后归零
	hits   atomic.Int64
	misses atomic.Int64
}

// NewQueryCache 创建查询缓存实例。
func NewQueryCache(redis *goredis.Client, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{}
	}
	if config.TTL <= 0 {
		config.TTL = time.Hour
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "exambot:query:"
	}
	return &QueryCache{
		redis:  redis,
		config: config,
	}
}

// cacheKey 基于问题生成缓存键（SHA256）。
func (c *QueryCache) cacheKey(question string) string {
	hash := sha256.Sum256([]byte(question))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// Get 从缓存获取查询结果。未命中或条目损坏时返回 (nil, nil)。
func (c *QueryCache) Get(ctx context.Context, question string) (*model.QueryResult, error) {
	key := c.cacheKey(question)

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			c.misses.Add(1)
			logger.Debugw("cache miss", "key", key)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var result model.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("dropping corrupt cache entry", "error", err.Error(), "key", key)
		_ = c.redis.Del(ctx, key).Err()
		c.misses.Add(1)
		return nil, nil
	}

	c.hits.Add(1)
	logger.Debugw("cache hit", "key", key, "answer_length", len(result.Answer))
	return &result, nil
}

// Set 将查询结果写入缓存。
func (c *QueryCache) Set(ctx context.Context, question string, result *model.QueryResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal query result: %w", err)
	}
	key := c.cacheKey(question)
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Clear 清除所有查询缓存，返回删除的键数量。
func (c *QueryCache) Clear(ctx context.Context) (int, error) {
	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("cache scan failed: %w", err)
	}

	logger.Infow("cleared query cache", "deleted_count", deleted)
	return deleted, nil
}

// GetStats 获取缓存统计信息。
func (c *QueryCache) GetStats(ctx context.Context) (map[string]any, error) {
	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()

	keyCount := 0
	for iter.Next(ctx) {
		keyCount++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	hits, misses := c.hits.Load(), c.misses.Load()
	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return map[string]any{
		"enabled":    true,
		"key_count":  keyCount,
		"hits":       hits,
		"misses":     misses,
		"hit_rate":   hitRate,
		"ttl":        c.config.TTL.String(),
		"key_prefix": c.config.KeyPrefix,
	}, nil
}
