// Package cache keeps job statistics in Redis between mutations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/matching"
	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultStatsTTL bounds how long unused stats are kept.
const DefaultStatsTTL = 10 * time.Minute

// generationTTL outlives every stats entry, so a counter that expires and
// restarts at zero never meets an entry from its previous life.
const generationTTL = 24 * time.Hour

const defaultPrefix = "matchengine:stats"

// client is the subset of redis.Cmdable the cache uses.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// StatsCache is a matching.StatsCache backed by Redis. Each job has a
// generation counter; stats are stored under the generation they were
// computed in, and Invalidate bumps the counter instead of deleting.
type StatsCache struct {
	client client
	prefix string
	ttl    time.Duration
}

var _ matching.StatsCache = (*StatsCache)(nil)

// NewStatsCache creates a stats cache on an existing client.
func NewStatsCache(c client, prefix string, ttl time.Duration) *StatsCache {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &StatsCache{client: c, prefix: prefix, ttl: ttl}
}

func (c *StatsCache) genKey(tenantID, jobID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s:gen", c.prefix, tenantID, jobID)
}

func (c *StatsCache) key(tenantID, jobID uuid.UUID, gen int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", c.prefix, tenantID, jobID, gen)
}

func (c *StatsCache) generation(ctx context.Context, tenantID, jobID uuid.UUID) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey(tenantID, jobID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

// Get returns the stats cached for the current generation. A missing key is
// a miss, not an error; the generation is returned either way.
func (c *StatsCache) Get(ctx context.Context, tenantID, jobID uuid.UUID) (*types.JobStats, int64, bool, error) {
	gen, err := c.generation(ctx, tenantID, jobID)
	if err != nil {
		return nil, 0, false, err
	}

	raw, err := c.client.Get(ctx, c.key(tenantID, jobID, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, fmt.Errorf("redis get: %w", err)
	}

	var stats types.JobStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, gen, false, fmt.Errorf("decode cached stats: %w", err)
	}
	if stats.TopCandidates == nil {
		stats.TopCandidates = []types.Match{}
	}
	return &stats, gen, true, nil
}

// Set stores stats under gen for the configured TTL. Stats for a generation
// that has since been invalidated are written but never read.
func (c *StatsCache) Set(ctx context.Context, tenantID, jobID uuid.UUID, gen int64, stats *types.JobStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := c.client.Set(ctx, c.key(tenantID, jobID, gen), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return c.touchGeneration(ctx, tenantID, jobID)
}

// Invalidate moves the job to a new generation.
func (c *StatsCache) Invalidate(ctx context.Context, tenantID, jobID uuid.UUID) error {
	key := c.genKey(tenantID, jobID)
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis incr: %w", err)
	}
	return c.touchGeneration(ctx, tenantID, jobID)
}

// touchGeneration keeps the counter alive longer than any entry written
// under it. Expire on a missing counter is a no-op.
func (c *StatsCache) touchGeneration(ctx context.Context, tenantID, jobID uuid.UUID) error {
	if err := c.client.Expire(ctx, c.genKey(tenantID, jobID), generationTTL).Err(); err != nil {
		return fmt.Errorf("redis expire: %w", err)
	}
	return nil
}

// Connect opens a Redis client and verifies it answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}
