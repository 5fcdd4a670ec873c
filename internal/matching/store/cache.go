// internal/matching/store/cache.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"tax-matching-workers/internal/common/logger"
	"tax-matching-workers/internal/common/metrics"
	"tax-matching-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix      = "matching:snapshot:"
	generationKeyPrefix = "matching:snapshot-gen:"
	DefaultCacheTTL     = 5 * time.Minute
	minGenerationTTL    = 24 * time.Hour
)

// Backend is the authoritative snapshot store behind the cache.
type Backend interface {
	Replace(ctx context.Context, snapshot *models.MatchSnapshot) error
	ReplaceIfAbsent(ctx context.Context, snapshot *models.MatchSnapshot) (bool, error)
	Read(ctx context.Context, sourceID string) (*models.MatchSnapshot, error)
	Stats(ctx context.Context, from, to *time.Time) (*models.MatchingStats, error)
}

// Cache is a read-through Redis cache in front of a Backend. Redis failures
// are logged and never fail a call; the backend stays the source of truth.
//
// Every source has a generation counter that writes bump after the backend
// commits. Entries carry the generation seen before their backend read, and
// an entry whose generation is behind the counter is treated as a miss, so a
// read that raced a write cannot serve its older snapshot.
type Cache struct {
	backend       Backend
	client        redis.Cmdable
	ttl           time.Duration
	generationTTL time.Duration
	logger        logger.Logger
}

type cacheEntry struct {
	Generation int64                 `json:"generation"`
	Snapshot   *models.MatchSnapshot `json:"snapshot"`
}

func NewCache(backend Backend, client redis.Cmdable, ttl time.Duration, log logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	generationTTL := minGenerationTTL
	if 2*ttl > generationTTL {
		generationTTL = 2 * ttl
	}
	return &Cache{
		backend:       backend,
		client:        client,
		ttl:           ttl,
		generationTTL: generationTTL,
		logger:        log.Named("matching.cache"),
	}
}

func cacheKey(sourceID string) string {
	return cacheKeyPrefix + sourceID
}

func generationKey(sourceID string) string {
	return generationKeyPrefix + sourceID
}

func (c *Cache) Read(ctx context.Context, sourceID string) (*models.MatchSnapshot, error) {
	key := cacheKey(sourceID)
	populate := false
	var generation int64

	values, err := c.client.MGet(ctx, key, generationKey(sourceID)).Result()
	if err == nil {
		generation, err = parseGeneration(values[1])
	}

	switch {
	case err != nil:
		metrics.MatchingCacheRequests.WithLabelValues("error").Inc()
		c.logger.Warn("cache read failed, using backing store", map[string]interface{}{
			"key":   key,
			"error": err,
		})
	case values[0] == nil:
		metrics.MatchingCacheRequests.WithLabelValues("miss").Inc()
		populate = true
	default:
		raw, _ := values[0].(string)
		var entry cacheEntry
		if jsonErr := json.Unmarshal([]byte(raw), &entry); jsonErr != nil || entry.Snapshot == nil {
			metrics.MatchingCacheRequests.WithLabelValues("error").Inc()
			c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{
				"key":   key,
				"error": jsonErr,
			})
		} else if entry.Generation == generation {
			metrics.MatchingCacheRequests.WithLabelValues("hit").Inc()
			return entry.Snapshot, nil
		} else {
			metrics.MatchingCacheRequests.WithLabelValues("stale").Inc()
		}
		populate = true
	}

	snap, err := c.backend.Read(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if populate && !snap.IsEmpty() {
		c.store(ctx, key, cacheEntry{Generation: generation, Snapshot: snap})
	}
	return snap, nil
}

func (c *Cache) Replace(ctx context.Context, snapshot *models.MatchSnapshot) error {
	if err := c.backend.Replace(ctx, snapshot); err != nil {
		return err
	}
	c.invalidate(ctx, snapshot.SourceID)
	return nil
}

func (c *Cache) ReplaceIfAbsent(ctx context.Context, snapshot *models.MatchSnapshot) (bool, error) {
	created, err := c.backend.ReplaceIfAbsent(ctx, snapshot)
	if err != nil || !created {
		return created, err
	}
	c.invalidate(ctx, snapshot.SourceID)
	return true, nil
}

func (c *Cache) Stats(ctx context.Context, from, to *time.Time) (*models.MatchingStats, error) {
	return c.backend.Stats(ctx, from, to)
}

func (c *Cache) store(ctx context.Context, key string, entry cacheEntry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("failed to encode snapshot for cache", map[string]interface{}{"key": key, "error": err})
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to populate cache", map[string]interface{}{"key": key, "error": err})
	}
}

// invalidate bumps the generation before dropping the entry. A reader that
// fetched the old snapshot before the commit then writes an entry tagged
// with the old generation, which the next Read rejects.
func (c *Cache) invalidate(ctx context.Context, sourceID string) {
	key := cacheKey(sourceID)
	genKey := generationKey(sourceID)

	if err := c.client.Incr(ctx, genKey).Err(); err != nil {
		c.logger.Warn("failed to bump snapshot generation", map[string]interface{}{"key": genKey, "error": err})
	} else if err := c.client.Expire(ctx, genKey, c.generationTTL).Err(); err != nil {
		c.logger.Warn("failed to set generation expiry", map[string]interface{}{"key": genKey, "error": err})
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("failed to invalidate cached snapshot", map[string]interface{}{"key": key, "error": err})
	}
}

func parseGeneration(v interface{}) (int64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected generation value %T", v)
	}
	return strconv.ParseInt(s, 10, 64)
}
