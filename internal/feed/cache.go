package feed

import (
	"context"
	"time"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/AdamBeresnev/dbc-bracket/internal/logging"
	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var cacheLogger = logging.GetZeroLogger("feed::cache", nil)

type Cache interface {
	Get(ctx context.Context, tag string) ([]bracket.HistoryEntry, bool)
	Set(ctx context.Context, tag string, entries []bracket.HistoryEntry)
	Delete(ctx context.Context, tag string)
}

type cachedHistory struct {
	entries   []bracket.HistoryEntry
	fetchedAt time.Time
}

// LRUCache keeps recent histories in process. Entries older than ttl are
// treated as misses.
type LRUCache struct {
	histories *lru.Cache
	ttl       time.Duration
	now       func() time.Time
}

func NewLRUCache(size int, ttl time.Duration) (*LRUCache, error) {
	histories, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to initialize history cache")
	}
	return &LRUCache{histories: histories, ttl: ttl, now: time.Now}, nil
}

func (c *LRUCache) Get(_ context.Context, tag string) ([]bracket.HistoryEntry, bool) {
	v, exists := c.histories.Get(tag)
	if !exists {
		return nil, false
	}
	h := v.(cachedHistory)
	if c.now().Sub(h.fetchedAt) > c.ttl {
		c.histories.Remove(tag)
		return nil, false
	}
	return h.entries, true
}

func (c *LRUCache) Set(_ context.Context, tag string, entries []bracket.HistoryEntry) {
	c.histories.Add(tag, cachedHistory{entries: entries, fetchedAt: c.now()})
}

func (c *LRUCache) Delete(_ context.Context, tag string) {
	c.histories.Remove(tag)
}

// RedisCache shares histories between instances.
type RedisCache struct {
	rdclient *redis.Client
	ttl      time.Duration
}

func NewRedisCache(addr string, pw string, db int, ttl time.Duration) *RedisCache {
	rdclient := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pw,
		DB:       db,
	})
	return &RedisCache{rdclient: rdclient, ttl: ttl}
}

func historyKey(tag string) string {
	return "battlelog|" + tag
}

func (c *RedisCache) Get(ctx context.Context, tag string) ([]bracket.HistoryEntry, bool) {
	raw, err := c.rdclient.Get(ctx, historyKey(tag)).Bytes()
	if err == redis.Nil {
		return nil, false
	} else if err != nil {
		cacheLogger.Warn().Err(err).Str(logging.TagKey, tag).Msg("Redis get failed.")
		return nil, false
	}
	var entries []bracket.HistoryEntry
	if err := jsoniter.Unmarshal(raw, &entries); err != nil {
		cacheLogger.Warn().Err(err).Str(logging.TagKey, tag).Msg("Cached history is corrupt.")
		return nil, false
	}
	return entries, true
}

func (c *RedisCache) Set(ctx context.Context, tag string, entries []bracket.HistoryEntry) {
	raw, err := jsoniter.Marshal(entries)
	if err != nil {
		return
	}
	if err := c.rdclient.Set(ctx, historyKey(tag), raw, c.ttl).Err(); err != nil {
		cacheLogger.Warn().Err(err).Str(logging.TagKey, tag).Msg("Redis set failed.")
	}
}

func (c *RedisCache) Delete(ctx context.Context, tag string) {
	if err := c.rdclient.Del(ctx, historyKey(tag)).Err(); err != nil {
		cacheLogger.Warn().Err(err).Str(logging.TagKey, tag).Msg("Redis delete failed.")
	}
}

func (c *RedisCache) Close() error {
	return c.rdclient.Close()
}

// CachedFeed serves repeated lookups from a cache. Only successful fetches
// are cached.
type CachedFeed struct {
	next  Feed
	cache Cache
}

func NewCachedFeed(next Feed, cache Cache) *CachedFeed {
	return &CachedFeed{next: next, cache: cache}
}

func (f *CachedFeed) FetchRecentHistory(ctx context.Context, tag string) ([]bracket.HistoryEntry, error) {
	if entries, ok := f.cache.Get(ctx, tag); ok {
		return entries, nil
	}
	entries, err := f.next.FetchRecentHistory(ctx, tag)
	if err != nil {
		return nil, err
	}
	f.cache.Set(ctx, tag, entries)
	return entries, nil
}

func (f *CachedFeed) Invalidate(ctx context.Context, tag string) {
	f.cache.Delete(ctx, tag)
}
