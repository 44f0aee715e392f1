package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates no fresh entry exists for the requested key
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Get retrieves the entry for key if one exists and is still fresh.
// A stale entry found during the lookup is deleted and reported as a
// miss; this is the only eviction path.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	cacheKey := key.String()

	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsStale() {
		if err := m.Delete(ctx, key); err == nil {
			CacheEvictions.Inc()
		}
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.Inc()

	return &entry, nil
}

// Set inserts or fully replaces the entry for key. Last write wins.
// Entries are stored without a server-side expiry: staleness is decided
// from the entry's own CachedAt and TTL at read time, so an unread entry
// lingers until the next lookup evicts it.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	cacheKey := key.String()

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, cacheKey, data, 0).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	cacheKey := key.String()

	if err := m.redis.Del(ctx, cacheKey).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// EntryStat summarizes the freshness of one cached entry.
type EntryStat struct {
	Key     string        `json:"key"`
	Age     time.Duration `json:"age"`
	TTL     time.Duration `json:"ttl"`
	Fresh   bool          `json:"fresh"`
	Created time.Time     `json:"created_at"`
}

// Stats is a diagnostic snapshot of the cache contents.
type Stats struct {
	TotalEntries int         `json:"total_entries"`
	FreshEntries int         `json:"fresh_entries"`
	Detail       []EntryStat `json:"detail"`
}

// statsDetailLimit caps the per-entry detail in a Stats snapshot.
const statsDetailLimit = 20

// Stats walks the keyspace and reports entry counts and freshness.
// Non-authoritative: the scan is not atomic with concurrent writes and
// the result is meant for observability only. Keys that don't hold cache
// entries (e.g. credit telemetry sharing the same database) are skipped.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	iter := m.redis.Scan(ctx, 0, "*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := m.redis.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil || entry.CachedAt.IsZero() {
			continue
		}

		stats.TotalEntries++
		if !entry.IsStale() {
			stats.FreshEntries++
		}

		key := iter.Val()
		if len(key) > 50 {
			key = key[:50]
		}
		stats.Detail = append(stats.Detail, EntryStat{
			Key:     key,
			Age:     entry.Age(),
			TTL:     entry.TTL,
			Fresh:   !entry.IsStale(),
			Created: entry.CachedAt,
		})
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("stats").Inc()
		return nil, fmt.Errorf("redis scan: %w", err)
	}

	sort.Slice(stats.Detail, func(i, j int) bool {
		return stats.Detail[i].Created.After(stats.Detail[j].Created)
	})
	if len(stats.Detail) > statsDetailLimit {
		stats.Detail = stats.Detail[:statsDetailLimit]
	}

	return stats, nil
}
