// Package query is the façade over the cache and the upstream client.
// Each logical query derives its cache key, serves a fresh entry when
// one exists, and otherwise fetches from upstream (once for simple
// queries, via the aggregator for the popular composite) before writing
// the result back with the TTL of its query class.
package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/pokepulse/pokepulse-backend/pkg/aggregate"
	"github.com/pokepulse/pokepulse-backend/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Cache TTLs per query class. Aggressive on purpose: every upstream
// call burns a paid API credit.
const (
	// TTLSets covers the sets listing.
	TTLSets = 24 * time.Hour

	// TTLCards covers card listings without price history.
	TTLCards = 12 * time.Hour

	// TTLDetail covers card queries that include price history.
	TTLDetail = 6 * time.Hour

	// TTLPopular covers the curated popular composite.
	TTLPopular = 24 * time.Hour
)

// Service answers logical pricing queries from cache or upstream.
type Service struct {
	cache    *cache.Manager
	upstream aggregate.Fetcher
	logger   zerolog.Logger
}

// NewService creates a query service over the given cache and upstream
// fetcher. Both are injected explicitly; the service holds no ambient
// state.
func NewService(cacheManager *cache.Manager, upstream aggregate.Fetcher) *Service {
	return &Service{
		cache:    cacheManager,
		upstream: upstream,
		logger:   log.With().Str("component", "query-service").Logger(),
	}
}

// Sets answers the sets listing, cached for 24h.
func (s *Service) Sets(ctx context.Context, params url.Values) (map[string]any, int) {
	return s.simple(ctx, "sets", params, TTLSets)
}

// Cards answers card listings and detail queries. Queries that include
// price history get the shorter detail TTL.
func (s *Service) Cards(ctx context.Context, params url.Values) (map[string]any, int) {
	ttl := TTLCards
	if params.Get("includeHistory") == "true" {
		ttl = TTLDetail
	}
	return s.simple(ctx, "cards", params, ttl)
}

// CardDetail answers a single-card lookup with price history. The
// identifier is required; its absence is a caller error and nothing is
// fetched.
func (s *Service) CardDetail(ctx context.Context, params url.Values) (map[string]any, int) {
	cardID := params.Get("id")
	if cardID == "" {
		cardID = params.Get("tcgPlayerId")
	}
	if cardID == "" {
		return map[string]any{"error": "id required"}, http.StatusBadRequest
	}

	days := params.Get("days")
	if days == "" {
		days = "30"
	}

	detailParams := url.Values{}
	detailParams.Set("tcgPlayerId", cardID)
	detailParams.Set("includeHistory", "true")
	detailParams.Set("days", days)

	return s.Cards(ctx, detailParams)
}

// Popular answers the curated popular composite. On a miss the fixed
// query list is aggregated regardless of any caller-supplied
// parameters, and the composite is cached for 24h.
func (s *Service) Popular(ctx context.Context) (map[string]any, int) {
	if payload, ok := s.cachedPayload(ctx, cache.PopularKey); ok {
		return payload, http.StatusOK
	}

	result := aggregate.Popular(ctx, aggregate.PopularQueries, s.upstream, s.logger)
	s.storePayload(ctx, cache.PopularKey, result, TTLPopular)

	return result, http.StatusOK
}

// simple answers a single-endpoint query: cache, else one upstream
// fetch, cached only on success.
func (s *Service) simple(ctx context.Context, endpoint string, params url.Values, ttl time.Duration) (map[string]any, int) {
	key := cache.Key{Endpoint: endpoint, Params: params}

	if payload, ok := s.cachedPayload(ctx, key); ok {
		return payload, http.StatusOK
	}

	payload, status := s.upstream.Fetch(ctx, endpoint, params)
	if status == http.StatusOK {
		s.storePayload(ctx, key, payload, ttl)
	}

	return payload, status
}

// cachedPayload looks up a fresh entry and tags it as served from
// cache. Cache errors degrade to a miss.
func (s *Service) cachedPayload(ctx context.Context, key cache.Key) (map[string]any, bool) {
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		if err != cache.ErrCacheMiss {
			s.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
		}
		return nil, false
	}

	var payload map[string]any
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Corrupt cached payload")
		return nil, false
	}

	payload["_cached"] = true

	s.logger.Debug().
		Str("key", key.String()).
		Dur("age", entry.Age()).
		Msg("Cache hit")

	return payload, true
}

// storePayload writes a payload back to the cache. Write failures are
// logged and swallowed: the response degrades to uncached.
func (s *Service) storePayload(ctx context.Context, key cache.Key, payload map[string]any, ttl time.Duration) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to marshal payload for cache")
		return
	}

	if err := s.cache.Set(ctx, key, cache.NewEntry(data, ttl)); err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache payload")
		return
	}

	s.logger.Debug().
		Str("key", key.String()).
		Dur("ttl", ttl).
		Msg("Cached payload")
}
