// Package aggregate builds the curated "popular cards" composite by
// fanning out a fixed list of upstream search queries and merging their
// results into one deduplicated collection sorted by market price.
//
// Sub-queries run sequentially, in list order, each bounded only by the
// fetcher's own timeout. A failed sub-query is skipped, never retried:
// the composite degrades in completeness rather than failing outright.
// The package performs no caching; the caller wraps the result in a
// cache write.
package aggregate

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/rs/zerolog"
)

// SourceTag marks composite results built from the curated query list.
const SourceTag = "curated_popular"

// Fetcher performs one upstream query. Implemented by pkg/client.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params url.Values) (map[string]any, int)
}

// Query is one curated search against the cards endpoint.
type Query struct {
	Search    string
	Limit     string
	SortBy    string
	SortOrder string
}

// Params returns the query as upstream request parameters.
func (q Query) Params() url.Values {
	params := url.Values{}
	params.Set("search", q.Search)
	params.Set("limit", q.Limit)
	params.Set("sortBy", q.SortBy)
	params.Set("sortOrder", q.SortOrder)
	return params
}

// PopularQueries seeds the dashboard. Fetching all of them costs about
// ten API credits, so the composite is cached for a full day. The list
// order decides dedup precedence and the tie-break order of the result.
var PopularQueries = []Query{
	{Search: "charizard", Limit: "8", SortBy: "price", SortOrder: "desc"},
	{Search: "pikachu", Limit: "6", SortBy: "price", SortOrder: "desc"},
	{Search: "mewtwo", Limit: "4", SortBy: "price", SortOrder: "desc"},
	{Search: "lugia", Limit: "4", SortBy: "price", SortOrder: "desc"},
	{Search: "umbreon", Limit: "4", SortBy: "price", SortOrder: "desc"},
	{Search: "rayquaza", Limit: "4", SortBy: "price", SortOrder: "desc"},
	{Search: "gengar", Limit: "4", SortBy: "price", SortOrder: "desc"},
	{Search: "blastoise", Limit: "4", SortBy: "price", SortOrder: "desc"},
	{Search: "mew", Limit: "3", SortBy: "price", SortOrder: "desc"},
	{Search: "eevee", Limit: "3", SortBy: "price", SortOrder: "desc"},
}

// Card is the narrow view of an upstream card record the aggregator
// interprets. The raw payload passes through untouched; only the
// canonical identifier and market price are read locally.
type Card struct {
	// ID is the canonical identifier: the provider card id
	// (tcgPlayerId) when present, the generic id otherwise.
	ID string

	// MarketPrice is prices.market, with nil or missing treated as 0.
	MarketPrice float64

	// Raw is the card record exactly as upstream returned it.
	Raw map[string]any
}

// cardFromRaw extracts the interpreted fields from an upstream record.
// Returns ok=false when no usable identifier exists; such records are
// dropped from the composite.
func cardFromRaw(raw map[string]any) (Card, bool) {
	id := idString(raw["tcgPlayerId"])
	if id == "" {
		id = idString(raw["id"])
	}
	if id == "" {
		return Card{}, false
	}

	return Card{
		ID:          id,
		MarketPrice: marketPrice(raw),
		Raw:         raw,
	}, true
}

// idString coerces an identifier value to a string. Upstream mixes
// numeric and string ids across response shapes; both forms of the same
// id must collide so dedup works across sub-queries.
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

// marketPrice reads prices.market, treating a missing or null market
// variant as zero for comparison purposes.
func marketPrice(raw map[string]any) float64 {
	prices, ok := raw["prices"].(map[string]any)
	if !ok {
		return 0
	}
	market, ok := prices["market"].(float64)
	if !ok {
		return 0
	}
	return market
}

// Popular fetches every query in order and merges the results.
//
// Dedup is first-seen-wins on the canonical id across the whole run: a
// later duplicate is dropped even when it arrives from a different
// sub-query. The merged collection is stable-sorted by market price
// descending, so equal-price cards keep the order induced by the query
// list and each response's own ordering.
func Popular(ctx context.Context, queries []Query, fetcher Fetcher, logger zerolog.Logger) map[string]any {
	var cards []Card
	seen := make(map[string]struct{})

	for _, q := range queries {
		payload, status := fetcher.Fetch(ctx, "cards", q.Params())
		if status != http.StatusOK {
			logger.Warn().
				Str("search", q.Search).
				Int("status", status).
				Msg("Skipping failed popular sub-query")
			continue
		}

		list, ok := payload["data"].([]any)
		if !ok {
			logger.Warn().
				Str("search", q.Search).
				Msg("Popular sub-query response missing data list")
			continue
		}

		added := 0
		for _, item := range list {
			raw, ok := item.(map[string]any)
			if !ok {
				continue
			}
			card, ok := cardFromRaw(raw)
			if !ok {
				continue
			}
			if _, dup := seen[card.ID]; dup {
				continue
			}
			seen[card.ID] = struct{}{}
			cards = append(cards, card)
			added++
		}

		logger.Debug().
			Str("search", q.Search).
			Int("cards", added).
			Msg("Popular sub-query merged")
	}

	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].MarketPrice > cards[j].MarketPrice
	})

	data := make([]any, len(cards))
	for i, card := range cards {
		data[i] = card.Raw
	}

	logger.Info().
		Int("total", len(cards)).
		Int("queries", len(queries)).
		Msg("Popular composite built")

	return map[string]any{
		"data": data,
		"metadata": map[string]any{
			"total":  len(cards),
			"count":  len(cards),
			"source": SourceTag,
		},
	}
}
