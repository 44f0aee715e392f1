package cache

import (
	"net/url"
	"strings"
)

// Key identifies a cached upstream response.
type Key struct {
	// Endpoint is the upstream endpoint name (e.g. "sets", "cards").
	Endpoint string

	// Params are the query parameters sent upstream.
	Params url.Values
}

// PopularKey is the fixed singleton key for the curated popular composite.
var PopularKey = Key{Endpoint: "popular:v2"}

// String generates a deterministic cache key string.
// Format: endpoint:urlencoded-params
//
// Parameters are canonicalized with url.Values.Encode, which sorts by
// name and percent-encodes names and values, so two maps that differ
// only in iteration order produce identical keys, distinct mappings
// never collide, and every value of a repeated parameter contributes.
// An empty parameter map yields just the endpoint name.
//
// Example:
//   cards:limit=8&search=charizard
func (k Key) String() string {
	endpoint := strings.Trim(k.Endpoint, ":")
	if len(k.Params) == 0 {
		return endpoint
	}
	return endpoint + ":" + k.Params.Encode()
}
