// Package cache implements the TTL cache in front of the pricing API.
//
// Keys are derived deterministically from an endpoint name and its query
// parameters, entries carry their own creation time and TTL, and eviction
// is lazy: a stale entry is removed when a lookup finds it, never by a
// background sweep. The TTL is chosen by the caller at write time, so the
// store itself knows nothing about query classes.
package cache
