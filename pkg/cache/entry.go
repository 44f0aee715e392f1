package cache

import (
	"encoding/json"
	"time"
)

// Entry represents one cached upstream payload.
type Entry struct {
	// Payload is the response body as stored; the store never inspects it.
	Payload json.RawMessage `json:"payload"`

	// CachedAt is when the payload was written.
	CachedAt time.Time `json:"cached_at"`

	// TTL is how long the payload stays fresh after CachedAt.
	TTL time.Duration `json:"ttl"`
}

// NewEntry creates an entry stamped with the current time.
func NewEntry(payload []byte, ttl time.Duration) *Entry {
	return &Entry{
		Payload:  payload,
		CachedAt: time.Now(),
		TTL:      ttl,
	}
}

// Age returns how long ago the entry was written.
func (e *Entry) Age() time.Duration {
	return time.Since(e.CachedAt)
}

// IsStale returns true once the entry has outlived its TTL.
// An entry at exactly its TTL is still fresh.
func (e *Entry) IsStale() bool {
	return e.Age() > e.TTL
}
