// Package ratelimit tracks upstream API credit telemetry.
// The pricing API reports its metering through X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset response headers; the
// tracker records the latest observation so operators can watch credit
// burn. It never gates requests: upstream errors are forwarded to the
// caller untouched.
package ratelimit

import (
	"time"
)

// Redis keys for credit telemetry storage.
const (
	RedisKeyLimit      = "ppt:credits:limit"
	RedisKeyRemaining  = "ppt:credits:remaining"
	RedisKeyReset      = "ppt:credits:reset"
	RedisKeyLastUpdate = "ppt:credits:last_update"
)

// RemainingWarningThreshold triggers a warning log when the remaining
// credit count observed from upstream falls below it.
const RemainingWarningThreshold = 25

// CreditState is the most recent credit observation from upstream.
// Shared across all client instances via Redis.
type CreditState struct {
	// Limit is the total credits in the current metering window, from
	// the X-RateLimit-Limit header.
	Limit int `json:"limit"`

	// Remaining is the credits left in the window, from the
	// X-RateLimit-Remaining header.
	Remaining int `json:"remaining"`

	// Reset is the X-RateLimit-Reset header verbatim. The upstream does
	// not document its format, so it is stored and reported opaquely.
	Reset string `json:"reset"`

	// LastUpdate is when this observation was recorded.
	LastUpdate time.Time `json:"last_update"`
}

// IsLow returns true when remaining credits dropped below the warning
// threshold.
func (s *CreditState) IsLow() bool {
	return s.Remaining < RemainingWarningThreshold
}

// IsStale returns true if the observation is older than maxAge.
func (s *CreditState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}
