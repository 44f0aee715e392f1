package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for credit telemetry.
var (
	creditsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pokepulse_api_credits_remaining",
		Help: "Credits remaining in the current upstream metering window",
	})

	creditsLimit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pokepulse_api_credits_limit",
		Help: "Total credits in the current upstream metering window",
	})

	creditObservationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokepulse_api_credit_observations_total",
		Help: "Total number of credit header observations recorded",
	})
)

// Tracker records upstream credit observations in Redis.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new credit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// UpdateFromHeaders records credit telemetry from an upstream response.
// A response without the remaining header is ignored; the other headers
// are optional and default to zero values.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get("X-RateLimit-Remaining")
	if remainStr == "" {
		// Header not present - error bodies and some endpoints omit it
		return nil
	}

	remaining, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse X-RateLimit-Remaining header: %w", err)
	}

	limit := 0
	if limitStr := headers.Get("X-RateLimit-Limit"); limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return fmt.Errorf("parse X-RateLimit-Limit header: %w", err)
		}
	}

	reset := headers.Get("X-RateLimit-Reset")

	now := time.Now()
	state := &CreditState{
		Limit:      limit,
		Remaining:  remaining,
		Reset:      reset,
		LastUpdate: now,
	}

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyLimit, limit, 0)
	pipe.Set(ctx, RedisKeyRemaining, remaining, 0)
	pipe.Set(ctx, RedisKeyReset, reset, 0)
	pipe.Set(ctx, RedisKeyLastUpdate, now.Format(time.RFC3339Nano), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store credit state in redis: %w", err)
	}

	creditsRemaining.Set(float64(remaining))
	if limit > 0 {
		creditsLimit.Set(float64(limit))
	}
	creditObservationsTotal.Inc()

	if state.IsLow() {
		t.logger.Warn().
			Int("remaining", remaining).
			Int("limit", limit).
			Str("reset", reset).
			Msg("Upstream API credits running low")
	} else {
		t.logger.Debug().
			Int("remaining", remaining).
			Int("limit", limit).
			Msg("Credit state updated")
	}

	return nil
}

// State retrieves the last recorded credit observation.
// Returns nil when no observation has been recorded yet.
func (t *Tracker) State(ctx context.Context) (*CreditState, error) {
	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Int()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credits remaining: %w", err)
	}

	limit, err := t.redis.Get(ctx, RedisKeyLimit).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get credits limit: %w", err)
	}

	reset, err := t.redis.Get(ctx, RedisKeyReset).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get credits reset: %w", err)
	}

	state := &CreditState{
		Limit:     limit,
		Remaining: remaining,
		Reset:     reset,
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}
	if lastUpdateStr != "" {
		lastUpdate, err := time.Parse(time.RFC3339Nano, lastUpdateStr)
		if err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
		state.LastUpdate = lastUpdate
	}

	return state, nil
}
