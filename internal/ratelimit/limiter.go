// Package ratelimit provides a Redis-backed sliding window rate limiter
// for lead submissions.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"yardguard_backend/platform/apperr"
	"yardguard_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/idna"
)

const keyPrefix = "rate_limit:"

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Config provides limiter settings.
type Config interface {
	GetRateLimitMax() int
	GetRateLimitWindow() time.Duration
}

// Limiter is a sliding window rate limiter keyed by caller identity
// (normalized email). State lives in a Redis sorted set per identity so
// every API instance shares the same window.
type Limiter struct {
	rdb    redis.UniversalClient
	limit  int
	window time.Duration
	log    *logger.Logger
}

// New creates a limiter. rdb may be nil when Redis is not configured, in
// which case every check is allowed.
func New(rdb redis.UniversalClient, cfg Config, log *logger.Logger) *Limiter {
	return &Limiter{
		rdb:    rdb,
		limit:  cfg.GetRateLimitMax(),
		window: cfg.GetRateLimitWindow(),
		log:    log,
	}
}

// NormalizeKey lowercases an email identity and converts an
// internationalized domain to its ASCII form so the same mailbox always
// maps to the same limiter key.
func NormalizeKey(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(normalized, "@")
	if at < 0 {
		return normalized
	}
	domain, err := idna.Lookup.ToASCII(normalized[at+1:])
	if err != nil {
		return normalized
	}
	return normalized[:at+1] + domain
}

// CheckLimit records an attempt for the identity and reports whether it is
// within the window. Fails open: any Redis error allows the request and is
// logged, so a cache outage never blocks lead intake.
func (l *Limiter) CheckLimit(ctx context.Context, identity string) Result {
	if l.rdb == nil {
		return Result{Allowed: true, Remaining: l.limit}
	}

	key := keyPrefix + NormalizeKey(identity)
	now := time.Now()
	windowStart := now.Add(-l.window)

	// The attempt is recorded before counting, all in one transaction, so
	// concurrent submitters cannot slip past the limit between a read and a
	// write. Denied attempts still count against the window.
	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))
	// A uuid suffix keeps attempts in the same nanosecond as distinct
	// members; a bare timestamp would collapse them into one.
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d:%s", now.UnixNano(), uuid.NewString()),
	})
	countCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limiter unavailable, failing open", "error", err)
		return Result{Allowed: true, Remaining: l.limit}
	}

	count := int(countCmd.Val())
	if count > l.limit {
		oldest, err := l.rdb.ZRangeWithScores(ctx, key, 0, 0).Result()
		resetAt := now.Add(l.window)
		if err == nil && len(oldest) > 0 {
			resetAt = time.UnixMilli(int64(oldest[0].Score)).Add(l.window)
		}
		l.log.RateLimitExceeded(NormalizeKey(identity), "submission")
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	return Result{
		Allowed:   true,
		Remaining: l.limit - count,
		ResetAt:   now.Add(l.window),
	}
}

// Enforce runs CheckLimit and converts an exceeded window into a typed
// rate-limited error.
func (l *Limiter) Enforce(ctx context.Context, identity string) error {
	result := l.CheckLimit(ctx, identity)
	if result.Allowed {
		return nil
	}
	return apperr.RateLimited("submission limit reached, try again later").
		WithDetails(map[string]interface{}{
			"resetAt": result.ResetAt.UTC().Format(time.RFC3339),
		})
}
