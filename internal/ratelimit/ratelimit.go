// Package ratelimit enforces atomic hourly+daily request counters per
// tenant in Redis, following the INCR+EXPIRE shape of the teacher's login
// rate limiter, generalized from a single counter to the two-bucket policy.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Scope identifies which bucket caused a denial.
type Scope string

const (
	ScopeHourly Scope = "hourly"
	ScopeDaily  Scope = "daily"
)

// Result is the outcome of a Check call.
type Result struct {
	Allowed        bool
	RemainingHour  int
	RemainingDay   int
	RetryAfter     time.Duration
	DeniedScope    Scope
}

// Limiter checks and increments per-tenant rate counters.
type Limiter struct {
	rdb *redis.Client
}

// New creates a Limiter backed by rdb.
func New(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

func hourKey(tenantID string, t time.Time) string {
	return fmt.Sprintf("ratelimit:%s:hour:%s", tenantID, t.UTC().Format("2006010215"))
}

func dayKey(tenantID string, t time.Time) string {
	return fmt.Sprintf("ratelimit:%s:day:%s", tenantID, t.UTC().Format("20060102"))
}

// Check increments both the hourly and daily counters for tenantID at time
// now and reports whether the request is admitted. The increment itself is
// a single atomic Redis INCR per bucket, so two concurrent requests for the
// same tenant always observe distinct counter values (spec §5 ordering
// guarantee); the EXPIRE is set only on the bucket's first increment via
// ExpireNX, which never contends with the counting itself.
func (l *Limiter) Check(ctx context.Context, tenantID string, now time.Time, hourlyLimit, dailyLimit int) (Result, error) {
	hk := hourKey(tenantID, now)
	dk := dayKey(tenantID, now)

	pipe := l.rdb.TxPipeline()
	hourIncr := pipe.Incr(ctx, hk)
	dayIncr := pipe.Incr(ctx, dk)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("ratelimit: incrementing counters: %w", err)
	}

	if hourIncr.Val() == 1 {
		l.rdb.ExpireNX(ctx, hk, time.Hour)
	}
	if dayIncr.Val() == 1 {
		l.rdb.ExpireNX(ctx, dk, 24*time.Hour)
	}

	hourCount := int(hourIncr.Val())
	dayCount := int(dayIncr.Val())

	res := Result{
		RemainingHour: max0(hourlyLimit - hourCount),
		RemainingDay:  max0(dailyLimit - dayCount),
	}

	overHour := hourCount > hourlyLimit
	overDay := dayCount > dailyLimit
	if !overHour && !overDay {
		res.Allowed = true
		return res, nil
	}

	res.Allowed = false
	hourTTL, err := l.rdb.TTL(ctx, hk).Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: reading hour TTL: %w", err)
	}
	dayTTL, err := l.rdb.TTL(ctx, dk).Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: reading day TTL: %w", err)
	}

	// Denied returns the smaller of the two remaining intervals as
	// retry_after (spec §4.5), scoped to whichever bucket is actually over.
	switch {
	case overHour && overDay:
		if hourTTL <= dayTTL {
			res.RetryAfter, res.DeniedScope = hourTTL, ScopeHourly
		} else {
			res.RetryAfter, res.DeniedScope = dayTTL, ScopeDaily
		}
	case overHour:
		res.RetryAfter, res.DeniedScope = hourTTL, ScopeHourly
	default:
		res.RetryAfter, res.DeniedScope = dayTTL, ScopeDaily
	}

	return res, nil
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
