// Package cache holds the fixed-window counters behind the applicant resend
// limit and the admin action limit. The database store serves a single
// instance; the Redis store shares counters when several API instances sit
// behind one load balancer.
package cache

import (
	"context"
	"time"
)

// CounterStore counts hits per key inside a fixed window. Keys are built by
// the rate limiter as "ratelimit:<scope>:<subject>", where scope is resend
// or admin.
type CounterStore interface {
	// IncrementWithTTL bumps the counter for key inside a window that starts
	// with the first hit, returning the count and the time left before the
	// window resets.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

var (
	_ CounterStore = (*DatabaseStore)(nil)
	_ CounterStore = (*RedisStore)(nil)
)
