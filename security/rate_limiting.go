package security

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-marketplace/internal/status"
)

// ReferenceLimiter caps how many payable references can be generated per
// installment inside a rolling window. State lives in Redis so the cap
// holds across instances and expires on its own.
type ReferenceLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewReferenceLimiter(redisClient *redis.Client, limit int, window time.Duration) *ReferenceLimiter {
	return &ReferenceLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
	}
}

// Allow consumes one generation attempt for the installment. The counter is
// created with a TTL on first use; when Redis is unreachable the request is
// let through rather than blocking paying customers.
func (r *ReferenceLimiter) Allow(ctx context.Context, installmentID string) error {
	key := fmt.Sprintf("ratelimit:reference:%s", installmentID)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("rate limiter unavailable, allowing request", "installment_id", installmentID, "error", err)
		return nil
	}
	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}
	if count > int64(r.limit) {
		return fmt.Errorf("%w: %d reference generations within %s", status.ErrRateLimited, r.limit, r.window)
	}
	return nil
}

// Remaining reports how many attempts are left in the current window.
func (r *ReferenceLimiter) Remaining(ctx context.Context, installmentID string) int {
	key := fmt.Sprintf("ratelimit:reference:%s", installmentID)

	count, err := r.redis.Get(ctx, key).Int()
	if err != nil {
		return r.limit
	}
	if count >= r.limit {
		return 0
	}
	return r.limit - count
}
