package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter caps how many commands one user may send per window. It is a
// fixed-window counter: the first command of a window creates the key and
// sets its expiry.
type RateLimiter struct {
	client RedisClient
	limit  int
	window time.Duration
}

// NewRateLimiter allows limit commands per window. A non-positive limit
// disables the check.
func NewRateLimiter(client RedisClient, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Allow counts one command from userID and reports whether it is within the limit.
func (r *RateLimiter) Allow(ctx context.Context, userID int64) (bool, error) {
	if r.limit <= 0 {
		return true, nil
	}
	key := commandKey(userID)
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("count command for %d: %w", userID, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window); err != nil {
			// a counter without expiry would lock the user out for good
			_ = r.client.Del(ctx, key)
			return false, fmt.Errorf("expire command counter for %d: %w", userID, err)
		}
	}
	return count <= int64(r.limit), nil
}

func commandKey(userID int64) string {
	return fmt.Sprintf("commands:%d", userID)
}
