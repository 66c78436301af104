package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"medication-reminder-bot/internal/domain/model"
	"medication-reminder-bot/internal/domain/ports/repository"
	"medication-reminder-bot/internal/infra/metrics"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

var _ repository.StreakRepository = (*StreakCache)(nil)

// StreakCache is a read-through cache for GetStreak. Writes go to the inner
// repository first and then store the new value in redis. A read miss only
// fills the key when it is still absent, so a fill that raced a write never
// replaces the written value.
type StreakCache struct {
	inner repository.StreakRepository
	cache RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

// DefaultStreakTTL bounds how long a cached streak can lag the store.
const DefaultStreakTTL = 10 * time.Minute

func NewStreakCache(inner repository.StreakRepository, cache RedisClient, ttl time.Duration, logger *zerolog.Logger) *StreakCache {
	if ttl <= 0 {
		ttl = DefaultStreakTTL
	}
	compLog := logger.With().Str("component", "StreakCache").Logger()
	return &StreakCache{inner: inner, cache: cache, ttl: ttl, log: &compLog}
}

func streakKey(userID int64) string { return fmt.Sprintf("streak:%d", userID) }

func (c *StreakCache) GetStreak(ctx context.Context, tx repository.Tx, userID int64) (int, error) {
	key := streakKey(userID)
	val, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		if n, convErr := strconv.Atoi(val); convErr == nil {
			metrics.ObserveCacheLookup("streak", true, nil)
			return n, nil
		}
		metrics.ObserveCacheLookup("streak", false, nil)
	case errors.Is(err, redis.Nil):
		metrics.ObserveCacheLookup("streak", false, nil)
	default:
		metrics.ObserveCacheLookup("streak", false, err)
		c.log.Warn().Err(err).Str("key", key).Msg("streak cache read failed")
	}

	n, err := c.inner.GetStreak(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	if _, err := c.cache.SetNX(ctx, key, n, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("streak cache fill failed")
	}
	return n, nil
}

func (c *StreakCache) SetStreak(ctx context.Context, tx repository.Tx, userID int64, value int, at time.Time) error {
	if err := c.inner.SetStreak(ctx, tx, userID, value, at); err != nil {
		return err
	}
	c.store(ctx, userID, value)
	return nil
}

func (c *StreakCache) IncrementStreak(ctx context.Context, tx repository.Tx, userID int64, at time.Time) (int, error) {
	n, err := c.inner.IncrementStreak(ctx, tx, userID, at)
	if err != nil {
		return 0, err
	}
	c.store(ctx, userID, n)
	return n, nil
}

func (c *StreakCache) FindByUserID(ctx context.Context, tx repository.Tx, userID int64) (*model.UserStreak, error) {
	return c.inner.FindByUserID(ctx, tx, userID)
}

// store writes the value just persisted. If that fails the key is dropped
// so the next read goes to the store.
func (c *StreakCache) store(ctx context.Context, userID int64, value int) {
	key := streakKey(userID)
	err := c.cache.Set(ctx, key, value, c.ttl)
	if err == nil {
		return
	}
	c.log.Warn().Err(err).Int64("user_id", userID).Msg("streak cache write failed")
	if err := c.cache.Del(ctx, key); err != nil {
		c.log.Warn().Err(err).Int64("user_id", userID).Msg("streak cache invalidation failed")
	}
}
