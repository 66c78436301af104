//go:build !integration

package redis_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-reminder-bot/internal/config"
	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/domain/model"
	"medication-reminder-bot/internal/domain/ports/repository"
	red "medication-reminder-bot/internal/infra/redis"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func setupTest(t *testing.T) (*miniredis.Miniredis, *red.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := red.NewClientFrom(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	t.Run("should connect with a plain address", func(t *testing.T) {
		c, err := red.NewClient(context.Background(), config.RedisConfig{URL: mr.Addr()}, testLogger())
		require.NoError(t, err)
		defer c.Close()
		assert.NoError(t, c.Ping(context.Background()))
	})

	t.Run("should connect with a redis url", func(t *testing.T) {
		c, err := red.NewClient(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr() + "/2"}, testLogger())
		require.NoError(t, err)
		defer c.Close()
		require.NoError(t, c.Set(context.Background(), "k", "v", 0))
		mr.Select(2)
		got, err := mr.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
	})

	t.Run("should reject a malformed url", func(t *testing.T) {
		_, err := red.NewClient(context.Background(), config.RedisConfig{URL: "redis://localhost:6379/not-a-db"}, testLogger())
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTest(t)
	locker := red.NewLocker(client)

	token, err := locker.TryLock(ctx, "dispatch:1:2026-03-10", 25*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = locker.TryLock(ctx, "dispatch:1:2026-03-10", 25*time.Hour)
	assert.ErrorIs(t, err, red.ErrLocked)

	// a different day is a different key
	_, err = locker.TryLock(ctx, "dispatch:1:2026-03-11", 25*time.Hour)
	assert.NoError(t, err)

	require.NoError(t, locker.Unlock(ctx, "dispatch:1:2026-03-10", "wrong-token"))
	assert.True(t, mr.Exists("dispatch:1:2026-03-10"), "foreign token must not release the lock")

	require.NoError(t, locker.Unlock(ctx, "dispatch:1:2026-03-10", token))
	assert.False(t, mr.Exists("dispatch:1:2026-03-10"))

	_, err = locker.TryLock(ctx, "short", time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = locker.TryLock(ctx, "short", time.Minute)
	assert.NoError(t, err, "expired lock should be free again")
}

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	locker := red.NewMemoryLocker(clock)

	token, err := locker.TryLock(ctx, "k", time.Hour)
	require.NoError(t, err)
	_, err = locker.TryLock(ctx, "k", time.Hour)
	assert.ErrorIs(t, err, red.ErrLocked)

	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()
	_, err = locker.TryLock(ctx, "k", time.Hour)
	assert.NoError(t, err, "expired entry should be released")

	assert.NoError(t, locker.Unlock(ctx, "k", token))
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("should limit within a window and reset after it", func(t *testing.T) {
		mr, client := setupTest(t)
		limiter := red.NewRateLimiter(client, 3, time.Minute)

		for i := 0; i < 3; i++ {
			ok, err := limiter.Allow(ctx, 42)
			require.NoError(t, err)
			assert.True(t, ok, "call %d should pass", i+1)
		}
		ok, err := limiter.Allow(ctx, 42)
		require.NoError(t, err)
		assert.False(t, ok, "fourth call should be limited")
		assert.Equal(t, time.Minute, mr.TTL("commands:42"))

		ok, err = limiter.Allow(ctx, 7)
		require.NoError(t, err)
		assert.True(t, ok, "other users keep their own window")

		mr.FastForward(time.Minute + time.Second)
		ok, err = limiter.Allow(ctx, 42)
		require.NoError(t, err)
		assert.True(t, ok, "window should reset")
	})

	t.Run("should allow everything without a limit", func(t *testing.T) {
		mr, client := setupTest(t)
		limiter := red.NewRateLimiter(client, 0, time.Minute)
		for i := 0; i < 5; i++ {
			ok, err := limiter.Allow(ctx, 42)
			require.NoError(t, err)
			assert.True(t, ok)
		}
		assert.False(t, mr.Exists("commands:42"))
	})

	t.Run("should report redis failures", func(t *testing.T) {
		mr, client := setupTest(t)
		limiter := red.NewRateLimiter(client, 3, time.Minute)
		mr.Close()
		_, err := limiter.Allow(ctx, 42)
		assert.Error(t, err)
	})
}

// countingRepo is an in-memory StreakRepository that counts reads.
type countingRepo struct {
	mu        sync.Mutex
	streaks   map[int64]int
	reads     int
	afterRead func()
}

var _ repository.StreakRepository = (*countingRepo)(nil)

func (r *countingRepo) GetStreak(ctx context.Context, tx repository.Tx, userID int64) (int, error) {
	r.mu.Lock()
	r.reads++
	n := r.streaks[userID]
	hook := r.afterRead
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return n, nil
}

func (r *countingRepo) SetStreak(ctx context.Context, tx repository.Tx, userID int64, value int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streaks[userID] = value
	return nil
}

func (r *countingRepo) IncrementStreak(ctx context.Context, tx repository.Tx, userID int64, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streaks[userID]++
	return r.streaks[userID], nil
}

func (r *countingRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID int64) (*model.UserStreak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.streaks[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &model.UserStreak{UserID: userID, Count: n}, nil
}

func TestStreakCache(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("should serve repeated reads from redis", func(t *testing.T) {
		_, client := setupTest(t)
		inner := &countingRepo{streaks: map[int64]int{42: 5}}
		cache := red.NewStreakCache(inner, client, time.Hour, testLogger())

		for i := 0; i < 3; i++ {
			n, err := cache.GetStreak(ctx, nil, 42)
			require.NoError(t, err)
			assert.Equal(t, 5, n)
		}
		assert.Equal(t, 1, inner.reads)
	})

	t.Run("should write through on increment and reset", func(t *testing.T) {
		mr, client := setupTest(t)
		inner := &countingRepo{streaks: map[int64]int{}}
		cache := red.NewStreakCache(inner, client, time.Hour, testLogger())

		n, _ := cache.GetStreak(ctx, nil, 42)
		assert.Equal(t, 0, n)
		assert.True(t, mr.Exists("streak:42"))

		n, err := cache.IncrementStreak(ctx, nil, 42, now)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		got, _ := mr.Get("streak:42")
		assert.Equal(t, "1", got)

		n, _ = cache.GetStreak(ctx, nil, 42)
		assert.Equal(t, 1, n)

		require.NoError(t, cache.SetStreak(ctx, nil, 42, 0, now))
		n, _ = cache.GetStreak(ctx, nil, 42)
		assert.Equal(t, 0, n)
		assert.Equal(t, 1, inner.reads)
	})

	t.Run("should not let a racing miss overwrite a newer streak", func(t *testing.T) {
		_, client := setupTest(t)
		inner := &countingRepo{streaks: map[int64]int{42: 6}}
		cache := red.NewStreakCache(inner, client, time.Hour, testLogger())

		// the increment lands between the miss's store read and its cache fill
		inner.afterRead = func() {
			inner.afterRead = nil
			n, err := cache.IncrementStreak(ctx, nil, 42, now)
			require.NoError(t, err)
			assert.Equal(t, 7, n)
		}

		n, err := cache.GetStreak(ctx, nil, 42)
		require.NoError(t, err)
		assert.Equal(t, 6, n, "the racing read still returns what it saw")

		n, err = cache.GetStreak(ctx, nil, 42)
		require.NoError(t, err)
		assert.Equal(t, 7, n)
		assert.Equal(t, 1, inner.reads, "second read should be a cache hit")
	})

	t.Run("should default to a short ttl", func(t *testing.T) {
		mr, client := setupTest(t)
		cache := red.NewStreakCache(&countingRepo{streaks: map[int64]int{42: 3}}, client, 0, testLogger())
		_, err := cache.GetStreak(ctx, nil, 42)
		require.NoError(t, err)
		assert.Equal(t, red.DefaultStreakTTL, mr.TTL("streak:42"))
	})

	t.Run("should fall back to the store when redis is down", func(t *testing.T) {
		mr, client := setupTest(t)
		inner := &countingRepo{streaks: map[int64]int{42: 9}}
		cache := red.NewStreakCache(inner, client, time.Hour, testLogger())
		mr.Close()

		n, err := cache.GetStreak(ctx, nil, 42)
		require.NoError(t, err)
		assert.Equal(t, 9, n)

		n, err = cache.IncrementStreak(ctx, nil, 42, now)
		require.NoError(t, err)
		assert.Equal(t, 10, n)
	})
}
