package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medication-reminder-bot/internal/config"
	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/infra/retry"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

type RedisClient interface {
	Ping(ctx context.Context) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

var _ RedisClient = (*Client)(nil)

type Client struct {
	cli *redis.Client
}

// NewClient connects using cfg.URL, which may be a redis:// URL or a plain
// host:port address, and retries transient failures.
func NewClient(ctx context.Context, cfg config.RedisConfig, logger *zerolog.Logger) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opts)

	_, err = retry.Operation(ctx, retry.DefaultPolicy, func(ctx context.Context) (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		err := c.Ping(pingCtx).Err()
		if err != nil {
			logger.Warn().Err(err).Str("addr", opts.Addr).Msg("redis ping failed")
		}
		return struct{}{}, err
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: connect redis: %w", domain.ErrPersistence, err)
	}
	logger.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("redis ready")
	return &Client{cli: c}, nil
}

// NewClientFrom wraps an existing go-redis client.
func NewClientFrom(c *redis.Client) *Client { return &Client{cli: c} }

func options(cfg config.RedisConfig) (*redis.Options, error) {
	if strings.HasPrefix(cfg.URL, "redis://") || strings.HasPrefix(cfg.URL, "rediss://") {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: redis.url: %v", domain.ErrConfiguration, err)
		}
		if cfg.Password != "" {
			opts.Password = cfg.Password
		}
		return opts, nil
	}
	return &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, nil
}

func (c *Client) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.cli.Set(ctx, key, value, expiration).Err()
}

func (c *Client) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return c.cli.SetNX(ctx, key, value, expiration).Result()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.cli.Get(ctx, key).Result()
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.cli.Incr(ctx, key).Result()
}

func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.cli.Expire(ctx, key, expiration).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.cli.Del(ctx, keys...).Err()
}

func (c *Client) Close() error { return c.cli.Close() }
