package postgres

import (
	"context"
	"fmt"
	"time"

	"medication-reminder-bot/internal/config"
	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/infra/retry"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

// NewPool connects to Postgres, retrying transient failures, and verifies
// the connection with a ping.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger *zerolog.Logger) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: database.url: %v", domain.ErrConfiguration, err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pcfg.HealthCheckPeriod = 30 * time.Second

	attempt := 0
	pool, err := retry.Operation(ctx, retry.DefaultPolicy, func(ctx context.Context) (*pgxpool.Pool, error) {
		attempt++
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		p, err := pgxpool.ConnectConfig(connectCtx, pcfg)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("postgres connect failed")
			return nil, err
		}
		if err := p.Ping(connectCtx); err != nil {
			p.Close()
			logger.Warn().Err(err).Int("attempt", attempt).Msg("postgres ping failed")
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %w", domain.ErrPersistence, err)
	}
	logger.Info().Int32("max_conns", pcfg.MaxConns).Msg("postgres pool ready")
	return pool, nil
}
