package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/domain/model"
	"medication-reminder-bot/internal/domain/ports/repository"
)

var _ repository.StreakRepository = (*PostgresStreakRepo)(nil)

type PostgresStreakRepo struct {
	pool *pgxpool.Pool
}

func NewStreakRepo(pool *pgxpool.Pool) *PostgresStreakRepo {
	return &PostgresStreakRepo{pool: pool}
}

func (r *PostgresStreakRepo) GetStreak(ctx context.Context, tx repository.Tx, userID int64) (int, error) {
	var n int
	err := pickRow(ctx, r.pool, tx, `SELECT streak FROM user_streaks WHERE user_id=$1;`, userID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, wrapErr("get streak", err)
	}
	return n, nil
}

func (r *PostgresStreakRepo) SetStreak(ctx context.Context, tx repository.Tx, userID int64, value int, at time.Time) error {
	if value < 0 {
		return domain.ErrInvalidArgument
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO user_streaks (user_id, streak, last_updated) VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET streak = EXCLUDED.streak, last_updated = EXCLUDED.last_updated;`
	if _, err := ex.Exec(ctx, q, userID, value, at); err != nil {
		return wrapErr("set streak", err)
	}
	return nil
}

func (r *PostgresStreakRepo) IncrementStreak(ctx context.Context, tx repository.Tx, userID int64, at time.Time) (int, error) {
	const q = `
INSERT INTO user_streaks (user_id, streak, last_updated) VALUES ($1, 1, $2)
ON CONFLICT (user_id) DO UPDATE SET streak = user_streaks.streak + 1, last_updated = EXCLUDED.last_updated
RETURNING streak;`
	var n int
	if err := pickRow(ctx, r.pool, tx, q, userID, at).Scan(&n); err != nil {
		return 0, wrapErr("increment streak", err)
	}
	return n, nil
}

func (r *PostgresStreakRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID int64) (*model.UserStreak, error) {
	var (
		s       model.UserStreak
		updated *time.Time
	)
	err := pickRow(ctx, r.pool, tx, `SELECT user_id, streak, last_updated FROM user_streaks WHERE user_id=$1;`, userID).
		Scan(&s.UserID, &s.Count, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("find streak", err)
	}
	if updated != nil {
		s.LastUpdated = *updated
	}
	return &s, nil
}

// wrapErr tags driver failures as persistence errors and leaves domain
// sentinels untouched.
func wrapErr(op string, err error) error {
	if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}
