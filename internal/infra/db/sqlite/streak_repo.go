package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/domain/model"
	"medication-reminder-bot/internal/domain/ports/repository"
)

var _ repository.StreakRepository = (*StreakRepo)(nil)

type StreakRepo struct {
	store *Store
}

func NewStreakRepo(store *Store) *StreakRepo {
	return &StreakRepo{store: store}
}

func (r *StreakRepo) GetStreak(ctx context.Context, tx repository.Tx, userID int64) (int, error) {
	ex, err := r.store.getExecutor(tx)
	if err != nil {
		return 0, err
	}
	var n int
	err = ex.QueryRowContext(ctx, `SELECT streak FROM user_streaks WHERE user_id = ?`, userID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: get streak: %w", domain.ErrPersistence, err)
	}
	return n, nil
}

func (r *StreakRepo) SetStreak(ctx context.Context, tx repository.Tx, userID int64, value int, at time.Time) error {
	if value < 0 {
		return domain.ErrInvalidArgument
	}
	ex, err := r.store.getExecutor(tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO user_streaks (user_id, streak, last_updated) VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET streak = excluded.streak, last_updated = excluded.last_updated`
	if _, err := ex.ExecContext(ctx, q, userID, value, formatTime(at)); err != nil {
		return fmt.Errorf("%w: set streak: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (r *StreakRepo) IncrementStreak(ctx context.Context, tx repository.Tx, userID int64, at time.Time) (int, error) {
	ex, err := r.store.getExecutor(tx)
	if err != nil {
		return 0, err
	}
	const q = `
INSERT INTO user_streaks (user_id, streak, last_updated) VALUES (?, 1, ?)
ON CONFLICT (user_id) DO UPDATE SET streak = user_streaks.streak + 1, last_updated = excluded.last_updated
RETURNING streak`
	var n int
	if err := ex.QueryRowContext(ctx, q, userID, formatTime(at)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: increment streak: %w", domain.ErrPersistence, err)
	}
	return n, nil
}

func (r *StreakRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID int64) (*model.UserStreak, error) {
	ex, err := r.store.getExecutor(tx)
	if err != nil {
		return nil, err
	}
	var (
		s       model.UserStreak
		updated sql.NullString
	)
	err = ex.QueryRowContext(ctx, `SELECT user_id, streak, last_updated FROM user_streaks WHERE user_id = ?`, userID).
		Scan(&s.UserID, &s.Count, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find streak: %w", domain.ErrPersistence, err)
	}
	if updated.Valid && updated.String != "" {
		if s.LastUpdated, err = parseTime(updated.String); err != nil {
			return nil, fmt.Errorf("%w: last_updated %q: %w", domain.ErrPersistence, updated.String, err)
		}
	}
	return &s, nil
}
