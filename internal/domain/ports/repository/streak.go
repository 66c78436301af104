package repository

import (
	"context"
	"time"

	"medication-reminder-bot/internal/domain/model"
)

// -----------------------------
// User streaks
// -----------------------------

type StreakRepository interface {
	// GetStreak returns the current streak, 0 when the user has none yet.
	GetStreak(ctx context.Context, tx Tx, userID int64) (int, error)
	// SetStreak upserts the streak value.
	SetStreak(ctx context.Context, tx Tx, userID int64, value int, at time.Time) error
	// IncrementStreak adds one to the streak in a single atomic statement and
	// returns the new value. A missing row starts at 1.
	IncrementStreak(ctx context.Context, tx Tx, userID int64, at time.Time) (int, error)
	FindByUserID(ctx context.Context, tx Tx, userID int64) (*model.UserStreak, error)
}
