package model

import (
	"time"

	"medication-reminder-bot/internal/domain"
)

// Option indices of the daily poll, in the order they are sent.
const (
	OptionYes = 0
	OptionNo  = 1
)

// Streak thresholds that unlock a milestone message.
const (
	WeekThreshold  = 7
	MonthThreshold = 30
)

// Tier is the feedback category produced by a streak transition.
type Tier string

const (
	TierPlain Tier = "plain"
	TierWeek  Tier = "week"
	TierMonth Tier = "month"
	TierReset Tier = "reset"
)

// TierFor maps a streak reached through an affirmative answer to its tier.
// The highest matching threshold wins, so 30 reports the month milestone.
func TierFor(streak int) Tier {
	switch {
	case streak >= MonthThreshold:
		return TierMonth
	case streak >= WeekThreshold:
		return TierWeek
	default:
		return TierPlain
	}
}

// UserStreak is the persisted streak state of one user.
type UserStreak struct {
	UserID      int64
	Count       int
	LastUpdated time.Time
}

func NewUserStreak(userID int64, count int, at time.Time) (*UserStreak, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidArgument
	}
	if count < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &UserStreak{UserID: userID, Count: count, LastUpdated: at}, nil
}

// StreakResult is what the streak engine reports back for one answer.
type StreakResult struct {
	UserID    int64
	NewStreak int
	Tier      Tier
}

// Affirmative reports whether the answer that produced r was a "yes".
func (r StreakResult) Affirmative() bool { return r.Tier != TierReset && r.Tier != "" }
