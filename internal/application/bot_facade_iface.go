package application

import (
	"context"
	"time"

	"medication-reminder-bot/internal/domain/model"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----
// These describe the minimal surface that the facade needs. Using interfaces
// enables tests to pass in light-weight mocks.
type StreakUseCaseIface interface {
	ProcessAnswer(ctx context.Context, userID int64, option int, now time.Time) (model.StreakResult, error)
	Get(ctx context.Context, userID int64) (int, error)
	Reset(ctx context.Context, userID int64, now time.Time) error
}

type PollUseCaseIface interface {
	Dispatch(ctx context.Context, chatID int64) (*model.PollRecord, error)
}

// ScheduleSource reports the next recurring run. ok is false when nothing is scheduled.
type ScheduleSource interface {
	NextRun() (time.Time, bool)
}

// TaskQueue reports how many delayed tasks are waiting.
type TaskQueue interface {
	Len() int
}
