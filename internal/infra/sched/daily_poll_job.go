package sched

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medication-reminder-bot/internal/infra/logging"
	red "medication-reminder-bot/internal/infra/redis"
	"medication-reminder-bot/internal/infra/scheduler"
	"medication-reminder-bot/internal/usecase"

	"github.com/rs/zerolog"
)

// guardTTL outlives one calendar day so a restart on the same day still
// sees the key.
const guardTTL = 25 * time.Hour

// DailyPollJob dispatches the daily poll to every destination, at most once
// per destination and calendar day.
type DailyPollJob struct {
	destinations []int64
	polls        usecase.PollUseCase
	guard        red.Locker
	loc          *time.Location
	now          func() time.Time
	log          *zerolog.Logger

	sched *scheduler.Scheduler
}

func NewDailyPollJob(destinations []int64, polls usecase.PollUseCase, guard red.Locker, loc *time.Location, now func() time.Time, logger *zerolog.Logger) *DailyPollJob {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	compLog := logger.With().Str("component", "DailyPollJob").Logger()
	return &DailyPollJob{
		destinations: destinations,
		polls:        polls,
		guard:        guard,
		loc:          loc,
		now:          now,
		log:          &compLog,
	}
}

// Register adds one recurring job per destination.
func (j *DailyPollJob) Register(s *scheduler.Scheduler, trigger scheduler.Trigger) {
	j.sched = s
	for _, chatID := range j.destinations {
		s.Add(JobName(chatID), trigger, j.RunFor(chatID))
	}
}

// NextRun is the earliest upcoming dispatch among the registered destinations.
func (j *DailyPollJob) NextRun() (time.Time, bool) {
	if j.sched == nil {
		return time.Time{}, false
	}
	var next time.Time
	found := false
	for _, info := range j.sched.Jobs() {
		if !strings.HasPrefix(info.Name, jobPrefix) {
			continue
		}
		if !found || info.NextRun.Before(next) {
			next, found = info.NextRun, true
		}
	}
	return next, found
}

const jobPrefix = "daily_poll:"

func JobName(chatID int64) string { return fmt.Sprintf("%s%d", jobPrefix, chatID) }

func GuardKey(chatID int64, day time.Time) string {
	return fmt.Sprintf("dispatch:%d:%s", chatID, day.Format("2006-01-02"))
}

// RunFor returns the job body for a single destination.
func (j *DailyPollJob) RunFor(chatID int64) scheduler.JobFunc {
	return func(ctx context.Context) error {
		ctx = logging.WithChatID(ctx, chatID)
		log := logging.With(ctx, j.log)

		key := GuardKey(chatID, j.now().In(j.loc))
		if j.guard != nil {
			_, err := j.guard.TryLock(ctx, key, guardTTL)
			switch {
			case errors.Is(err, red.ErrLocked):
				log.Info().Str("key", key).Msg("poll already dispatched today; skipping")
				return nil
			case err != nil:
				log.Warn().Err(err).Str("key", key).Msg("dispatch guard unavailable; dispatching anyway")
			}
		}

		if _, err := j.polls.Dispatch(ctx, chatID); err != nil {
			return err
		}
		return nil
	}
}
