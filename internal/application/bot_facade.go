package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/domain/model"
	"medication-reminder-bot/internal/domain/ports/adapter"
	"medication-reminder-bot/internal/infra/i18n"
	"medication-reminder-bot/internal/infra/logging"
	"medication-reminder-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// KindFollowUp is the delayed task kind of the confirmation sent after a "yes".
const KindFollowUp = "follow_up"

// FacadeOptions carries the non-usecase settings of the facade.
type FacadeOptions struct {
	DailyTime     string // HH:MM shown in the welcome text
	FollowUpAfter time.Duration
	StartedAt     time.Time
	Location      *time.Location
	Now           func() time.Time
}

// StatusInfo is what /info reports.
type StatusInfo struct {
	UserID       int64         `json:"user_id"`
	Streak       int           `json:"streak"`
	Uptime       time.Duration `json:"uptime"`
	NextDispatch time.Time     `json:"next_dispatch"`
	HasNext      bool          `json:"has_next"`
	PendingTasks int           `json:"pending_tasks"`
}

// BotFacade composes usecases into high-level bot commands.
// Command methods return the reply text so the Telegram adapter just forwards it to the chat.
// Poll answers have no chat to reply to, so HandlePollAnswer sends to the user directly.
type BotFacade struct {
	StreakUC StreakUseCaseIface
	PollUC   PollUseCaseIface

	gateway  adapter.NotificationGateway
	deferrer adapter.Deferrer
	schedule ScheduleSource
	tasks    TaskQueue
	tr       *i18n.Translator
	opts     FacadeOptions
	log      *zerolog.Logger
}

// NewBotFacade constructs a facade. schedule and tasks may be nil; /info then
// reports no next run and zero pending tasks.
func NewBotFacade(
	streakUC StreakUseCaseIface,
	pollUC PollUseCaseIface,
	gateway adapter.NotificationGateway,
	deferrer adapter.Deferrer,
	schedule ScheduleSource,
	tasks TaskQueue,
	translator *i18n.Translator,
	opts FacadeOptions,
	logger *zerolog.Logger,
) *BotFacade {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.StartedAt.IsZero() {
		opts.StartedAt = opts.Now()
	}
	if opts.FollowUpAfter <= 0 {
		opts.FollowUpAfter = time.Hour
	}
	l := logger.With().Str("component", "BotFacade").Logger()
	return &BotFacade{
		StreakUC: streakUC,
		PollUC:   pollUC,
		gateway:  gateway,
		deferrer: deferrer,
		schedule: schedule,
		tasks:    tasks,
		tr:       translator,
		opts:     opts,
		log:      &l,
	}
}

// HandleStart returns the greeting. It touches no state.
func (b *BotFacade) HandleStart(ctx context.Context) string {
	return b.tr.T("start_welcome", b.opts.DailyTime)
}

// HandleTest acknowledges the command and dispatches a poll to chatID right
// away. The acknowledgement is sent here so it lands before the poll.
func (b *BotFacade) HandleTest(ctx context.Context, chatID int64) error {
	defer logging.TraceDuration(b.log, "BotFacade.HandleTest")()
	if err := b.gateway.SendMessage(ctx, chatID, b.tr.T("test_sending")); err != nil {
		logging.With(ctx, b.log).Warn().Err(err).Int64("chat_id", chatID).Msg("failed to acknowledge /test")
	}
	if _, err := b.PollUC.Dispatch(ctx, chatID); err != nil {
		return fmt.Errorf("test dispatch: %w", err)
	}
	return nil
}

// HandleClear resets the caller's streak.
func (b *BotFacade) HandleClear(ctx context.Context, userID int64) (string, error) {
	defer logging.TraceDuration(b.log, "BotFacade.HandleClear")()
	if err := b.StreakUC.Reset(ctx, userID, b.opts.Now()); err != nil {
		return b.tr.T("clear_failed"), err
	}
	return b.tr.T("clear_done"), nil
}

// Status gathers the /info data for userID. A streak lookup failure is
// reported as zero so the rest of the status still renders.
func (b *BotFacade) Status(ctx context.Context, userID int64) StatusInfo {
	info := StatusInfo{UserID: userID, Uptime: b.opts.Now().Sub(b.opts.StartedAt)}
	if n, err := b.StreakUC.Get(ctx, userID); err != nil {
		logging.With(ctx, b.log).Warn().Err(err).Int64("user_id", userID).Msg("streak lookup failed")
	} else {
		info.Streak = n
	}
	if b.schedule != nil {
		info.NextDispatch, info.HasNext = b.schedule.NextRun()
	}
	if b.tasks != nil {
		info.PendingTasks = b.tasks.Len()
	}
	return info
}

// HandleInfo renders Status as the localized status text.
func (b *BotFacade) HandleInfo(ctx context.Context, userID int64) (string, StatusInfo) {
	info := b.Status(ctx, userID)
	next := b.tr.T("info_no_schedule")
	if info.HasNext {
		next = info.NextDispatch.In(b.opts.Location).Format("02/01/2006 15:04")
	}
	days := int(info.Uptime / (24 * time.Hour))
	hours := int(info.Uptime%(24*time.Hour)) / int(time.Hour)
	return b.tr.T("info_status", days, hours, info.Streak, next, info.PendingTasks), info
}

// HandlePollAnswer applies an answer and sends the feedback to userID.
// An empty options list means the vote was retracted and is ignored.
func (b *BotFacade) HandlePollAnswer(ctx context.Context, userID int64, pollID string, options []int) error {
	defer logging.TraceDuration(b.log, "BotFacade.HandlePollAnswer")()
	ctx = logging.WithPollID(logging.WithTgID(ctx, userID), pollID)
	log := logging.With(ctx, b.log)

	if len(options) == 0 {
		log.Debug().Msg("vote retracted, ignoring")
		return nil
	}

	res, err := b.StreakUC.ProcessAnswer(ctx, userID, options[0], b.opts.Now())
	switch {
	case errors.Is(err, domain.ErrUnknownOption):
		return nil
	case options[0] == model.OptionNo:
		// the encouragement is sent even when the reset could not be stored
		b.send(ctx, userID, b.tr.T("streak_reset"))
		return err
	case err != nil:
		return err
	}

	b.send(ctx, userID, b.tierMessage(res))
	b.send(ctx, userID, b.tr.T("great_job"))

	id := b.deferrer.After(KindFollowUp, b.opts.FollowUpAfter, func(ctx context.Context) error {
		err := b.gateway.SendMessage(ctx, userID, b.tr.T("follow_up"))
		metrics.IncFollowUp(err)
		return err
	})
	log.Debug().Str("task_id", id).Dur("delay", b.opts.FollowUpAfter).Msg("follow-up queued")
	return nil
}

func (b *BotFacade) tierMessage(res model.StreakResult) string {
	msg := b.tr.T("streak_congrats", res.NewStreak)
	switch res.Tier {
	case model.TierMonth:
		msg += "\n" + b.tr.T("streak_month")
	case model.TierWeek:
		msg += "\n" + b.tr.T("streak_week")
	}
	return msg
}

// send delivers a message and only logs failures.
func (b *BotFacade) send(ctx context.Context, chatID int64, text string) {
	if err := b.gateway.SendMessage(ctx, chatID, text); err != nil {
		logging.With(ctx, b.log).Warn().Err(err).Int64("chat_id", chatID).Msg("failed to deliver message")
	}
}
