package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/domain/model"
	"medication-reminder-bot/internal/domain/ports/repository"
	"medication-reminder-bot/internal/infra/logging"
	"medication-reminder-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StreakUseCase = (*streakUC)(nil)

// StreakUseCase turns poll answers into streak transitions.
type StreakUseCase interface {
	// ProcessAnswer applies one answer. Option 0 extends the streak, option 1
	// resets it. Any other option changes nothing and returns
	// domain.ErrUnknownOption.
	ProcessAnswer(ctx context.Context, userID int64, option int, now time.Time) (model.StreakResult, error)
	Get(ctx context.Context, userID int64) (int, error)
	// Find returns the stored record. A user without one gets a zero streak
	// and a zero LastUpdated.
	Find(ctx context.Context, userID int64) (*model.UserStreak, error)
	Reset(ctx context.Context, userID int64, now time.Time) error
}

type streakUC struct {
	streaks repository.StreakRepository
	log     *zerolog.Logger
}

func NewStreakUseCase(streaks repository.StreakRepository, logger *zerolog.Logger) *streakUC {
	return &streakUC{streaks: streaks, log: logger}
}

func (s *streakUC) ProcessAnswer(ctx context.Context, userID int64, option int, now time.Time) (model.StreakResult, error) {
	defer logging.TraceDuration(s.log, "StreakUC.ProcessAnswer")()
	log := logging.With(ctx, s.log)

	switch option {
	case model.OptionYes:
		n, err := s.streaks.IncrementStreak(ctx, repository.NoTX, userID, now)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("failed to extend streak")
			return model.StreakResult{UserID: userID}, err
		}
		res := model.StreakResult{UserID: userID, NewStreak: n, Tier: model.TierFor(n)}
		metrics.IncPollAnswer(string(res.Tier))
		log.Info().Int64("user_id", userID).Int("streak", n).Str("tier", string(res.Tier)).Msg("streak extended")
		return res, nil

	case model.OptionNo:
		res := model.StreakResult{UserID: userID, NewStreak: 0, Tier: model.TierReset}
		if err := s.streaks.SetStreak(ctx, repository.NoTX, userID, 0, now); err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("failed to reset streak")
			return res, err
		}
		metrics.IncPollAnswer(string(res.Tier))
		log.Info().Int64("user_id", userID).Msg("streak reset by negative answer")
		return res, nil

	default:
		log.Warn().Int64("user_id", userID).Int("option", option).Msg("ignoring unknown poll option")
		return model.StreakResult{UserID: userID}, fmt.Errorf("%w: %d", domain.ErrUnknownOption, option)
	}
}

func (s *streakUC) Get(ctx context.Context, userID int64) (int, error) {
	defer logging.TraceDuration(s.log, "StreakUC.Get")()
	return s.streaks.GetStreak(ctx, repository.NoTX, userID)
}

func (s *streakUC) Find(ctx context.Context, userID int64) (*model.UserStreak, error) {
	defer logging.TraceDuration(s.log, "StreakUC.Find")()
	rec, err := s.streaks.FindByUserID(ctx, repository.NoTX, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return &model.UserStreak{UserID: userID}, nil
	}
	return rec, err
}

func (s *streakUC) Reset(ctx context.Context, userID int64, now time.Time) error {
	defer logging.TraceDuration(s.log, "StreakUC.Reset")()
	if err := s.streaks.SetStreak(ctx, repository.NoTX, userID, 0, now); err != nil {
		return err
	}
	logging.With(ctx, s.log).Info().Int64("user_id", userID).Msg("streak reset manually")
	return nil
}
