package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/domain/model"
	"medication-reminder-bot/internal/domain/ports/adapter"
	"medication-reminder-bot/internal/domain/ports/repository"
	"medication-reminder-bot/internal/infra/i18n"
	"medication-reminder-bot/internal/infra/logging"
	"medication-reminder-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ PollUseCase = (*pollUC)(nil)

const KindClosePoll = "close_poll"

// PollUseCase owns the poll lifecycle: dispatch, record, close.
type PollUseCase interface {
	// Dispatch sends the daily poll to chatID, records it and schedules its
	// close. A failed record is logged and does not fail the dispatch.
	Dispatch(ctx context.Context, chatID int64) (*model.PollRecord, error)
	// Close stops the poll on the gateway and marks it closed. Closing an
	// already closed poll is a no-op.
	Close(ctx context.Context, pollID string, chatID int64, messageID int) error
	Find(ctx context.Context, pollID string) (*model.PollRecord, error)
}

type pollUC struct {
	gateway    adapter.NotificationGateway
	polls      repository.PollRepository
	deferrer   adapter.Deferrer
	translator *i18n.Translator
	closeAfter time.Duration
	now        func() time.Time
	log        *zerolog.Logger
}

func NewPollUseCase(
	gateway adapter.NotificationGateway,
	polls repository.PollRepository,
	deferrer adapter.Deferrer,
	translator *i18n.Translator,
	closeAfter time.Duration,
	now func() time.Time,
	logger *zerolog.Logger,
) *pollUC {
	if now == nil {
		now = time.Now
	}
	return &pollUC{
		gateway:    gateway,
		polls:      polls,
		deferrer:   deferrer,
		translator: translator,
		closeAfter: closeAfter,
		now:        now,
		log:        logger,
	}
}

func (p *pollUC) Dispatch(ctx context.Context, chatID int64) (*model.PollRecord, error) {
	defer logging.TraceDuration(p.log, "PollUC.Dispatch")()
	log := logging.With(logging.WithChatID(ctx, chatID), p.log)

	question := p.translator.T("poll_question")
	options := []string{p.translator.T("poll_option_yes"), p.translator.T("poll_option_no")}

	ref, err := p.gateway.DispatchPoll(ctx, chatID, question, options, true)
	metrics.IncPollDispatched(err)
	if err != nil {
		log.Error().Err(err).Msg("failed to dispatch poll")
		return nil, fmt.Errorf("dispatch poll to %d: %w", chatID, err)
	}

	rec, err := model.NewPollRecord(ref.PollID, chatID, ref.MessageID, p.now())
	if err != nil {
		log.Error().Err(err).Str("poll_id", ref.PollID).Int("message_id", ref.MessageID).Msg("gateway returned an invalid poll reference")
		// the poll is out there; it still has to be closed
		if ref.MessageID > 0 {
			p.scheduleClose(ref.PollID, chatID, ref.MessageID)
		}
		return nil, fmt.Errorf("dispatch poll to %d: %w", chatID, err)
	}
	log = logging.With(logging.WithPollID(logging.WithChatID(ctx, chatID), rec.PollID), p.log)

	switch err := p.polls.RecordPoll(ctx, repository.NoTX, rec); {
	case errors.Is(err, domain.ErrDuplicateKey):
		log.Info().Msg("poll already recorded")
	case err != nil:
		log.Error().Err(err).Msg("failed to record poll")
	}

	p.scheduleClose(rec.PollID, chatID, rec.MessageID)

	log.Info().Int("message_id", rec.MessageID).Dur("close_after", p.closeAfter).Msg("poll dispatched")
	return rec, nil
}

func (p *pollUC) scheduleClose(pollID string, chatID int64, messageID int) {
	p.deferrer.After(KindClosePoll, p.closeAfter, func(ctx context.Context) error {
		return p.Close(ctx, pollID, chatID, messageID)
	})
}

func (p *pollUC) Close(ctx context.Context, pollID string, chatID int64, messageID int) error {
	defer logging.TraceDuration(p.log, "PollUC.Close")()
	log := logging.With(logging.WithPollID(logging.WithChatID(ctx, chatID), pollID), p.log)

	if pollID == "" {
		// nothing was recorded; only the message can be stopped
		err := p.gateway.ClosePoll(ctx, chatID, messageID)
		metrics.IncPollClosed(err)
		if err != nil {
			log.Error().Err(err).Int("message_id", messageID).Msg("failed to close poll")
		}
		return err
	}

	rec, err := p.polls.FindByID(ctx, repository.NoTX, pollID)
	switch {
	case err == nil && rec.IsClosed():
		log.Debug().Time("closed_at", *rec.ClosedAt).Msg("poll already closed")
		return nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		log.Warn().Err(err).Msg("could not load poll record; closing anyway")
	}

	err = p.gateway.ClosePoll(ctx, chatID, messageID)
	metrics.IncPollClosed(err)
	if err != nil {
		log.Error().Err(err).Int("message_id", messageID).Msg("failed to close poll")
		return err
	}

	switch err := p.polls.MarkClosed(ctx, repository.NoTX, pollID, p.now()); {
	case errors.Is(err, domain.ErrNotFound):
		log.Warn().Msg("closed a poll that was never recorded")
	case err != nil:
		log.Error().Err(err).Msg("failed to mark poll closed")
		return err
	}

	log.Info().Int("message_id", messageID).Msg("poll closed")
	return nil
}

func (p *pollUC) Find(ctx context.Context, pollID string) (*model.PollRecord, error) {
	defer logging.TraceDuration(p.log, "PollUC.Find")()
	return p.polls.FindByID(ctx, repository.NoTX, pollID)
}
