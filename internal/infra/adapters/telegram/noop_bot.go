package telegram

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medication-reminder-bot/internal/domain/ports/adapter"
)

var _ Bot = (*NoopBotAdapter)(nil)

// NoopBotAdapter implements Bot for local/dev runs.
// It logs polls and messages instead of sending them.
type NoopBotAdapter struct {
	nextMessageID atomic.Int64
	log           *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	l := logger.With().Str("component", "NoopBot").Logger()
	return &NoopBotAdapter{log: &l}
}

func (b *NoopBotAdapter) DispatchPoll(ctx context.Context, chatID int64, question string, options []string, exclusive bool) (adapter.PollRef, error) {
	if err := ctx.Err(); err != nil {
		return adapter.PollRef{}, err
	}
	ref := adapter.PollRef{PollID: uuid.NewString(), MessageID: int(b.nextMessageID.Add(1))}
	b.log.Info().Int64("chat_id", chatID).Str("poll_id", ref.PollID).Str("question", question).Strs("options", options).Msg("poll")
	return ref, nil
}

func (b *NoopBotAdapter) ClosePoll(ctx context.Context, chatID int64, messageID int) error {
	b.log.Info().Int64("chat_id", chatID).Int("message_id", messageID).Msg("close poll")
	return nil
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Msg("message")
	return nil
}

// StartPolling receives nothing and blocks until ctx is done.
func (b *NoopBotAdapter) StartPolling(ctx context.Context, _ Facade) error {
	<-ctx.Done()
	return nil
}
