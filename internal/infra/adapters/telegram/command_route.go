package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"medication-reminder-bot/internal/infra/logging"
)

// menuCommands are registered with Telegram in this order.
var menuCommands = []string{"start", "test", "clear", "info"}

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start": r.handleStartCommand,
		"test":  r.handleTestCommand,
		"clear": r.handleClearCommand,
		"info":  r.handleInfoCommand,

		"status": r.handleInfoCommand,
		"help":   r.handleInfoCommand,
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.SendMessage(ctx, message.Chat.ID, r.facade.HandleStart(ctx))
}

// handleTestCommand dispatches a poll to the calling chat right away.
func (r *RealTelegramBotAdapter) handleTestCommand(ctx context.Context, message *tgbotapi.Message) error {
	if err := r.facade.HandleTest(ctx, message.Chat.ID); err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("test poll failed")
		return r.SendMessage(ctx, message.Chat.ID, r.translator.T("test_failed"))
	}
	return nil
}

func (r *RealTelegramBotAdapter) handleClearCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleClear(ctx, message.From.ID)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("failed to clear streak")
	}
	return r.SendMessage(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleInfoCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, _ := r.facade.HandleInfo(ctx, message.From.ID)
	return r.send(ctx, message.Chat.ID, text, tgbotapi.ModeMarkdown)
}
