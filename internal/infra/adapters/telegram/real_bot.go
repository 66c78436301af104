package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medication-reminder-bot/internal/application"
	"medication-reminder-bot/internal/config"
	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/domain/ports/adapter"
	"medication-reminder-bot/internal/infra/i18n"
	"medication-reminder-bot/internal/infra/logging"
	"medication-reminder-bot/internal/infra/metrics"
	red "medication-reminder-bot/internal/infra/redis"
	"medication-reminder-bot/internal/infra/worker"
)

var (
	_ Bot    = (*RealTelegramBotAdapter)(nil)
	_ Facade = (*application.BotFacade)(nil)
)

// Facade is the part of application.BotFacade the update handlers call.
type Facade interface {
	HandleStart(ctx context.Context) string
	HandleTest(ctx context.Context, chatID int64) error
	HandleClear(ctx context.Context, userID int64) (string, error)
	HandleInfo(ctx context.Context, userID int64) (string, application.StatusInfo)
	HandlePollAnswer(ctx context.Context, userID int64, pollID string, options []int) error
}

// Bot is a gateway that can also receive updates.
type Bot interface {
	adapter.NotificationGateway
	StartPolling(ctx context.Context, facade Facade) error
}

// botAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// RealTelegramBotAdapter uses tgbotapi to send polls and messages, and to poll
// updates which it fans out to a worker pool.
type RealTelegramBotAdapter struct {
	bot         botAPI
	cfg         *config.BotConfig
	facade      Facade
	rateLimiter *red.RateLimiter
	translator  *i18n.Translator
	log         *zerolog.Logger
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, translator *i18n.Translator, rateLimiter *red.RateLimiter, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: bot config is nil", domain.ErrConfiguration)
	}
	if translator == nil {
		return nil, fmt.Errorf("%w: translator is nil", domain.ErrConfiguration)
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: telegram login: %v", domain.ErrConfiguration, err)
	}
	logger.Info().Str("bot", bot.Self.UserName).Str("token", logging.Redact(cfg.Token, false)).Msg("telegram bot authorized")
	return newAdapter(bot, cfg, translator, rateLimiter, logger), nil
}

func newAdapter(bot botAPI, cfg *config.BotConfig, translator *i18n.Translator, rateLimiter *red.RateLimiter, logger *zerolog.Logger) *RealTelegramBotAdapter {
	l := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:         bot,
		cfg:         cfg,
		rateLimiter: rateLimiter,
		translator:  translator,
		log:         &l,
	}
}

// DispatchPoll sends a non-anonymous poll. exclusive disallows multiple answers.
func (r *RealTelegramBotAdapter) DispatchPoll(ctx context.Context, chatID int64, question string, options []string, exclusive bool) (adapter.PollRef, error) {
	if err := ctx.Err(); err != nil {
		return adapter.PollRef{}, err
	}
	cfg := tgbotapi.NewPoll(chatID, question, options...)
	cfg.IsAnonymous = false
	cfg.AllowsMultipleAnswers = !exclusive

	msg, err := r.bot.Send(cfg)
	if err != nil {
		metrics.IncTelegramSendError("send_poll")
		return adapter.PollRef{}, fmt.Errorf("%w: send poll: %v", domain.ErrDelivery, err)
	}
	if msg.Poll == nil {
		metrics.IncTelegramSendError("send_poll")
		return adapter.PollRef{}, fmt.Errorf("%w: send poll: response carries no poll", domain.ErrDelivery)
	}
	return adapter.PollRef{PollID: msg.Poll.ID, MessageID: msg.MessageID}, nil
}

// ClosePoll stops the poll at messageID. An already closed poll is success.
func (r *RealTelegramBotAdapter) ClosePoll(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.bot.Request(tgbotapi.NewStopPoll(chatID, messageID)); err != nil {
		if isPollAlreadyClosed(err) {
			return nil
		}
		metrics.IncTelegramSendError("stop_poll")
		return fmt.Errorf("%w: stop poll: %v", domain.ErrDelivery, err)
	}
	return nil
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	return r.send(ctx, chatID, text, "")
}

func (r *RealTelegramBotAdapter) send(ctx context.Context, chatID int64, text, parseMode string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	if _, err := r.bot.Send(msg); err != nil {
		metrics.IncTelegramSendError("send_message")
		return fmt.Errorf("%w: send message: %v", domain.ErrDelivery, err)
	}
	return nil
}

func isPollAlreadyClosed(err error) bool {
	var apiErr *tgbotapi.Error
	msg := err.Error()
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	return strings.Contains(strings.ToLower(msg), "poll has already been closed")
}

// SetMenuCommands registers the command menu shown by Telegram clients.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context) error {
	cmds := make([]tgbotapi.BotCommand, 0, len(menuCommands))
	for _, c := range menuCommands {
		cmds = append(cmds, tgbotapi.BotCommand{Command: c, Description: r.translator.T("cmd_" + c)})
	}
	_, err := r.bot.Request(tgbotapi.NewSetMyCommands(cmds...))
	return err
}

// StartPolling receives message and poll_answer updates until ctx is done.
// Each update is handled on the worker pool.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context, facade Facade) error {
	r.facade = facade

	if err := r.SetMenuCommands(ctx); err != nil {
		r.log.Warn().Err(err).Msg("failed to set menu commands")
	}

	pool := worker.NewPool(r.cfg.Workers, r.log)
	pool.Start(ctx)
	defer pool.Stop()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "poll_answer"}
	updates := r.bot.GetUpdatesChan(u)
	defer r.bot.StopReceivingUpdates()

	r.log.Info().Int("workers", r.cfg.Workers).Msg("polling for updates")
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if err := pool.Submit(ctx, func(ctx context.Context) error {
				return r.handleUpdate(ctx, up)
			}); err != nil && ctx.Err() == nil {
				r.log.Error().Err(err).Int("update_id", up.UpdateID).Msg("failed to queue update")
			}
		}
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	ctx = logging.WithTraceID(ctx, uuid.NewString())

	if pa := update.PollAnswer; pa != nil {
		return r.facade.HandlePollAnswer(ctx, pa.User.ID, pa.PollID, pa.OptionIDs)
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || !msg.IsCommand() {
		return nil
	}
	ctx = logging.WithChatID(logging.WithTgID(ctx, msg.From.ID), msg.Chat.ID)

	command := strings.ToLower(msg.Command())
	metrics.IncTelegramCommand("/" + command)

	if allowed := r.allow(ctx, msg.From.ID); !allowed {
		metrics.IncRateLimitTriggered()
		return r.SendMessage(ctx, msg.Chat.ID, r.translator.T("rate_limited"))
	}

	handler, ok := r.commandRoutes()[command]
	if !ok {
		return r.SendMessage(ctx, msg.Chat.ID, r.translator.T("unknown_command"))
	}
	return handler(ctx, msg)
}

// allow applies the per-user command limit. Limiter failures let the command through.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, userID int64) bool {
	if r.rateLimiter == nil || r.cfg.RateLimitPerMinute <= 0 {
		return true
	}
	ok, err := r.rateLimiter.Allow(ctx, userID)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	return ok
}
