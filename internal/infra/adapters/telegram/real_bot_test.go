//go:build !integration

package telegram

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-reminder-bot/internal/application"
	"medication-reminder-bot/internal/config"
	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/infra/i18n"
	red "medication-reminder-bot/internal/infra/redis"
)

// ---- fakes ----

type fakeBotAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
	reqErr   error
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeBotAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	if _, ok := c.(tgbotapi.SendPollConfig); ok {
		return tgbotapi.Message{MessageID: 77, Poll: &tgbotapi.Poll{ID: "poll-77"}}, nil
	}
	return tgbotapi.Message{MessageID: 1}, nil
}

func (f *fakeBotAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	if f.reqErr != nil {
		return nil, f.reqErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBotAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeBotAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeBotAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

type fakeFacade struct {
	mu        sync.Mutex
	calls     []string
	answers   [][]int
	testErr   error
	answerHit chan struct{}
}

func (f *fakeFacade) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeFacade) HandleStart(ctx context.Context) string {
	f.record("start")
	return "welcome"
}

func (f *fakeFacade) HandleTest(ctx context.Context, chatID int64) error {
	f.record("test")
	return f.testErr
}

func (f *fakeFacade) HandleClear(ctx context.Context, userID int64) (string, error) {
	f.record("clear")
	return "cleared", nil
}

func (f *fakeFacade) HandleInfo(ctx context.Context, userID int64) (string, application.StatusInfo) {
	f.record("info")
	return "*status*", application.StatusInfo{UserID: userID}
}

func (f *fakeFacade) HandlePollAnswer(ctx context.Context, userID int64, pollID string, options []int) error {
	f.mu.Lock()
	f.calls = append(f.calls, "answer:"+pollID)
	f.answers = append(f.answers, options)
	f.mu.Unlock()
	if f.answerHit != nil {
		f.answerHit <- struct{}{}
	}
	return nil
}

// ---- helpers ----

func newTestAdapter(t *testing.T, api *fakeBotAPI, limiter *red.RateLimiter, perMinute int) (*RealTelegramBotAdapter, *fakeFacade) {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	require.NoError(t, err)
	l := zerolog.New(io.Discard)
	a := newAdapter(api, &config.BotConfig{Workers: 2, RateLimitPerMinute: perMinute}, tr, limiter, &l)
	f := &fakeFacade{}
	a.facade = f
	return a, f
}

func commandUpdate(text string, userID, chatID int64) tgbotapi.Update {
	cmd := text
	for i, c := range text {
		if c == ' ' {
			cmd = text[:i]
			break
		}
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		From:     &tgbotapi.User{ID: userID},
		Chat:     &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

// ---- tests ----

func TestDispatchPoll(t *testing.T) {
	t.Run("should send a non-anonymous single answer poll", func(t *testing.T) {
		api := &fakeBotAPI{}
		a, _ := newTestAdapter(t, api, nil, 0)

		ref, err := a.DispatchPoll(context.Background(), 100, "q?", []string{"yes", "no"}, true)
		require.NoError(t, err)
		assert.Equal(t, "poll-77", ref.PollID)
		assert.Equal(t, 77, ref.MessageID)

		require.Len(t, api.sent, 1)
		cfg := api.sent[0].(tgbotapi.SendPollConfig)
		assert.False(t, cfg.IsAnonymous)
		assert.False(t, cfg.AllowsMultipleAnswers)
		assert.Equal(t, []string{"yes", "no"}, cfg.Options)
	})

	t.Run("should wrap send failures as delivery errors", func(t *testing.T) {
		api := &fakeBotAPI{sendErr: errors.New("network down")}
		a, _ := newTestAdapter(t, api, nil, 0)
		_, err := a.DispatchPoll(context.Background(), 100, "q?", []string{"yes", "no"}, true)
		assert.ErrorIs(t, err, domain.ErrDelivery)
	})
}

func TestClosePoll(t *testing.T) {
	t.Run("should treat an already closed poll as success", func(t *testing.T) {
		api := &fakeBotAPI{reqErr: &tgbotapi.Error{Code: 400, Message: "Bad Request: poll has already been closed"}}
		a, _ := newTestAdapter(t, api, nil, 0)
		assert.NoError(t, a.ClosePoll(context.Background(), 100, 77))
	})

	t.Run("should report other failures", func(t *testing.T) {
		api := &fakeBotAPI{reqErr: &tgbotapi.Error{Code: 400, Message: "Bad Request: message to stop not found"}}
		a, _ := newTestAdapter(t, api, nil, 0)
		assert.ErrorIs(t, a.ClosePoll(context.Background(), 100, 77), domain.ErrDelivery)
	})
}

func TestIsPollAlreadyClosed(t *testing.T) {
	assert.True(t, isPollAlreadyClosed(&tgbotapi.Error{Message: "Bad Request: poll has already been closed"}))
	assert.True(t, isPollAlreadyClosed(errors.New("POLL HAS ALREADY BEEN CLOSED")))
	assert.False(t, isPollAlreadyClosed(errors.New("timeout")))
}

func TestHandleUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("should route commands and aliases", func(t *testing.T) {
		api := &fakeBotAPI{}
		a, f := newTestAdapter(t, api, nil, 0)

		for _, text := range []string{"/start", "/test", "/clear", "/info", "/status", "/help@med_bot"} {
			require.NoError(t, a.handleUpdate(ctx, commandUpdate(text, 42, 42)))
		}
		assert.Equal(t, []string{"start", "test", "clear", "info", "info", "info"}, f.calls)
		assert.Equal(t, []string{"welcome", "cleared", "*status*", "*status*", "*status*"}, api.texts())
	})

	t.Run("should send info as markdown", func(t *testing.T) {
		api := &fakeBotAPI{}
		a, _ := newTestAdapter(t, api, nil, 0)
		require.NoError(t, a.handleUpdate(ctx, commandUpdate("/info", 42, 42)))
		require.Len(t, api.sent, 1)
		assert.Equal(t, tgbotapi.ModeMarkdown, api.sent[0].(tgbotapi.MessageConfig).ParseMode)
	})

	t.Run("should tell the user when a test poll fails", func(t *testing.T) {
		api := &fakeBotAPI{}
		a, f := newTestAdapter(t, api, nil, 0)
		f.testErr = domain.ErrDelivery
		require.NoError(t, a.handleUpdate(ctx, commandUpdate("/test", 42, 42)))
		assert.Equal(t, []string{a.translator.T("test_failed")}, api.texts())
	})

	t.Run("should answer unknown commands and ignore plain text", func(t *testing.T) {
		api := &fakeBotAPI{}
		a, f := newTestAdapter(t, api, nil, 0)

		require.NoError(t, a.handleUpdate(ctx, commandUpdate("/nope", 42, 42)))
		plain := tgbotapi.Update{Message: &tgbotapi.Message{Text: "hi", From: &tgbotapi.User{ID: 42}, Chat: &tgbotapi.Chat{ID: 42}}}
		require.NoError(t, a.handleUpdate(ctx, plain))

		assert.Empty(t, f.calls)
		assert.Equal(t, []string{a.translator.T("unknown_command")}, api.texts())
	})

	t.Run("should forward poll answers", func(t *testing.T) {
		api := &fakeBotAPI{}
		a, f := newTestAdapter(t, api, nil, 0)
		up := tgbotapi.Update{PollAnswer: &tgbotapi.PollAnswer{PollID: "poll-77", User: tgbotapi.User{ID: 42}, OptionIDs: []int{0}}}
		require.NoError(t, a.handleUpdate(ctx, up))
		assert.Equal(t, []string{"answer:poll-77"}, f.calls)
		assert.Equal(t, [][]int{{0}}, f.answers)
	})

	t.Run("should rate limit commands per user", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := red.NewClientFrom(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
		api := &fakeBotAPI{}
		a, f := newTestAdapter(t, api, red.NewRateLimiter(client, 2, time.Minute), 2)

		for i := 0; i < 3; i++ {
			require.NoError(t, a.handleUpdate(ctx, commandUpdate("/start", 42, 42)))
		}
		assert.Len(t, f.calls, 2)
		texts := api.texts()
		require.Len(t, texts, 3)
		assert.Equal(t, a.translator.T("rate_limited"), texts[2])
	})
}

func TestStartPolling(t *testing.T) {
	api := &fakeBotAPI{updates: make(chan tgbotapi.Update, 1)}
	a, _ := newTestAdapter(t, api, nil, 0)
	f := &fakeFacade{answerHit: make(chan struct{}, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.StartPolling(ctx, f) }()

	api.updates <- tgbotapi.Update{PollAnswer: &tgbotapi.PollAnswer{PollID: "p", User: tgbotapi.User{ID: 1}, OptionIDs: []int{1}}}
	select {
	case <-f.answerHit:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the update to reach the facade")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("polling did not stop")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
	require.NotEmpty(t, api.requests)
	cmds := api.requests[0].(tgbotapi.SetMyCommandsConfig)
	assert.Len(t, cmds.Commands, 4)
}
