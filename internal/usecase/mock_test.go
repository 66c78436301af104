//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/domain/model"
	"medication-reminder-bot/internal/domain/ports/adapter"
	"medication-reminder-bot/internal/domain/ports/repository"
	"medication-reminder-bot/internal/infra/i18n"
)

// =============================
// Adapters
// =============================

// ---- Mock NotificationGateway ----

type sentPoll struct {
	ChatID    int64
	Question  string
	Options   []string
	Exclusive bool
}

type closedPoll struct {
	ChatID    int64
	MessageID int
}

type MockGateway struct {
	mu     sync.Mutex
	Polls  []sentPoll
	Closed []closedPoll
	Sent   []string

	nextID int

	DispatchPollFunc func(ctx context.Context, chatID int64, question string, options []string, exclusive bool) (adapter.PollRef, error)
	ClosePollFunc    func(ctx context.Context, chatID int64, messageID int) error
	SendMessageFunc  func(ctx context.Context, chatID int64, text string) error
}

var _ adapter.NotificationGateway = (*MockGateway)(nil)

func (m *MockGateway) DispatchPoll(ctx context.Context, chatID int64, question string, options []string, exclusive bool) (adapter.PollRef, error) {
	if m.DispatchPollFunc != nil {
		return m.DispatchPollFunc(ctx, chatID, question, options, exclusive)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.Polls = append(m.Polls, sentPoll{ChatID: chatID, Question: question, Options: options, Exclusive: exclusive})
	return adapter.PollRef{PollID: fmt.Sprintf("poll-%d", m.nextID), MessageID: 100 + m.nextID}, nil
}

func (m *MockGateway) ClosePoll(ctx context.Context, chatID int64, messageID int) error {
	if m.ClosePollFunc != nil {
		return m.ClosePollFunc(ctx, chatID, messageID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = append(m.Closed, closedPoll{ChatID: chatID, MessageID: messageID})
	return nil
}

func (m *MockGateway) SendMessage(ctx context.Context, chatID int64, text string) error {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, chatID, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, text)
	return nil
}

// ---- Mock Deferrer ----

type deferred struct {
	Kind  string
	Delay time.Duration
	Fn    func(ctx context.Context) error
}

// MockDeferrer records queued tasks; tests run them by hand.
type MockDeferrer struct {
	mu    sync.Mutex
	Tasks []deferred
}

var _ adapter.Deferrer = (*MockDeferrer)(nil)

func (m *MockDeferrer) After(kind string, delay time.Duration, fn func(ctx context.Context) error) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tasks = append(m.Tasks, deferred{Kind: kind, Delay: delay, Fn: fn})
	return kind
}

// =============================
// Repositories
// =============================

// ---- Mock StreakRepository ----

type MockStreakRepo struct {
	mu   sync.Mutex
	data map[int64]*model.UserStreak

	SetStreakFunc       func(ctx context.Context, tx repository.Tx, userID int64, value int, at time.Time) error
	IncrementStreakFunc func(ctx context.Context, tx repository.Tx, userID int64, at time.Time) (int, error)
}

func NewMockStreakRepo() *MockStreakRepo {
	return &MockStreakRepo{data: make(map[int64]*model.UserStreak)}
}

var _ repository.StreakRepository = (*MockStreakRepo)(nil)

func (m *MockStreakRepo) GetStreak(ctx context.Context, tx repository.Tx, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.data[userID]; ok {
		return s.Count, nil
	}
	return 0, nil
}

func (m *MockStreakRepo) SetStreak(ctx context.Context, tx repository.Tx, userID int64, value int, at time.Time) error {
	if m.SetStreakFunc != nil {
		return m.SetStreakFunc(ctx, tx, userID, value, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[userID] = &model.UserStreak{UserID: userID, Count: value, LastUpdated: at}
	return nil
}

func (m *MockStreakRepo) IncrementStreak(ctx context.Context, tx repository.Tx, userID int64, at time.Time) (int, error) {
	if m.IncrementStreakFunc != nil {
		return m.IncrementStreakFunc(ctx, tx, userID, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[userID]
	if !ok {
		s = &model.UserStreak{UserID: userID}
		m.data[userID] = s
	}
	s.Count++
	s.LastUpdated = at
	return s.Count, nil
}

func (m *MockStreakRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID int64) (*model.UserStreak, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// ---- Mock PollRepository ----

type MockPollRepo struct {
	mu   sync.Mutex
	data map[string]*model.PollRecord

	RecordPollFunc func(ctx context.Context, tx repository.Tx, p *model.PollRecord) error
	MarkClosedFunc func(ctx context.Context, tx repository.Tx, pollID string, at time.Time) error
}

func NewMockPollRepo() *MockPollRepo {
	return &MockPollRepo{data: make(map[string]*model.PollRecord)}
}

var _ repository.PollRepository = (*MockPollRepo)(nil)

func (m *MockPollRepo) RecordPoll(ctx context.Context, tx repository.Tx, p *model.PollRecord) error {
	if m.RecordPollFunc != nil {
		return m.RecordPollFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[p.PollID]; ok {
		return domain.ErrDuplicateKey
	}
	cp := *p
	m.data[p.PollID] = &cp
	return nil
}

func (m *MockPollRepo) FindByID(ctx context.Context, tx repository.Tx, pollID string) (*model.PollRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data[pollID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPollRepo) MarkClosed(ctx context.Context, tx repository.Tx, pollID string, at time.Time) error {
	if m.MarkClosedFunc != nil {
		return m.MarkClosedFunc(ctx, tx, pollID, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data[pollID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Close(at)
	return nil
}

func (m *MockPollRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// =============================
// Infra helpers for tests
// =============================

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestTranslator() *i18n.Translator {
	translator, err := i18n.NewTranslator(i18n.LocalesFS, "pt")
	if err != nil {
		panic(err)
	}
	return translator
}

func fixedNow(t time.Time) func() time.Time { return func() time.Time { return t } }
