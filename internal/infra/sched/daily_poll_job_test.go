//go:build !integration

package sched

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/domain/model"
	red "medication-reminder-bot/internal/infra/redis"
	"medication-reminder-bot/internal/infra/scheduler"
)

type mockPolls struct {
	mu        sync.Mutex
	chats     []int64
	failFirst bool
}

func (m *mockPolls) Dispatch(ctx context.Context, chatID int64) (*model.PollRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFirst {
		m.failFirst = false
		return nil, domain.ErrDelivery
	}
	m.chats = append(m.chats, chatID)
	return &model.PollRecord{PollID: "p", ChatID: chatID, MessageID: 1}, nil
}

func (m *mockPolls) Close(ctx context.Context, pollID string, chatID int64, messageID int) error {
	return nil
}

func (m *mockPolls) Find(ctx context.Context, pollID string) (*model.PollRecord, error) {
	return nil, domain.ErrNotFound
}

func (m *mockPolls) dispatched() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.chats...)
}

type brokenLocker struct{}

func (brokenLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "", errors.New("redis down")
}
func (brokenLocker) Unlock(ctx context.Context, key, token string) error { return nil }

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestDailyPollJob(t *testing.T) {
	ctx := context.Background()
	loc, _ := time.LoadLocation("America/Sao_Paulo")
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, loc)
	clock := func() time.Time { return now }

	t.Run("should dispatch once per destination and day", func(t *testing.T) {
		polls := &mockPolls{}
		job := NewDailyPollJob([]int64{1980190204, 454888590}, polls, red.NewMemoryLocker(clock), loc, clock, testLogger())

		for _, chatID := range []int64{1980190204, 454888590, 1980190204} {
			if err := job.RunFor(chatID)(ctx); err != nil {
				t.Fatalf("RunFor(%d) failed: %v", chatID, err)
			}
		}
		if got := polls.dispatched(); len(got) != 2 {
			t.Errorf("expected 2 dispatches, got %v", got)
		}
	})

	t.Run("should dispatch without a working guard", func(t *testing.T) {
		polls := &mockPolls{}
		job := NewDailyPollJob([]int64{1}, polls, brokenLocker{}, loc, clock, testLogger())
		if err := job.RunFor(1)(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(polls.dispatched()) != 1 {
			t.Error("expected the poll to be dispatched")
		}
	})

	t.Run("should report delivery failures", func(t *testing.T) {
		polls := &mockPolls{failFirst: true}
		job := NewDailyPollJob([]int64{1}, polls, nil, loc, clock, testLogger())
		if err := job.RunFor(1)(ctx); !errors.Is(err, domain.ErrDelivery) {
			t.Errorf("expected ErrDelivery, got %v", err)
		}
	})

	t.Run("should use the local calendar day for the guard key", func(t *testing.T) {
		// 01:30 UTC on the 11th is still the 10th in Sao Paulo
		utc := time.Date(2026, 3, 11, 1, 30, 0, 0, time.UTC)
		if got := GuardKey(42, utc.In(loc)); got != "dispatch:42:2026-03-10" {
			t.Errorf("unexpected key: %s", got)
		}
	})

	t.Run("should register a job per destination", func(t *testing.T) {
		fc := scheduler.NewFakeClock(now.Add(-time.Hour))
		s := scheduler.NewScheduler(fc, 30*time.Second, testLogger())
		job := NewDailyPollJob([]int64{1, 2, 3}, &mockPolls{}, nil, loc, fc.Now, testLogger())
		d, _ := scheduler.ParseDaily("07:00", loc)
		job.Register(s, d)

		jobs := s.Jobs()
		if len(jobs) != 3 {
			t.Fatalf("expected 3 jobs, got %d", len(jobs))
		}
		for _, j := range jobs {
			if !j.NextRun.Equal(now) {
				t.Errorf("%s: expected next run %v, got %v", j.Name, now, j.NextRun)
			}
		}
	})

	t.Run("should report the next dispatch ignoring other jobs", func(t *testing.T) {
		fc := scheduler.NewFakeClock(now.Add(-time.Hour))
		s := scheduler.NewScheduler(fc, 30*time.Second, testLogger())
		job := NewDailyPollJob([]int64{1}, &mockPolls{}, nil, loc, fc.Now, testLogger())

		if _, ok := job.NextRun(); ok {
			t.Error("expected no next run before registration")
		}

		s.Add("pool_stats", scheduler.Every(15*time.Second), func(context.Context) error { return nil })
		d, _ := scheduler.ParseDaily("07:00", loc)
		job.Register(s, d)

		next, ok := job.NextRun()
		if !ok || !next.Equal(now) {
			t.Errorf("expected next dispatch %v, got %v (%t)", now, next, ok)
		}
	})
}
