//go:build !integration

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestDelayQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	start := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

	t.Run("should run a task exactly at its deadline", func(t *testing.T) {
		fc := NewFakeClock(start)
		q := NewDelayQueue(context.Background(), fc, nil)
		defer q.Close()

		closed := make(chan time.Time, 1)
		id := q.After("close_poll", 24*time.Hour, func(ctx context.Context) error {
			closed <- fc.Now()
			return nil
		})
		if id == "" {
			t.Fatal("expected an entry id")
		}

		fc.Advance(86399 * time.Second)
		select {
		case <-closed:
			t.Fatal("task ran before 24h")
		case <-time.After(50 * time.Millisecond):
		}
		if q.Len() != 1 {
			t.Fatalf("expected one pending entry, got %d", q.Len())
		}

		fc.Advance(time.Second)
		select {
		case at := <-closed:
			if !at.Equal(start.Add(24 * time.Hour)) {
				t.Errorf("unexpected run time: %v", at)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("expected task to run at 24h")
		}
	})

	t.Run("should list pending entries by deadline", func(t *testing.T) {
		fc := NewFakeClock(start)
		q := NewDelayQueue(context.Background(), fc, nil)
		defer q.Close()

		noop := func(ctx context.Context) error { return nil }
		q.After("close_poll", 24*time.Hour, noop)
		q.After("follow_up", time.Hour, noop)

		pending := q.Pending()
		if len(pending) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(pending))
		}
		if pending[0].Kind != "follow_up" || pending[1].Kind != "close_poll" {
			t.Errorf("unexpected order: %+v", pending)
		}
	})

	t.Run("should not retry a failed task", func(t *testing.T) {
		fc := NewFakeClock(start)
		q := NewDelayQueue(context.Background(), fc, nil)
		defer q.Close()

		var calls atomic.Int32
		done := make(chan struct{}, 1)
		q.After("follow_up", time.Hour, func(ctx context.Context) error {
			calls.Add(1)
			done <- struct{}{}
			return errors.New("telegram down")
		})

		fc.Advance(time.Hour)
		<-done
		fc.Advance(48 * time.Hour)
		time.Sleep(20 * time.Millisecond)
		if calls.Load() != 1 {
			t.Errorf("expected exactly one attempt, got %d", calls.Load())
		}
	})

	t.Run("should drop waiting tasks on close", func(t *testing.T) {
		fc := NewFakeClock(start)
		q := NewDelayQueue(context.Background(), fc, nil)

		var calls atomic.Int32
		q.After("close_poll", time.Hour, func(ctx context.Context) error {
			calls.Add(1)
			return nil
		})
		q.Close()

		fc.Advance(2 * time.Hour)
		if calls.Load() != 0 {
			t.Errorf("expected cancelled task to not run, got %d", calls.Load())
		}
		if q.Len() != 0 {
			t.Errorf("expected empty queue, got %d", q.Len())
		}
		if id := q.After("close_poll", time.Hour, func(ctx context.Context) error { return nil }); id != "" {
			t.Errorf("expected closed queue to refuse entries, got %q", id)
		}
	})
}
