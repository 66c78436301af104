package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Supervisor keeps a long-running task alive. When the task returns an error
// or panics, it waits one interval and starts it again. A nil return or a
// cancelled context ends supervision.
type Supervisor struct {
	clock       Clock
	interval    time.Duration
	maxRestarts int // 0 = unlimited
	log         *zerolog.Logger

	mu       sync.Mutex
	restarts map[string]int
}

func NewSupervisor(clock Clock, interval time.Duration, maxRestarts int, logger *zerolog.Logger) *Supervisor {
	if clock == nil {
		clock = SystemClock()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	compLog := logger.With().Str("component", "Supervisor").Logger()
	return &Supervisor{
		clock:       clock,
		interval:    interval,
		maxRestarts: maxRestarts,
		log:         &compLog,
		restarts:    make(map[string]int),
	}
}

func (s *Supervisor) Run(ctx context.Context, name string, task func(ctx context.Context) error) error {
	for {
		err := s.runOnce(ctx, task)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			s.log.Info().Str("task", name).Msg("task finished")
			return nil
		}

		restarts := s.Restarts(name)
		s.log.Error().Err(err).Str("task", name).Int("restarts", restarts).Dur("retry_in", s.interval).Msg("task terminated abnormally")
		if s.maxRestarts > 0 && restarts >= s.maxRestarts {
			return fmt.Errorf("%w: %s gave up after %d restarts: %v", domain.ErrTaskFailed, name, restarts, err)
		}

		t := s.clock.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C():
		}

		s.mu.Lock()
		s.restarts[name]++
		s.mu.Unlock()
		metrics.IncTaskRestart(name)
		s.log.Warn().Str("task", name).Msg("restarting task")
	}
}

func (s *Supervisor) runOnce(ctx context.Context, task func(ctx context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: panic: %v", domain.ErrTaskFailed, r)
			}
		}()
		done <- task(ctx)
	}()
	return <-done
}

// Restarts returns how many times the named task was restarted.
func (s *Supervisor) Restarts(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts[name]
}
