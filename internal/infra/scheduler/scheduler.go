package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// JobFunc is the body of a recurring job.
type JobFunc func(ctx context.Context) error

// JobInfo is a read-only view of a registered job.
type JobInfo struct {
	Name    string    `json:"name"`
	Trigger string    `json:"trigger"`
	NextRun time.Time `json:"next_run"`
}

type job struct {
	name    string
	trigger Trigger
	run     JobFunc
	next    time.Time
	index   int
}

type jobQueue []*job

func (q jobQueue) Len() int           { return len(q) }
func (q jobQueue) Less(i, j int) bool { return q[i].next.Before(q[j].next) }
func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *jobQueue) Push(x any) {
	j := x.(*job)
	j.index = len(*q)
	*q = append(*q, j)
}
func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*q = old[:n-1]
	return j
}

// Scheduler runs recurring jobs. Run polls the queue every tick; the queue
// lives on the Scheduler so a restarted Run continues where the last one
// stopped.
type Scheduler struct {
	clock Clock
	tick  time.Duration
	log   *zerolog.Logger

	mu    sync.Mutex
	queue jobQueue
	wg    sync.WaitGroup
}

func NewScheduler(clock Clock, tick time.Duration, logger *zerolog.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	if tick <= 0 {
		tick = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	compLog := logger.With().Str("component", "Scheduler").Logger()
	return &Scheduler{clock: clock, tick: tick, log: &compLog}
}

// Add registers a job and returns its first run time.
func (s *Scheduler) Add(name string, trigger Trigger, run JobFunc) time.Time {
	next := trigger.Next(s.clock.Now())
	s.mu.Lock()
	heap.Push(&s.queue, &job{name: name, trigger: trigger, run: run, next: next})
	s.mu.Unlock()
	s.log.Info().Str("job", name).Str("trigger", trigger.String()).Time("next_run", next).Msg("job scheduled")
	return next
}

// NextRun returns the earliest pending run.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return time.Time{}, false
	}
	return s.queue[0].next, true
}

func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.queue))
	for _, j := range s.queue {
		out = append(out, JobInfo{Name: j.name, Trigger: j.trigger.String(), NextRun: j.next})
	}
	return out
}

// RunPending starts every due job in its own goroutine, reschedules it and
// returns how many were started.
func (s *Scheduler) RunPending(ctx context.Context) int {
	due := s.reschedule(s.clock.Now())
	for _, j := range due {
		s.start(ctx, j.name, j.run, j.next)
	}
	return len(due)
}

// reschedule pops the due jobs and pushes them back with their next run.
// If a trigger panics, jobs not yet rescheduled go back with their old run
// time and the lock is released before the panic propagates.
func (s *Scheduler) reschedule(now time.Time) []*job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*job
	for len(s.queue) > 0 && !s.queue[0].next.After(now) {
		due = append(due, heap.Pop(&s.queue).(*job))
	}

	pushed := 0
	defer func() {
		if r := recover(); r != nil {
			for _, j := range due[pushed:] {
				heap.Push(&s.queue, j)
			}
			panic(r)
		}
	}()
	for _, j := range due {
		j.next = j.trigger.Next(now)
		heap.Push(&s.queue, j)
		pushed++
	}
	return due
}

func (s *Scheduler) start(ctx context.Context, name string, run JobFunc, next time.Time) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.IncJobRun(name, domain.ErrTaskFailed)
				s.log.Error().Str("job", name).Interface("panic", r).Msg("job panicked")
			}
		}()

		s.log.Debug().Str("job", name).Msg("job started")
		err := run(ctx)
		metrics.IncJobRun(name, err)
		if err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("job failed")
			return
		}
		s.log.Info().Str("job", name).Time("next_run", next).Msg("job finished")
	}()
}

// Run drives the queue until ctx is cancelled. A panic in the loop itself
// is returned as an error wrapping domain.ErrTaskFailed.
func (s *Scheduler) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: scheduler loop: %v", domain.ErrTaskFailed, r)
		}
	}()

	s.log.Info().Dur("tick", s.tick).Msg("Starting scheduler")
	for {
		s.RunPending(ctx)

		t := s.clock.NewTimer(s.tick)
		select {
		case <-ctx.Done():
			t.Stop()
			s.log.Info().Msg("Stopping scheduler")
			return ctx.Err()
		case <-t.C():
		}
	}
}

// Wait blocks until all started jobs have returned.
func (s *Scheduler) Wait() { s.wg.Wait() }
