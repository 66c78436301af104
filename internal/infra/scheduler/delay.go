package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"medication-reminder-bot/internal/domain/ports/adapter"
	"medication-reminder-bot/internal/infra/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

var _ adapter.Deferrer = (*DelayQueue)(nil)

// DelayedTask describes a queued one-shot task.
type DelayedTask struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Deadline time.Time `json:"deadline"`
}

// DelayQueue runs one-shot tasks after a delay. Entries live in memory only
// and are lost on restart. A failing task is logged and not retried.
type DelayQueue struct {
	clock  Clock
	log    *zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]DelayedTask
	closed  bool
	wg      sync.WaitGroup
}

func NewDelayQueue(parent context.Context, clock Clock, logger *zerolog.Logger) *DelayQueue {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	compLog := logger.With().Str("component", "DelayQueue").Logger()
	ctx, cancel := context.WithCancel(parent)
	return &DelayQueue{
		clock:   clock,
		log:     &compLog,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]DelayedTask),
	}
}

// After queues fn to run once delay has elapsed and returns the entry id.
// It returns "" when the queue is closed.
func (q *DelayQueue) After(kind string, delay time.Duration, fn func(ctx context.Context) error) string {
	task := DelayedTask{
		ID:       ulid.Make().String(),
		Kind:     kind,
		Deadline: q.clock.Now().Add(delay),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		metrics.IncDelayedTaskFinished(kind, "cancelled")
		q.log.Warn().Str("kind", kind).Msg("delay queue closed; task dropped")
		return ""
	}
	q.pending[task.ID] = task
	n := len(q.pending)
	q.wg.Add(1)
	q.mu.Unlock()
	metrics.SetDelayedTasksPending(n)

	timer := q.clock.NewTimer(delay)
	go q.wait(task, timer, fn)

	q.log.Debug().Str("id", task.ID).Str("kind", kind).Time("deadline", task.Deadline).Msg("task queued")
	return task.ID
}

func (q *DelayQueue) wait(task DelayedTask, timer Timer, fn func(ctx context.Context) error) {
	defer q.wg.Done()

	select {
	case <-q.ctx.Done():
		timer.Stop()
		q.remove(task.ID)
		metrics.IncDelayedTaskFinished(task.Kind, "cancelled")
		return
	case <-timer.C():
	}
	q.remove(task.ID)

	defer func() {
		if r := recover(); r != nil {
			metrics.IncDelayedTaskFinished(task.Kind, "error")
			q.log.Error().Str("id", task.ID).Str("kind", task.Kind).Interface("panic", r).Msg("delayed task panicked")
		}
	}()

	if err := fn(q.ctx); err != nil {
		metrics.IncDelayedTaskFinished(task.Kind, "error")
		q.log.Error().Err(err).Str("id", task.ID).Str("kind", task.Kind).Msg("delayed task failed")
		return
	}
	metrics.IncDelayedTaskFinished(task.Kind, "ok")
}

func (q *DelayQueue) remove(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	n := len(q.pending)
	q.mu.Unlock()
	metrics.SetDelayedTasksPending(n)
}

// Pending returns the waiting entries ordered by deadline.
func (q *DelayQueue) Pending() []DelayedTask {
	q.mu.Lock()
	out := make([]DelayedTask, 0, len(q.pending))
	for _, t := range q.pending {
		out = append(out, t)
	}
	q.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out
}

func (q *DelayQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close cancels waiting entries and waits for running ones to return.
func (q *DelayQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()
	q.wg.Wait()
}
