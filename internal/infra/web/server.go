package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"medication-reminder-bot/internal/domain/model"
	"medication-reminder-bot/internal/infra/scheduler"
)

// ---- small interfaces over the use cases and scheduler ----

type StreakService interface {
	Find(ctx context.Context, userID int64) (*model.UserStreak, error)
	Reset(ctx context.Context, userID int64, now time.Time) error
}

type PollFinder interface {
	Find(ctx context.Context, pollID string) (*model.PollRecord, error)
}

type JobLister interface {
	Jobs() []scheduler.JobInfo
}

type TaskLister interface {
	Pending() []scheduler.DelayedTask
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the admin HTTP surface: health, metrics and a small JWT protected API.
type Server struct {
	streaks StreakService
	polls   PollFinder
	jobs    JobLister
	tasks   TaskLister
	db      Pinger
	auth    *AuthManager
	now     func() time.Time
	log     *zerolog.Logger
}

func NewServer(
	streaks StreakService,
	polls PollFinder,
	jobs JobLister,
	tasks TaskLister,
	db Pinger,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "AdminServer").Logger()
	return &Server{
		streaks: streaks,
		polls:   polls,
		jobs:    jobs,
		tasks:   tasks,
		db:      db,
		auth:    auth,
		now:     time.Now,
		log:     &l,
	}
}

// Router sets up the routing for the admin API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log), Timeout(10*time.Second))

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/streaks/{userID}", s.streakGetHandler)
		r.Delete("/streaks/{userID}", s.streakResetHandler)
		r.Get("/polls/{pollID}", s.pollGetHandler)
		r.Get("/scheduler", s.schedulerHandler)
	})
	return r
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("admin server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
