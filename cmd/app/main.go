// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"medication-reminder-bot/internal/application"
	"medication-reminder-bot/internal/config"
	"medication-reminder-bot/internal/domain/ports/repository"
	tele "medication-reminder-bot/internal/infra/adapters/telegram"
	pg "medication-reminder-bot/internal/infra/db/postgres"
	"medication-reminder-bot/internal/infra/db/sqlite"
	"medication-reminder-bot/internal/infra/i18n"
	"medication-reminder-bot/internal/infra/logging"
	"medication-reminder-bot/internal/infra/metrics"
	red "medication-reminder-bot/internal/infra/redis"
	"medication-reminder-bot/internal/infra/sched"
	"medication-reminder-bot/internal/infra/scheduler"
	"medication-reminder-bot/internal/infra/web"
	"medication-reminder-bot/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

// store is what main needs from either database backend.
type store struct {
	streaks repository.StreakRepository
	polls   repository.PollRepository
	ping    func(ctx context.Context) error
	stats   sched.PoolStatsFunc
	close   func()
}

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, token optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Str("commit", commit).Bool("dev", cfg.Runtime.Dev).Msg("starting medication reminder bot")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Store ----
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open store")
	}
	defer st.close()

	// ---- Redis (optional) ----
	var (
		streakRepo  = st.streaks
		guard       red.Locker
		rateLimiter *red.RateLimiter
	)
	if cfg.Redis.Enabled() {
		rc, err := red.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rc.Close()
		streakRepo = red.NewStreakCache(st.streaks, rc, cfg.Redis.TTL, logger)
		guard = red.NewLocker(rc)
		rateLimiter = red.NewRateLimiter(rc, cfg.Bot.RateLimitPerMinute, time.Minute)
	} else {
		guard = red.NewMemoryLocker(time.Now)
		logger.Info().Msg("redis not configured; using in-process dispatch guard")
	}

	translator, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Language)
	if err != nil {
		logger.Fatal().Err(err).Str("language", cfg.Bot.Language).Msg("failed to load translations")
	}

	// ---- Telegram ----
	var bot tele.Bot
	if cfg.Bot.Mode == "noop" {
		bot = tele.NewNoopBotAdapter(logger)
	} else {
		bot, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, translator, rateLimiter, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to start telegram bot")
		}
	}

	// ---- Scheduling primitives ----
	clock := scheduler.SystemClock()
	delayQueue := scheduler.NewDelayQueue(ctx, clock, logger)
	recurring := scheduler.NewScheduler(clock, cfg.Schedule.Tick, logger)
	supervisor := scheduler.NewSupervisor(clock, cfg.Schedule.SupervisorTick, cfg.Schedule.MaxRestarts, logger)

	// ---- Use cases ----
	streakUC := usecase.NewStreakUseCase(streakRepo, logger)
	pollUC := usecase.NewPollUseCase(bot, st.polls, delayQueue, translator, cfg.Schedule.CloseAfter, time.Now, logger)

	dailyJob := sched.NewDailyPollJob(cfg.Destinations, pollUC, guard, cfg.Schedule.Location(), time.Now, logger)
	dailyJob.Register(recurring, cfg.Schedule.Daily())
	recurring.Add("store_connections", scheduler.Every(15*time.Second), sched.PoolStatsJob(cfg.Database.Driver, st.stats))

	// ---- Facade ----
	facade := application.NewBotFacade(
		streakUC, pollUC, bot, delayQueue, dailyJob, delayQueue, translator,
		application.FacadeOptions{
			DailyTime:     cfg.Schedule.DailyTime,
			FollowUpAfter: cfg.Schedule.FollowUpAfter,
			Location:      cfg.Schedule.Location(),
		},
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := supervisor.Run(gctx, "scheduler", recurring.Run)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return bot.StartPolling(gctx, facade)
	})

	// ---- Admin HTTP ----
	if cfg.Admin.Port > 0 {
		auth := web.NewAuthManager(cfg.Admin.JWTSecret, 24*time.Hour)
		if cfg.Runtime.Dev && auth.Enabled() {
			if tok, err := auth.Mint("dev"); err == nil {
				logger.Info().Str("token", tok).Msg("dev admin token")
			}
		}
		srv := web.NewServer(streakUC, pollUC, recurring, delayQueue, pingFunc(st.ping), auth, logger)
		g.Go(func() error {
			return srv.Run(gctx, fmt.Sprintf(":%d", cfg.Admin.Port))
		})
	}

	err = g.Wait()

	// ---- Graceful shutdown ----
	delayQueue.Close()
	recurring.Wait()
	if err != nil {
		logger.Error().Err(err).Msg("stopped with error")
		return
	}
	logger.Info().Msg("shutdown complete")
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := pg.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &store{
			streaks: pg.NewStreakRepo(pool),
			polls:   pg.NewPollRepo(pool),
			ping:    pool.Ping,
			stats:   pgxStats(pool),
			close:   pool.Close,
		}, nil
	default:
		s, err := sqlite.Open(ctx, cfg.Database.Path, logger)
		if err != nil {
			return nil, err
		}
		return &store{
			streaks: sqlite.NewStreakRepo(s),
			polls:   sqlite.NewPollRepo(s),
			ping:    s.Ping,
			stats: func() (int32, int32, int32) {
				st := s.Stats()
				return int32(st.OpenConnections), int32(st.Idle), int32(st.InUse)
			},
			close: func() { _ = s.Close() },
		}, nil
	}
}

func pgxStats(pool *pgxpool.Pool) sched.PoolStatsFunc {
	return func() (int32, int32, int32) {
		s := pool.Stat()
		return s.TotalConns(), s.IdleConns(), s.AcquiredConns()
	}
}
