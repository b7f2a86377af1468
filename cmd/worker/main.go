// Package main - точка входа фонового процесса (Worker) рейтинга сезонов.
//
// Worker отвечает за периодический пересчёт рейтинга активного сезона:
// агрегацию сигналов, композитный счёт, тиры, плотные ранги и обновление
// горячей проекции лидерборда в Redis.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lumen-live/season-ranking/config"
	"github.com/lumen-live/season-ranking/internal/application/command"
	"github.com/lumen-live/season-ranking/internal/infrastructure/messaging"
	"github.com/lumen-live/season-ranking/internal/infrastructure/persistence/postgres"
	"github.com/lumen-live/season-ranking/internal/infrastructure/persistence/redis"
	"github.com/lumen-live/season-ranking/internal/infrastructure/scheduler"
	"github.com/lumen-live/season-ranking/internal/infrastructure/scheduler/jobs"
	"github.com/lumen-live/season-ranking/pkg/circuitbreaker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting season ranking worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolSettings{
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinIdleConns:    int32(cfg.Database.MinIdleConns),
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if cfg.Database.MigrateOnStart {
		log.Info("checking database migrations...")
		if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (горячая проекция лидерборда)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis...")
	redisCache, err := redis.NewCache(redisConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisCache.Close()

	cacheBreaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	})
	leaderboardCache := redis.NewLeaderboardCache(redisCache, cacheBreaker)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS И ПОДПИСЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultEventBusConfig()
	busConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	rewardListener := messaging.NewRewardFulfillmentListener(log)
	if err := rewardListener.Attach(eventBus); err != nil {
		return fmt.Errorf("failed to attach reward listener: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. РЕПОЗИТОРИИ И ОРКЕСТРАТОР ПЕРЕСЧЁТА
	// ─────────────────────────────────────────────────────────────────────────
	seasonRepo := postgres.NewSeasonRepository(dbConn)
	entryRepo := postgres.NewEntryRepository(dbConn)
	signalStore := postgres.NewSignalStore(dbConn)
	recalcLock := postgres.NewRecalcLock(dbConn)

	recalcHandler := command.NewRecalculateSeasonHandler(
		seasonRepo, signalStore, entryRepo, leaderboardCache, recalcLock,
		eventBus, log,
		command.RecalculateConfig{
			ChunkSize:    cfg.Recalc.ChunkSize,
			Parallelism:  cfg.Recalc.Parallelism,
			LockTTL:      cfg.Recalc.LockTTL,
			WriteRetries: cfg.Recalc.WriteRetries,
			CacheTTL:     cfg.Recalc.CacheTTL,
		},
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler is disabled, worker has nothing to do")
		return nil
	}

	sched := scheduler.New(scheduler.Config{Logger: log})

	recalcJob := jobs.NewRecalculateRankingsJob(recalcHandler, log)
	recalcJob.Timeout = cfg.Scheduler.JobTimeout

	var schedule scheduler.Schedule
	if cfg.Scheduler.RecalcInterval > 0 {
		schedule = scheduler.NewIntervalSchedule(cfg.Scheduler.RecalcInterval)
	} else {
		schedule = scheduler.NewDailySchedule(cfg.Scheduler.RecalcDailyHour, cfg.Scheduler.RecalcDailyMinute)
	}

	if err := sched.Register(recalcJob, schedule); err != nil {
		return fmt.Errorf("failed to register recalculation job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	log.Info("season ranking worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	if err := sched.Stop(); err != nil {
		log.Error("scheduler stop failed", "error", err)
	}

	if pending := rewardListener.PendingCount(); pending > 0 {
		log.Info("pending rewards remain in queue, fulfillment will re-read the ledger",
			"pending", pending)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

// redisConfig переводит конфигурацию приложения в конфигурацию клиента.
func redisConfig(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	return rc
}
