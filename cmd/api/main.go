// Package main - точка входа HTTP API рейтинга сезонов.
//
// API обслуживает публичные чтения (лидерборд, ранг криейтора, статус
// сезона) и административные операции (создание и завершение сезона,
// переопределение конфигурации, ручной пересчёт).
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
	"github.com/lumen-live/season-ranking/internal/application/query"
	"github.com/lumen-live/season-ranking/internal/infrastructure/messaging"
	"github.com/lumen-live/season-ranking/internal/infrastructure/persistence/postgres"
	"github.com/lumen-live/season-ranking/internal/infrastructure/persistence/redis"
	httpiface "github.com/lumen-live/season-ranking/internal/interface/http"
	"github.com/lumen-live/season-ranking/internal/interface/http/handlers"
	"github.com/lumen-live/season-ranking/pkg/circuitbreaker"
	"github.com/lumen-live/season-ranking/pkg/logger"
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
	log.Info("starting season ranking API",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

	httpLog := logger.New(os.Stdout, logger.ParseLevel(cfg.App.LogLevel))

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
	// 4. EVENT BUS
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
	// 5. РЕПОЗИТОРИИ И ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	seasonRepo := postgres.NewSeasonRepository(dbConn)
	entryRepo := postgres.NewEntryRepository(dbConn)
	signalStore := postgres.NewSignalStore(dbConn)
	rewardRepo := postgres.NewRewardRepository(dbConn)
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

	deps := httpiface.Dependencies{
		GetLeaderboardHandler:  query.NewGetLeaderboardHandler(seasonRepo, entryRepo, leaderboardCache, log),
		GetCreatorRankHandler:  query.NewGetCreatorRankHandler(seasonRepo, entryRepo, leaderboardCache, log),
		GetSeasonStatusHandler: query.NewGetSeasonStatusHandler(seasonRepo, rewardRepo, log),

		CreateSeasonHandler:   command.NewCreateSeasonHandler(seasonRepo, eventBus, log),
		EndSeasonHandler:      command.NewEndSeasonHandler(seasonRepo, entryRepo, rewardRepo, leaderboardCache, recalcHandler, eventBus, log),
		OverrideConfigHandler: command.NewOverrideConfigHandler(seasonRepo, recalcHandler, eventBus, log),
		RecalculateHandler:    recalcHandler,

		Logger:        httpLog,
		HealthChecker: buildHealthChecker(cfg, dbConn, redisCache),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverConfig := httpiface.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.EnableCORS = cfg.HTTP.EnableCORS
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverConfig.AdminTokenHash = cfg.HTTP.AdminTokenHash

	server := httpiface.NewServer(serverConfig, deps)

	log.Info("starting HTTP server", "address", serverConfig.Address())
	serverErrCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErrCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
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

// buildHealthChecker собирает проверки живости внешних зависимостей.
func buildHealthChecker(cfg *config.Config, dbConn *postgres.Connection, cache *redis.Cache) handlers.HealthChecker {
	hc := handlers.NewCompositeHealthChecker(cfg.App.Version)
	hc.AddCheck("postgres", func(ctx context.Context) error {
		return dbConn.Ping(ctx)
	})
	hc.AddCheck("redis", func(ctx context.Context) error {
		return cache.Ping(ctx)
	})
	return hc
}
