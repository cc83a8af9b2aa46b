// Package main - точка входа фонового процесса (Worker) Progress Hub.
//
// Worker отвечает за периодические задачи:
// - Прогрев кеша аналитических отчётов (сводка по классам, динамика прогресса)
//
// Интерактивные чтения при этом попадают в тёплый кеш вместо того, чтобы
// платить за пересчёт отчёта на каждом промахе.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schoolhub/progress-hub/config"
	"github.com/schoolhub/progress-hub/internal/application/query"
	"github.com/schoolhub/progress-hub/internal/domain/analytics"
	"github.com/schoolhub/progress-hub/internal/domain/repository"
	"github.com/schoolhub/progress-hub/internal/domain/student"
	"github.com/schoolhub/progress-hub/internal/infrastructure/persistence/memory"
	"github.com/schoolhub/progress-hub/internal/infrastructure/persistence/postgres"
	"github.com/schoolhub/progress-hub/internal/infrastructure/persistence/redis"
	"github.com/schoolhub/progress-hub/internal/infrastructure/scheduler"
	"github.com/schoolhub/progress-hub/internal/infrastructure/scheduler/jobs"
	"github.com/schoolhub/progress-hub/pkg/circuitbreaker"
	"github.com/schoolhub/progress-hub/pkg/logger"
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
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupSlog(cfg)
	log.Info("starting Progress Hub Worker",
		"env", string(cfg.App.Environment),
		"debug", cfg.App.Debug,
		"version", cfg.App.Version,
	)

	appLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. КЕШ ОТЧЁТОВ (Redis, при недоступности - процессный кеш)
	// ─────────────────────────────────────────────────────────────────────────
	var reportCache analytics.ReportCache
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, using in-process report cache", "error", err)
		} else {
			defer redisCache.Close()
			breaker := circuitbreaker.ReportCacheBreaker(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					"breaker", name, "from", from.String(), "to", to.String())
			})
			reportCache = redis.NewReportCache(redisCache, breaker)
			log.Info("Redis connection established")
		}
	}
	if reportCache == nil {
		reportCache = memory.NewReportCache()
		log.Info("using in-process report cache")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	repoOpts := repository.Options{
		EnforceTenant: cfg.Features.IsEnabled(config.FeatureTenantIsolation, nil),
	}
	studentRepo := student.NewRepository(postgres.NewStudentStore(dbConn), repoOpts)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ОБРАБОТЧИКИ ОТЧЁТОВ
	// ─────────────────────────────────────────────────────────────────────────
	classSummary := query.NewGetClassSummaryHandler(studentRepo, reportCache, appLog).
		WithPolicy(cfg.Analytics.SummaryPolicy())
	progressTrends := query.NewGetProgressTrendsHandler(studentRepo, reportCache, appLog).
		WithPolicy(cfg.Analytics.TrendsPolicy()).
		WithTrendWindow(cfg.Analytics.TrendWindowMonths)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ПЛАНИРОВЩИК И ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled && cfg.Features.IsEnabled(config.FeatureReportWarmer, nil) {
		log.Info("starting scheduler...")
		schedConfig := scheduler.DefaultSchedulerConfig()
		schedConfig.Logger = log
		schedConfig.MaxConcurrentJobs = cfg.Scheduler.MaxConcurrentJobs
		sched := scheduler.NewScheduler(schedConfig)

		refreshJob := jobs.NewRefreshReportsJob(classSummary, progressTrends, log,
			jobs.RefreshReportsConfig{
				Timeout:            cfg.Scheduler.JobTimeout,
				Tenants:            cfg.Scheduler.WarmTenants,
				SkipClassSummary:   !cfg.Features.IsEnabled(config.FeatureReportClassSummaryCache, nil),
				SkipProgressTrends: !cfg.Features.IsEnabled(config.FeatureReportTrendsCache, nil),
			})
		var schedule scheduler.Schedule = scheduler.NewWarmupIntervalSchedule(cfg.Scheduler.RefreshReportsInterval)
		if expr := cfg.Scheduler.RefreshReportsCron; expr != "" {
			schedule, err = scheduler.ParseCronExpression(expr)
			if err != nil {
				return fmt.Errorf("invalid refresh cron expression: %w", err)
			}
		}
		if err := sched.Register(refreshJob, schedule); err != nil {
			return fmt.Errorf("failed to register refresh job: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
	} else {
		log.Info("scheduler disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Progress Hub Worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	log.Info("shutdown completed successfully")
	return nil
}

// setupSlog настраивает структурированное логирование процесса.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.IsProduction() || cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
