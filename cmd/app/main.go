package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grid-agent-service/internal/config"
	"grid-agent-service/internal/domain/ports/repository"
	"grid-agent-service/internal/infra/db/memory"
	pg "grid-agent-service/internal/infra/db/postgres"
	"grid-agent-service/internal/infra/logging"
	"grid-agent-service/internal/infra/metrics"
	red "grid-agent-service/internal/infra/redis"
	"grid-agent-service/internal/infra/registry"
	"grid-agent-service/internal/infra/sched"
	"grid-agent-service/internal/infra/web"
	"grid-agent-service/internal/infra/worker"
	"grid-agent-service/internal/infra/workflow"
	"grid-agent-service/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, insecure cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Usage repository (Postgres optional) ----
	var usageRepo repository.UsageLogRepository
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connect failed")
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres migrate failed")
		}
		usageRepo = pg.NewUsageRepo(pool)
	} else {
		logger.Warn().Msg("database.url not set, usage records kept in memory")
		usageRepo = memory.NewUsageRepo()
	}

	// ---- Redis rate limiter (optional) ----
	var limiter *red.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set, rate limiting disabled")
	}

	// ---- Core ----
	factory := workflow.NewExecutorFactory(cfg.AI, usageRepo, logger)
	reg := registry.New(workflow.SelectMode, registry.Options{
		MaxPromptLen:  cfg.Jobs.MaxPromptLen,
		IdleTTL:       cfg.Jobs.IdleTTL,
		ChannelBuffer: cfg.Jobs.ChannelBuffer,
	}, logger)
	engine := workflow.NewEngine(reg, cfg.Jobs.StepDelay, logger)

	wpool := worker.NewPool(cfg.AI.ConcurrentLimit, logger)
	wpool.Start(ctx)
	defer wpool.Stop()

	jobUC := usecase.NewJobUseCase(reg, factory, engine, wpool, logger)
	usageUC := usecase.NewUsageUseCase(usageRepo, logger)

	// ---- Eviction sweep ----
	evictor := sched.NewEvictionWorker(cfg.Jobs.SweepInterval, reg, logger)
	go func() { _ = evictor.Run(ctx) }()

	// ---- Web ----
	var auth *web.AuthManager
	if cfg.Admin.JWTSecret != "" {
		auth = web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	}
	liveReady := factory.ServerCredentials().Usable()
	srv := web.NewServer(cfg, jobUC, usageUC, auth, limiter, liveReady, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	cancel()
}
