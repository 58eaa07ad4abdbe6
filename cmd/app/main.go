package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"UD_referral_program/internal/api"
	"UD_referral_program/internal/middleware"
	"UD_referral_program/internal/notify"
	"UD_referral_program/internal/ratelimit"
	"UD_referral_program/internal/repository"
	"UD_referral_program/internal/scheduler"
	"UD_referral_program/internal/service"
	"UD_referral_program/pkg/auth"
	"UD_referral_program/pkg/fingerprint"
	"UD_referral_program/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	if cfg.Database.Migrate {
		if err := repo.Migrate(); err != nil {
			zapLogger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	checks := map[string]api.Pinger{"database": repo}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = ratelimit.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()

		checks["redis"] = api.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	} else {
		zapLogger.Warn("redis is not configured, rate limits are enforced per instance")
	}

	limiters, err := newLimiters(redisClient, cfg.Referral)
	if err != nil {
		zapLogger.Fatal("Failed to initialize rate limiters", zap.Error(err))
	}

	hasher, err := fingerprint.NewHasher(cfg.Referral.Salt)
	if err != nil {
		zapLogger.Fatal("Failed to initialize fingerprint hasher", zap.Error(err))
	}

	var notifier service.Notifier = notify.Nop{}
	if cfg.Notify.Enabled() {
		tg, err := notify.NewTelegramNotifier(cfg.Notify)
		if err != nil {
			zapLogger.Error("Failed to initialize telegram notifier, notifications disabled", zap.Error(err))
		} else {
			notifier = tg
		}
	}

	rewardService := service.NewRewardService(repo, cfg.Referral.Tiers)
	referralService := service.NewReferralService(repo, rewardService, hasher, limiters, cfg.Referral)
	summaryService := service.NewSummaryService(repo, referralService, rewardService)
	leaderboardService := service.NewLeaderboardService(repo, cfg.Referral.LeaderboardSize)
	prizeService := service.NewPrizeService(repo, cfg.Referral.MonthlyPrize)
	jobRunner := service.NewJobRunner(leaderboardService, prizeService, referralService, notifier)

	telegramAuth := auth.NewTelegramAuth(cfg.TelegramAuth.TelegramBotToken, cfg.TelegramAuth.DebugMode)
	authorization := middleware.NewAuthorization(cfg.Cron.Secret)

	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		zapLogger.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
	}
	config.AllowHeaders = []string{"Authorization", "Content-Type", api.IdempotencyKeyHeader}
	config.ExposeHeaders = []string{"Retry-After"}
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))

	api.NewHealthRoutes(router, checks)

	a := router.Group("/api/v1")
	api.NewReferralRoutes(a, referralService, summaryService, telegramAuth)
	api.NewRewardRoutes(a, rewardService, telegramAuth)
	api.NewLeaderboardRoutes(a, leaderboardService, telegramAuth)
	api.NewCronRoutes(a, jobRunner, rewardService, authorization)

	if cfg.Cron.Enabled {
		sched, err := scheduler.New(cfg.Cron.Config, jobRunner)
		if err != nil {
			zapLogger.Fatal("Failed to initialize scheduler", zap.Error(err))
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				zapLogger.Error("Failed to stop scheduler", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shut down server gracefully", zap.Error(err))
	}
}

func newLimiters(client *redis.Client, cfg service.ProgramConfig) (service.Limiters, error) {
	click := ratelimit.Window{Name: "click", Limit: cfg.ClickLimit, Period: cfg.ClickWindow}
	complete := ratelimit.Window{Name: "complete", Limit: cfg.CompletionLimit, Period: cfg.CompletionWindow}

	if client == nil {
		clickLimiter, err := ratelimit.NewMemoryLimiter(click)
		if err != nil {
			return service.Limiters{}, err
		}
		completeLimiter, err := ratelimit.NewMemoryLimiter(complete)
		if err != nil {
			return service.Limiters{}, err
		}
		return service.Limiters{Click: clickLimiter, Completion: completeLimiter}, nil
	}

	clickLimiter, err := ratelimit.NewRedisLimiter(client, click)
	if err != nil {
		return service.Limiters{}, err
	}
	completeLimiter, err := ratelimit.NewRedisLimiter(client, complete)
	if err != nil {
		return service.Limiters{}, err
	}
	return service.Limiters{Click: clickLimiter, Completion: completeLimiter}, nil
}
