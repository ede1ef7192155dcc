package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"referral-system/internal/codegen"
	"referral-system/internal/config"
	"referral-system/internal/db"
	"referral-system/internal/delivery"
	apihttp "referral-system/internal/http"
	"referral-system/internal/jobs/cleanup"
	"referral-system/internal/logger"
	"referral-system/internal/repository"
	"referral-system/internal/scheduler"
	"referral-system/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		zl.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	err = db.Ping(pingCtx, pool)
	cancelPing()
	if err != nil {
		zl.Fatal("db ping", zap.Error(err))
	}

	if err := db.Migrate(ctx, pool); err != nil {
		zl.Fatal("db migrate", zap.Error(err))
	}

	var tokenStore service.RefreshTokenStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			zl.Warn("redis ping failed, using in-memory refresh token store", zap.Error(err))
		} else {
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
	}

	userRepo := repository.NewPgUserRepository(pool)
	codeRepo := repository.NewPgVerificationCodeRepository(pool)
	gen := codegen.New()

	codeStore := service.NewVerificationStore(zl, codeRepo, gen, cfg.VerificationCode)
	registry := service.NewInviteRegistry(zl, userRepo, gen, cfg.InviteCode)
	sender := delivery.NewSimulatedSender(zl, cfg.SendCodeDelayMin, cfg.SendCodeDelayMax)
	authSvc := service.NewAuthService(zl, codeStore, registry, sender)
	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)

	sched := scheduler.New(zl, cfg.Scheduler.MaxWorkers)
	cleanupJob := cleanup.New(codeStore, zl)
	if err := sched.Add(scheduler.Job{
		Name:       cleanup.Name,
		Interval:   cfg.Scheduler.CleanupInterval(),
		RunOnStart: true,
		Run:        cleanupJob.Run,
	}); err != nil {
		zl.Fatal("register cleanup job", zap.Error(err))
	}
	if err := sched.Start(ctx); err != nil {
		zl.Fatal("start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	router := apihttp.NewRouter(
		zl,
		jwtSvc,
		apihttp.NewAuthHandler(zl, authSvc, jwtSvc, cfg.SessionCookieSecure),
		apihttp.NewProfileHandler(zl, registry),
		apihttp.NewHealthHandler(zl, pool),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zl.Warn("server shutdown", zap.Error(err))
		}
	}()

	zl.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zl.Fatal("server error", zap.Error(err))
	}
	zl.Info("server stopped")
}
