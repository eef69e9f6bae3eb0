package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/examgate/examgate-backend/internal/config"
	"github.com/examgate/examgate-backend/internal/database"
	"github.com/examgate/examgate-backend/internal/handler"
	"github.com/examgate/examgate-backend/internal/logger"
	"github.com/examgate/examgate-backend/internal/repository"
	"github.com/examgate/examgate-backend/internal/router"
	"github.com/examgate/examgate-backend/internal/service"
	"github.com/examgate/examgate-backend/internal/validator"
	"github.com/examgate/examgate-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExamGate Backend")

	if cfg.TokenPepper == "" {
		log.Warn().Msg("TOKEN_PEPPER is empty; refresh token hashes are unpeppered")
	}

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	testRepo := repository.NewTestRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewStudentExamRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	tokenRepo := repository.NewRefreshTokenRepository(pool)
	accountRepo := repository.NewAccountRepository(pool)
	settingRepo := repository.NewSettingRepository(pool)
	sessionCache := repository.NewSessionCache(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	settingService := service.NewSettingService(settingRepo, rdb, log)
	refreshService := service.NewRefreshTokenService(tokenRepo, cfg.TokenPepper, cfg.RefreshTokenTTL, cfg.MaxRefreshTokens, log)
	authService := service.NewAuthService(accountRepo, refreshService, cfg.JWTSecret, cfg.JWTExpiry, cfg.BcryptCost, log)
	accountService := service.NewAccountService(accountRepo, cfg.BcryptCost, log)
	gradingService := service.NewGradingService(testRepo, sessionRepo, questionRepo, answerRepo, sessionCache, log)
	sessionService := service.NewExamSessionService(testRepo, sessionRepo, questionRepo, sessionCache, gradingService, log)
	testService := service.NewTestService(testRepo, questionRepo, sessionRepo, settingService, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, accountService),
		StudentPortal: handler.NewStudentPortalHandler(sessionService),
		Test:          handler.NewTestHandler(testService),
		Grading:       handler.NewGradingHandler(gradingService, sessionService),
		Account:       handler.NewAccountHandler(accountService),
		Setting:       handler.NewSettingHandler(settingService),
		Health:        handler.NewHealthHandler(pool, rdb),
	}
	services := &router.Services{
		Auth:    authService,
		Setting: settingService,
		Tests:   testRepo,
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	autosaveWorker := worker.NewAutosaveWorker(pool, rdb, log)
	tokenSweepWorker := worker.NewTokenSweepWorker(refreshService, cfg.TokenSweepInterval, log)
	reaperWorker := worker.NewSessionReaperWorker(sessionRepo, sessionService, cfg.SessionReapInterval, log)

	go autosaveWorker.Start(workerCtx)
	go tokenSweepWorker.Start(workerCtx)
	go reaperWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(services, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the answer queue to drain.
	workerCancel()
	time.Sleep(2 * time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
