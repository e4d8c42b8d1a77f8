package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openexam/openexam-backend/internal/config"
	"github.com/openexam/openexam-backend/internal/database"
	"github.com/openexam/openexam-backend/internal/handler"
	"github.com/openexam/openexam-backend/internal/logger"
	"github.com/openexam/openexam-backend/internal/repository"
	"github.com/openexam/openexam-backend/internal/router"
	"github.com/openexam/openexam-backend/internal/service"
	"github.com/openexam/openexam-backend/internal/validator"
	"github.com/openexam/openexam-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting OpenExam Backend")

	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Repositories
	paperRepo := repository.NewPaperRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	// Services
	authService := service.NewAuthService(userRepo, cfg, rdb)
	paperService := service.NewPaperService(paperRepo, questionRepo, sessionRepo, nil, log)
	questionService := service.NewQuestionService(questionRepo, questionRepo, log)
	gradingService := service.NewGradingService(sessionRepo, answerRepo, questionRepo, paperRepo, log)
	sessionService := service.NewExamSessionService(sessionRepo, paperRepo, answerRepo, gradingService, rdb, log)

	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Paper:    handler.NewPaperHandler(paperService),
		Exam:     handler.NewExamHandler(sessionService),
		Grading:  handler.NewGradingHandler(gradingService),
		Question: handler.NewQuestionHandler(questionService),
		WS:       handler.NewWSHandler(rdb, sessionService, log, cfg.AllowedOrigins),
	}

	// Background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())

	timeoutWorker := worker.NewTimeoutWorker(sessionService, cfg.TimeoutSweepInterval, log)
	behaviorWorker := worker.NewBehaviorWorker(sessionService, rdb, log)

	go timeoutWorker.Start(workerCtx)
	go behaviorWorker.Start(workerCtx)

	r := router.SetupRouter(authService, handlers, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

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

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
