package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prepdesk/examtake/internal/cache"
	"github.com/prepdesk/examtake/internal/config"
	"github.com/prepdesk/examtake/internal/database"
	"github.com/prepdesk/examtake/internal/gateway"
	"github.com/prepdesk/examtake/internal/handler"
	"github.com/prepdesk/examtake/internal/logger"
	"github.com/prepdesk/examtake/internal/router"
	"github.com/prepdesk/examtake/internal/service"
	"github.com/prepdesk/examtake/internal/validator"
	"github.com/prepdesk/examtake/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("exam_api", cfg.ExamAPIBaseURL).
		Msg("Starting ExamTake")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Stores and Gateway ─────────────────────────────────
	api := gateway.NewClient(cfg, log)
	answeredStore := cache.NewRedisAnsweredStore(rdb, log)
	progressStore := cache.NewRedisProgressStore(rdb, log)
	resultStore := cache.NewRedisResultStore(rdb, log)

	// ─── Initialize Services ──────────────────────────────────────────
	attemptService := service.NewAttemptService(api, answeredStore, progressStore, resultStore, cfg.SessionIdleTimeout, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Attempt: handler.NewAttemptHandler(attemptService, log),
		WS:      handler.NewWSHandler(attemptService, cfg.ClockTick, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	clockWorker := worker.NewClockWorker(attemptService, cfg.ClockTick, log)
	go clockWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

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

	// 2. Stop the clock worker, then close live sessions so resume
	// pointers and answered-sets are already durable in Redis.
	workerCancel()
	attemptService.CloseAll()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
