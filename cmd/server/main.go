package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/mockmate/internal/config"
	"github.com/stemsi/mockmate/internal/database"
	"github.com/stemsi/mockmate/internal/exam"
	"github.com/stemsi/mockmate/internal/handler"
	"github.com/stemsi/mockmate/internal/logger"
	"github.com/stemsi/mockmate/internal/router"
	"github.com/stemsi/mockmate/internal/service"
	"github.com/stemsi/mockmate/internal/validator"
	"github.com/stemsi/mockmate/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Str("log_level", cfg.LogLevel).
		Msg("Starting MockMate")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Store ────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to open store")
	}
	defer st.close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Services ──────────────────────────────────────────
	questionService := service.NewQuestionService(st.questions, log)
	testService := service.NewTestService(st.tests, st.questions, st.results, rdb, cfg.TestCacheTTL, log)
	resultService := service.NewResultService(st.results, rdb, log)
	journal := service.NewAnswerJournal(rdb, cfg.TestCacheTTL)

	sessionCfg := exam.ControllerConfig{
		Machine: exam.Options{
			PauseWhenHidden: cfg.PauseOnHidden,
			SaveRetryTicks:  cfg.SaveRetryTicks,
		},
		SaveTimeout: cfg.SaveTimeout,
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Question: handler.NewQuestionHandler(questionService),
		Test:     handler.NewTestHandler(testService),
		Session:  handler.NewSessionHandler(testService, resultService, journal, sessionCfg, log, cfg.AllowedOrigins),
		Monitor:  handler.NewMonitorHandler(journal, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	autosaveWorker := worker.NewAutosaveWorker(st.answers, rdb, log)
	go func() {
		defer close(workerDone)
		autosaveWorker.Start(workerCtx)
	}()

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every test that has not ended before accepting traffic.
	if err := testService.PrewarmCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	checks := map[string]router.HealthCheck{
		"store": st.ping,
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	r := router.SetupRouter(handlers, rdb, checks, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout). Hijacked websocket
	// connections are not tracked by Shutdown and end with the process.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the autosave worker and wait for the queue to drain.
	workerCancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Autosave worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
