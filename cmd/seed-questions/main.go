package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/mockmate/internal/config"
	"github.com/stemsi/mockmate/internal/database"
	"github.com/stemsi/mockmate/internal/logger"
	"github.com/stemsi/mockmate/internal/repository"
	"github.com/stemsi/mockmate/internal/seed"
	"github.com/stemsi/mockmate/internal/service"
)

func main() {
	var file string
	flag.StringVar(&file, "file", "", "Path to the YAML question bank")
	flag.Parse()
	if file == "" {
		fmt.Fprintln(os.Stderr, "Usage: seed-questions -file bank.yaml")
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.Component(logger.Setup(cfg.LogLevel, cfg.LogFormat), "seed")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	f, err := os.Open(file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open seed file")
	}
	bank, err := seed.Parse(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("Invalid seed file")
	}

	var (
		questions service.QuestionStore
		tests     service.TestStore
		results   service.ResultStore
	)
	if cfg.StoreDriver == config.DriverSQLite {
		db, err := database.NewSQLite(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open SQLite")
		}
		store, err := repository.NewSQLiteStore(ctx, db)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare SQLite schema")
		}
		defer store.Close()
		questions, tests, results = store, store, store
	} else {
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		questions = repository.NewQuestionRepository(pool)
		tests = repository.NewTestRepository(pool)
		results = repository.NewResultRepository(pool)
	}

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	sum, err := seed.Apply(ctx, bank,
		service.NewQuestionService(questions, log),
		service.NewTestService(tests, questions, results, rdb, cfg.TestCacheTTL, log),
	)
	if err != nil {
		log.Error().Err(err).Msg("Seeding stopped")
	}
	if sum != nil {
		for name, code := range sum.Tests {
			log.Info().Str("test", name).Str("code", code).Msg("Test created")
		}
		log.Info().Int("questions", sum.Questions).Int("tests", len(sum.Tests)).Msg("Seeding finished")
	}
	if err != nil {
		os.Exit(1)
	}
}
