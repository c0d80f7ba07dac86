package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/mockmate/internal/config"
	"github.com/stemsi/mockmate/internal/database"
	"github.com/stemsi/mockmate/internal/repository"
	"github.com/stemsi/mockmate/internal/service"
	"github.com/stemsi/mockmate/internal/worker"
)

// stores is the persistence layer selected by STORE_DRIVER.
type stores struct {
	questions service.QuestionStore
	tests     service.TestStore
	results   service.ResultStore
	answers   worker.AnswerStore
	ping      func(ctx context.Context) error
	close     func()
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	if cfg.StoreDriver == config.DriverSQLite {
		db, err := database.NewSQLite(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		store, err := repository.NewSQLiteStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &stores{
			questions: store,
			tests:     store,
			results:   store,
			answers:   store,
			ping:      db.PingContext,
			close:     func() { store.Close() },
		}, nil
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &stores{
		questions: repository.NewQuestionRepository(pool),
		tests:     repository.NewTestRepository(pool),
		results:   repository.NewResultRepository(pool),
		answers:   repository.NewAnswerRepository(pool),
		ping:      pool.Ping,
		close:     pool.Close,
	}, nil
}
