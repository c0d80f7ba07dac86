package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/mockmate/internal/config"
	"github.com/stemsi/mockmate/internal/exam"
	"github.com/stemsi/mockmate/internal/model"
)

// ResultService saves submitted sessions. Saving the same session again
// returns the original completion time.
type ResultService struct {
	results ResultStore
	rdb     *redis.Client
	log     zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(results ResultStore, rdb *redis.Client, log zerolog.Logger) *ResultService {
	return &ResultService{
		results: results,
		rdb:     rdb,
		log:     log.With().Str("component", "result_service").Logger(),
	}
}

// Save persists a result and clears the session's answer journal.
func (s *ResultService) Save(ctx context.Context, in model.ResultInput) (time.Time, error) {
	completedAt, err := s.results.SaveResult(ctx, in)
	if err != nil {
		return time.Time{}, exam.Transient("save result", fmt.Errorf("save result: %w", err))
	}

	if s.rdb != nil {
		if err := s.rdb.Del(ctx, config.CacheKey.SessionAnswersKey(in.SessionID.String())).Err(); err != nil {
			s.log.Warn().Err(err).Str("session_id", in.SessionID.String()).Msg("Failed to clear answer journal")
		}
	}
	return completedAt, nil
}
