package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/mockmate/internal/model"
)

// AnswerRepository persists the per-answer journal of live sessions.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// UpsertAnswer stores the latest answer for a session question. An event
// older than the stored one is ignored.
func (r *AnswerRepository) UpsertAnswer(ctx context.Context, ev model.AnswerEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_answers (session_id, question_id, test_id, selected_option, is_bookmarked, answered_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET selected_option = EXCLUDED.selected_option,
		     is_bookmarked = EXCLUDED.is_bookmarked,
		     answered_at = EXCLUDED.answered_at
		 WHERE session_answers.answered_at <= EXCLUDED.answered_at`,
		ev.SessionID, ev.QuestionID, ev.TestID, ev.SelectedOption, ev.IsBookmarked, ev.AnsweredAt,
	)
	return mapErr(err)
}
