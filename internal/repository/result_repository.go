package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/mockmate/internal/model"
)

// ResultRepository handles test result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// SaveResult stores a submitted result once per session. Saving a session
// again returns the completion time of the first save.
func (r *ResultRepository) SaveResult(ctx context.Context, in model.ResultInput) (time.Time, error) {
	answers, topics, err := encodeResult(in)
	if err != nil {
		return time.Time{}, err
	}

	var completedAt time.Time
	err = r.pool.QueryRow(ctx,
		`INSERT INTO test_results (session_id, test_id, student_name, roll_number, started_at, answers,
		                           score, correct_answers, incorrect_answers, unanswered_questions,
		                           total_questions, percentage, time_taken_seconds, topic_wise_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (session_id) DO UPDATE SET session_id = EXCLUDED.session_id
		 RETURNING completed_at`,
		in.SessionID, in.TestID, in.StudentName, in.RollNumber, in.StartedAt, answers,
		in.Result.Score, in.Result.CorrectAnswers, in.Result.IncorrectAnswers, in.Result.UnansweredQuestions,
		in.Result.TotalQuestions, in.Result.Percentage, in.Result.TimeTakenSeconds, topics,
	).Scan(&completedAt)
	return completedAt, mapErr(err)
}

// ListResults returns a page of results for a test, newest first.
func (r *ResultRepository) ListResults(ctx context.Context, testID uuid.UUID, limit, offset int) ([]model.ResultRecord, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM test_results WHERE test_id = $1`, testID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, test_id, student_name, roll_number, started_at, completed_at, answers,
		        score, correct_answers, incorrect_answers, unanswered_questions,
		        total_questions, percentage, time_taken_seconds, topic_wise_score
		 FROM test_results WHERE test_id = $1
		 ORDER BY completed_at DESC, id
		 LIMIT $2 OFFSET $3`, testID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []model.ResultRecord
	for rows.Next() {
		var (
			rec             model.ResultRecord
			answers, topics []byte
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.TestID, &rec.StudentName, &rec.RollNumber,
			&rec.StartedAt, &rec.CompletedAt, &answers,
			&rec.Score, &rec.CorrectAnswers, &rec.IncorrectAnswers, &rec.UnansweredQuestions,
			&rec.TotalQuestions, &rec.Percentage, &rec.TimeTakenSeconds, &topics); err != nil {
			return nil, 0, err
		}
		if err := decodeResult(&rec, answers, topics); err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

func encodeResult(in model.ResultInput) (answers, topics []byte, err error) {
	if answers, err = json.Marshal(in.Answers); err != nil {
		return nil, nil, fmt.Errorf("encode answers: %w", err)
	}
	if topics, err = json.Marshal(in.Result.TopicWiseScore); err != nil {
		return nil, nil, fmt.Errorf("encode topic scores: %w", err)
	}
	return answers, topics, nil
}

func decodeResult(rec *model.ResultRecord, answers, topics []byte) error {
	if err := json.Unmarshal(answers, &rec.Answers); err != nil {
		return fmt.Errorf("decode answers of %s: %w", rec.SessionID, err)
	}
	if err := json.Unmarshal(topics, &rec.TopicWiseScore); err != nil {
		return fmt.Errorf("decode topic scores of %s: %w", rec.SessionID, err)
	}
	return nil
}
