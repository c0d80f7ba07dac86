package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/mockmate/internal/model"
)

const testColumns = `id, code, name, description, start_date, end_date, duration_minutes,
	time_limit_minutes, randomize_questions, allow_review, show_correct_answers, created_at`

// TestRepository handles test data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// CreateTest inserts a test and its ordered question list in one transaction.
// A taken code yields ErrConflict.
func (r *TestRepository) CreateTest(ctx context.Context, t *model.Test) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO tests (code, name, description, start_date, end_date, duration_minutes,
			                    time_limit_minutes, randomize_questions, allow_review, show_correct_answers)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING id, created_at`,
			t.Code, t.Name, t.Description, t.StartDate, t.EndDate, t.DurationMinutes,
			t.TimeLimitMinutes, t.Settings.RandomizeQuestions, t.Settings.AllowReview, t.Settings.ShowCorrectAnswers,
		).Scan(&t.ID, &t.CreatedAt)
		if err != nil {
			return mapErr(err)
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"test_questions"},
			[]string{"test_id", "question_id", "position"},
			pgx.CopyFromSlice(len(t.Questions), func(i int) ([]any, error) {
				return []any{t.ID, t.Questions[i].ID, i}, nil
			}),
		)
		return mapErr(err)
	})
}

// TestByCode loads a test with its questions in authored order.
func (r *TestRepository) TestByCode(ctx context.Context, code string) (*model.Test, error) {
	t, err := scanTest(r.pool.QueryRow(ctx, `SELECT `+testColumns+` FROM tests WHERE code = $1`, code))
	if err != nil {
		return nil, mapErr(err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.text, q.options, q.correct_answer, q.topic, q.subject, q.difficulty, q.year, q.created_at
		 FROM test_questions tq
		 JOIN questions q ON q.id = tq.question_id
		 WHERE tq.test_id = $1
		 ORDER BY tq.position`, t.ID,
	)
	if err != nil {
		return nil, err
	}
	if t.Questions, err = collectQuestions(rows); err != nil {
		return nil, err
	}
	return t, nil
}

// ListOpenTests returns the tests that have not ended at now, without questions.
func (r *TestRepository) ListOpenTests(ctx context.Context, now time.Time) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+testColumns+` FROM tests
		 WHERE end_date IS NULL OR end_date >= $1
		 ORDER BY created_at DESC`, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, *t)
	}
	return tests, rows.Err()
}

func scanTest(row pgx.Row) (*model.Test, error) {
	t := &model.Test{}
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.Description, &t.StartDate, &t.EndDate, &t.DurationMinutes,
		&t.TimeLimitMinutes, &t.Settings.RandomizeQuestions, &t.Settings.AllowReview, &t.Settings.ShowCorrectAnswers, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}
