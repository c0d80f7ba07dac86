package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/mockmate/internal/model"
)

const questionColumns = `id, text, options, correct_answer, topic, subject, difficulty, year, created_at`

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// CreateQuestion inserts a question and fills its id and creation time.
func (r *QuestionRepository) CreateQuestion(ctx context.Context, q *model.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO questions (text, options, correct_answer, topic, subject, difficulty, year)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		q.Text, options, q.CorrectAnswer, q.Topic, q.Subject, string(q.Difficulty), q.Year,
	).Scan(&q.ID, &q.CreatedAt)
	return mapErr(err)
}

// ListQuestions returns a filtered page of the bank and the total match count.
func (r *QuestionRepository) ListQuestions(ctx context.Context, f model.QuestionFilter) ([]model.Question, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, placeholder(len(args))))
	}
	if f.Subject != "" {
		add("subject = %s", f.Subject)
	}
	if f.Topic != "" {
		add("topic = %s", f.Topic)
	}
	if f.Difficulty != "" {
		add("difficulty = %s", f.Difficulty)
	}
	if f.Year != nil {
		add("year = %s", *f.Year)
	}
	if f.Search != "" {
		add("text ILIKE %s", "%"+f.Search+"%")
	}

	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	// 1. Get total count
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`+filter, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// 2. Get paginated data
	query := `SELECT ` + questionColumns + ` FROM questions` + filter +
		` ORDER BY created_at DESC, id LIMIT ` + placeholder(len(args)+1) + ` OFFSET ` + placeholder(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	questions, err := collectQuestions(rows)
	return questions, total, err
}

// QuestionsByIDs loads the given questions. Missing ids are skipped.
func (r *QuestionRepository) QuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

func collectQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func scanQuestion(row pgx.Row) (model.Question, error) {
	var (
		q          model.Question
		options    []byte
		difficulty string
	)
	if err := row.Scan(&q.ID, &q.Text, &options, &q.CorrectAnswer, &q.Topic, &q.Subject, &difficulty, &q.Year, &q.CreatedAt); err != nil {
		return q, err
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return q, fmt.Errorf("decode options of %s: %w", q.ID, err)
	}
	q.Difficulty = model.Difficulty(difficulty)
	return q, nil
}
