package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/mockmate/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS questions (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    options TEXT NOT NULL,
    correct_answer INTEGER NOT NULL,
    topic TEXT NOT NULL,
    subject TEXT NOT NULL DEFAULT '',
    difficulty TEXT NOT NULL DEFAULT 'medium',
    year INTEGER,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tests (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    start_date TEXT,
    end_date TEXT,
    duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
    time_limit_minutes INTEGER NOT NULL DEFAULT 0,
    randomize_questions BOOLEAN NOT NULL DEFAULT FALSE,
    allow_review BOOLEAN NOT NULL DEFAULT FALSE,
    show_correct_answers BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS test_questions (
    test_id TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
    question_id TEXT NOT NULL REFERENCES questions(id),
    position INTEGER NOT NULL,
    PRIMARY KEY (test_id, question_id)
);

CREATE TABLE IF NOT EXISTS test_results (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL UNIQUE,
    test_id TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
    student_name TEXT NOT NULL,
    roll_number TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL,
    completed_at TEXT NOT NULL,
    answers TEXT NOT NULL,
    score INTEGER NOT NULL,
    correct_answers INTEGER NOT NULL,
    incorrect_answers INTEGER NOT NULL,
    unanswered_questions INTEGER NOT NULL,
    total_questions INTEGER NOT NULL,
    percentage INTEGER NOT NULL,
    time_taken_seconds INTEGER NOT NULL,
    topic_wise_score TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_answers (
    session_id TEXT NOT NULL,
    question_id TEXT NOT NULL,
    test_id TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
    selected_option INTEGER NOT NULL,
    is_bookmarked BOOLEAN NOT NULL DEFAULT FALSE,
    answered_at TEXT NOT NULL,
    PRIMARY KEY (session_id, question_id)
);
`

// SQLiteStore implements every store on an embedded SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore applies the schema to db and returns the store.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Questions
// ============================================================================

func (s *SQLiteStore) CreateQuestion(ctx context.Context, q *model.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	q.ID = uuid.New()
	q.CreatedAt = s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO questions (id, text, options, correct_answer, topic, subject, difficulty, year, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Text, string(options), q.CorrectAnswer, q.Topic, q.Subject, string(q.Difficulty), q.Year, formatTime(q.CreatedAt),
	)
	return sqliteErr(err)
}

func (s *SQLiteStore) ListQuestions(ctx context.Context, f model.QuestionFilter) ([]model.Question, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		where = append(where, cond)
		args = append(args, v)
	}
	if f.Subject != "" {
		add("subject = ?", f.Subject)
	}
	if f.Topic != "" {
		add("topic = ?", f.Topic)
	}
	if f.Difficulty != "" {
		add("difficulty = ?", f.Difficulty)
	}
	if f.Year != nil {
		add("year = ?", *f.Year)
	}
	if f.Search != "" {
		add("text LIKE ?", "%"+f.Search+"%")
	}

	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`+filter, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions`+filter+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	questions, err := sqliteQuestions(rows)
	return questions, total, err
}

func (s *SQLiteStore) QuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id IN (`+marks(len(ids))+`)`, args...,
	)
	if err != nil {
		return nil, err
	}
	return sqliteQuestions(rows)
}

// ============================================================================
// Tests
// ============================================================================

func (s *SQLiteStore) CreateTest(ctx context.Context, t *model.Test) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t.ID = uuid.New()
	t.CreatedAt = s.now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO tests (id, code, name, description, start_date, end_date, duration_minutes,
		                    time_limit_minutes, randomize_questions, allow_review, show_correct_answers, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Code, t.Name, t.Description, formatTimePtr(t.StartDate), formatTimePtr(t.EndDate), t.DurationMinutes,
		t.TimeLimitMinutes, t.Settings.RandomizeQuestions, t.Settings.AllowReview, t.Settings.ShowCorrectAnswers, formatTime(t.CreatedAt),
	)
	if err != nil {
		return sqliteErr(err)
	}

	for i, q := range t.Questions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO test_questions (test_id, question_id, position) VALUES (?, ?, ?)`,
			t.ID, q.ID, i,
		); err != nil {
			return sqliteErr(err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) TestByCode(ctx context.Context, code string) (*model.Test, error) {
	t, err := sqliteTest(s.db.QueryRowContext(ctx, `SELECT `+testColumns+` FROM tests WHERE code = ?`, code))
	if err != nil {
		return nil, sqliteErr(err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT q.id, q.text, q.options, q.correct_answer, q.topic, q.subject, q.difficulty, q.year, q.created_at
		 FROM test_questions tq
		 JOIN questions q ON q.id = tq.question_id
		 WHERE tq.test_id = ?
		 ORDER BY tq.position`, t.ID,
	)
	if err != nil {
		return nil, err
	}
	if t.Questions, err = sqliteQuestions(rows); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) ListOpenTests(ctx context.Context, now time.Time) ([]model.Test, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+testColumns+` FROM tests WHERE end_date IS NULL OR end_date >= ? ORDER BY created_at DESC`,
		formatTime(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		t, err := sqliteTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, *t)
	}
	return tests, rows.Err()
}

// ============================================================================
// Results
// ============================================================================

func (s *SQLiteStore) SaveResult(ctx context.Context, in model.ResultInput) (time.Time, error) {
	answers, topics, err := encodeResult(in)
	if err != nil {
		return time.Time{}, err
	}

	var completedAt string
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO test_results (id, session_id, test_id, student_name, roll_number, started_at, completed_at, answers,
		                           score, correct_answers, incorrect_answers, unanswered_questions,
		                           total_questions, percentage, time_taken_seconds, topic_wise_score)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id) DO UPDATE SET session_id = excluded.session_id
		 RETURNING completed_at`,
		uuid.New(), in.SessionID, in.TestID, in.StudentName, in.RollNumber, formatTime(in.StartedAt), formatTime(s.now()),
		string(answers), in.Result.Score, in.Result.CorrectAnswers, in.Result.IncorrectAnswers, in.Result.UnansweredQuestions,
		in.Result.TotalQuestions, in.Result.Percentage, in.Result.TimeTakenSeconds, string(topics),
	).Scan(&completedAt)
	if err != nil {
		return time.Time{}, sqliteErr(err)
	}
	return parseTime(completedAt)
}

func (s *SQLiteStore) ListResults(ctx context.Context, testID uuid.UUID, limit, offset int) ([]model.ResultRecord, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM test_results WHERE test_id = ?`, testID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, test_id, student_name, roll_number, started_at, completed_at, answers,
		        score, correct_answers, incorrect_answers, unanswered_questions,
		        total_questions, percentage, time_taken_seconds, topic_wise_score
		 FROM test_results WHERE test_id = ?
		 ORDER BY completed_at DESC, id
		 LIMIT ? OFFSET ?`, testID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []model.ResultRecord
	for rows.Next() {
		var (
			rec                model.ResultRecord
			started, completed string
			answers, topics    string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.TestID, &rec.StudentName, &rec.RollNumber,
			&started, &completed, &answers,
			&rec.Score, &rec.CorrectAnswers, &rec.IncorrectAnswers, &rec.UnansweredQuestions,
			&rec.TotalQuestions, &rec.Percentage, &rec.TimeTakenSeconds, &topics); err != nil {
			return nil, 0, err
		}
		if rec.StartedAt, err = parseTime(started); err != nil {
			return nil, 0, err
		}
		if rec.CompletedAt, err = parseTime(completed); err != nil {
			return nil, 0, err
		}
		if err := decodeResult(&rec, []byte(answers), []byte(topics)); err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// ============================================================================
// Answer journal
// ============================================================================

func (s *SQLiteStore) UpsertAnswer(ctx context.Context, ev model.AnswerEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_answers (session_id, question_id, test_id, selected_option, is_bookmarked, answered_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET selected_option = excluded.selected_option,
		     is_bookmarked = excluded.is_bookmarked,
		     answered_at = excluded.answered_at
		 WHERE session_answers.answered_at <= excluded.answered_at`,
		ev.SessionID, ev.QuestionID, ev.TestID, ev.SelectedOption, ev.IsBookmarked, formatTime(ev.AnsweredAt),
	)
	return sqliteErr(err)
}

// SessionAnswer returns the journaled answer for one session question.
func (s *SQLiteStore) SessionAnswer(ctx context.Context, sessionID, questionID uuid.UUID) (model.AnswerEvent, error) {
	ev := model.AnswerEvent{SessionID: sessionID, QuestionID: questionID}
	var answeredAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT test_id, selected_option, is_bookmarked, answered_at
		 FROM session_answers WHERE session_id = ? AND question_id = ?`, sessionID, questionID,
	).Scan(&ev.TestID, &ev.SelectedOption, &ev.IsBookmarked, &answeredAt)
	if err != nil {
		return ev, sqliteErr(err)
	}
	ev.AnsweredAt, err = parseTime(answeredAt)
	return ev, err
}

// ============================================================================
// Helpers
// ============================================================================

// Times are stored as fixed-width UTC text so they sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func marks(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func sqliteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE") {
		return ErrConflict
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func sqliteQuestions(rows *sql.Rows) ([]model.Question, error) {
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var (
			q          model.Question
			options    string
			difficulty string
			year       sql.NullInt64
			createdAt  string
		)
		if err := rows.Scan(&q.ID, &q.Text, &options, &q.CorrectAnswer, &q.Topic, &q.Subject, &difficulty, &year, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of %s: %w", q.ID, err)
		}
		if year.Valid {
			y := int(year.Int64)
			q.Year = &y
		}
		q.Difficulty = model.Difficulty(difficulty)
		var err error
		if q.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func sqliteTest(row rowScanner) (*model.Test, error) {
	var (
		t          model.Test
		start, end sql.NullString
		createdAt  string
	)
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.Description, &start, &end, &t.DurationMinutes,
		&t.TimeLimitMinutes, &t.Settings.RandomizeQuestions, &t.Settings.AllowReview, &t.Settings.ShowCorrectAnswers, &createdAt)
	if err != nil {
		return nil, err
	}
	if t.StartDate, err = parseNullTime(start); err != nil {
		return nil, err
	}
	if t.EndDate, err = parseNullTime(end); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &t, nil
}
