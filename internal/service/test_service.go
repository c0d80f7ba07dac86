package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/mockmate/internal/config"
	"github.com/stemsi/mockmate/internal/exam"
	"github.com/stemsi/mockmate/internal/model"
	"github.com/stemsi/mockmate/internal/repository"
	"github.com/stemsi/mockmate/internal/response"
)

// codeAttempts bounds how many random codes Create tries before giving up.
const codeAttempts = 8

// ErrCodeSpaceExhausted is returned when no free share code could be found.
var ErrCodeSpaceExhausted = errors.New("could not allocate a unique test code")

// TestWindow is the public lobby view of a test.
type TestWindow struct {
	Test   model.TestSummary `json:"test"`
	Window exam.WindowStatus `json:"window"`
}

// TestService assembles tests and serves them to sessions through a Redis
// read-through cache keyed by share code.
type TestService struct {
	tests     TestStore
	questions QuestionStore
	results   ResultStore
	rdb       *redis.Client
	ttl       time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(
	tests TestStore,
	questions QuestionStore,
	results ResultStore,
	rdb *redis.Client,
	ttl time.Duration,
	log zerolog.Logger,
) *TestService {
	return &TestService{
		tests:     tests,
		questions: questions,
		results:   results,
		rdb:       rdb,
		ttl:       ttl,
		now:       time.Now,
		log:       log.With().Str("component", "test_service").Logger(),
	}
}

// Create assembles a test from bank questions and gives it a fresh code.
func (s *TestService) Create(ctx context.Context, req model.CreateTestRequest) (*model.Test, error) {
	questions, err := s.orderedQuestions(ctx, req.QuestionIDs)
	if err != nil {
		return nil, err
	}

	t := &model.Test{
		Name:             strings.TrimSpace(req.Name),
		Description:      strings.TrimSpace(req.Description),
		Questions:        questions,
		StartDate:        utcPtr(req.StartDate),
		EndDate:          utcPtr(req.EndDate),
		DurationMinutes:  req.DurationMinutes,
		TimeLimitMinutes: req.TimeLimitMinutes,
		Settings:         req.Settings,
	}

	for attempt := 1; ; attempt++ {
		t.ID = uuid.Nil
		if t.Code, err = exam.GenerateCode(); err != nil {
			return nil, fmt.Errorf("generate test code: %w", err)
		}
		err = s.tests.CreateTest(ctx, t)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("create test: %w", err)
		}
		if attempt == codeAttempts {
			return nil, ErrCodeSpaceExhausted
		}
		s.log.Debug().Str("code", t.Code).Msg("Test code taken, retrying")
	}

	if err := s.warm(ctx, t); err != nil {
		s.log.Warn().Err(err).Str("code", t.Code).Msg("Failed to warm test cache")
	}

	s.log.Info().
		Str("test_id", t.ID.String()).
		Str("code", t.Code).
		Int("questions", len(t.Questions)).
		Msg("Test created")
	return t, nil
}

// orderedQuestions loads ids from the bank in the order given.
func (s *TestService) orderedQuestions(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	found, err := s.questions.QuestionsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	byID := make(map[uuid.UUID]model.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}

	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil, &exam.FieldError{Field: "question_ids", Reason: "unknown question " + id.String()}
		}
		if seen[id] {
			return nil, &exam.FieldError{Field: "question_ids", Reason: "duplicate question " + id.String()}
		}
		seen[id] = true
		out = append(out, q)
	}
	return out, nil
}

// GetByKey returns a test by code, from cache when possible. Missing tests
// yield exam.ErrNotFound, infrastructure failures a transient error.
func (s *TestService) GetByKey(ctx context.Context, code string) (*model.Test, error) {
	code, err := exam.NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	if t, err := s.cached(ctx, code); err == nil {
		return t, nil
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("code", code).Msg("Test cache read failed, falling back to store")
	}

	t, err := s.tests.TestByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, exam.ErrNotFound
		}
		return nil, exam.Transient("fetch test", err)
	}

	if err := s.warm(ctx, t); err != nil {
		s.log.Warn().Err(err).Str("code", code).Msg("Failed to warm test cache")
	}
	return t, nil
}

func (s *TestService) cached(ctx context.Context, code string) (*model.Test, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.TestPayloadKey(code)).Bytes()
	if err != nil {
		return nil, err
	}

	var t model.Test
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &t, nil
}

// warm stores the full test, answer key included, under its code.
func (s *TestService) warm(ctx context.Context, t *model.Test) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.TestPayloadKey(t.Code), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}
	return nil
}

// Window evaluates the entry window of a test right now.
func (s *TestService) Window(ctx context.Context, code string) (*TestWindow, error) {
	t, err := s.GetByKey(ctx, code)
	if err != nil {
		return nil, err
	}
	return &TestWindow{
		Test:   t.Summary(),
		Window: exam.EvaluateWindow(t.StartDate, t.EndDate, s.now()),
	}, nil
}

// Results lists the saved results of a test, newest first.
func (s *TestService) Results(ctx context.Context, code string, page, perPage int) ([]model.ResultRecord, *response.Pagination, error) {
	t, err := s.GetByKey(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	page, perPage, limit, offset := pageBounds(page, perPage)
	records, total, err := s.results.ListResults(ctx, t.ID, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("list results: %w", err)
	}
	if records == nil {
		records = []model.ResultRecord{}
	}
	return records, response.NewPagination(page, perPage, total), nil
}

// PrewarmCaches loads every test that has not ended into Redis on startup.
func (s *TestService) PrewarmCaches(ctx context.Context) error {
	tests, err := s.tests.ListOpenTests(ctx, s.now())
	if err != nil {
		return fmt.Errorf("list open tests: %w", err)
	}

	if len(tests) == 0 {
		s.log.Info().Msg("No open tests to prewarm")
		return nil
	}

	warmed := 0
	for i := range tests {
		full, err := s.tests.TestByCode(ctx, tests[i].Code)
		if err == nil {
			err = s.warm(ctx, full)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("code", tests[i].Code).Msg("Failed to warm test, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().Int("warmed", warmed).Int("total", len(tests)).Msg("Prewarming complete")
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
