package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/mockmate/internal/config"
	"github.com/stemsi/mockmate/internal/database"
	"github.com/stemsi/mockmate/internal/exam"
	"github.com/stemsi/mockmate/internal/model"
	"github.com/stemsi/mockmate/internal/repository"
)

type fixture struct {
	store     *repository.SQLiteStore
	mr        *miniredis.Miniredis
	rdb       *redis.Client
	questions *QuestionService
	tests     *TestService
	results   *ResultService
	journal   *AnswerJournal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := repository.NewSQLiteStore(ctx, db)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := zerolog.Nop()
	return &fixture{
		store:     store,
		mr:        mr,
		rdb:       rdb,
		questions: NewQuestionService(store, log),
		tests:     NewTestService(store, store, store, rdb, time.Hour, log),
		results:   NewResultService(store, rdb, log),
		journal:   NewAnswerJournal(rdb, time.Hour),
	}
}

func (f *fixture) addQuestions(t *testing.T, topics ...string) []uuid.UUID {
	t.Helper()
	var ids []uuid.UUID
	for _, topic := range topics {
		correct := 1
		q, err := f.questions.Create(context.Background(), model.CreateQuestionRequest{
			Text:          "What about " + topic + "?",
			Options:       []string{"one", "two", "three"},
			CorrectAnswer: &correct,
			Topic:         topic,
		})
		if err != nil {
			t.Fatalf("create question: %v", err)
		}
		ids = append(ids, q.ID)
	}
	return ids
}

func TestQuestionCreateRejectsOutOfRangeAnswer(t *testing.T) {
	f := newFixture(t)
	bad := 3
	_, err := f.questions.Create(context.Background(), model.CreateQuestionRequest{
		Text:          "Pick one",
		Options:       []string{"a", "b", "c"},
		CorrectAnswer: &bad,
		Topic:         "Logic",
	})

	var fe *exam.FieldError
	if !errors.As(err, &fe) || fe.Field != "correct_answer" {
		t.Fatalf("err = %v, want correct_answer field error", err)
	}
}

func TestQuestionListPaginates(t *testing.T) {
	f := newFixture(t)
	f.addQuestions(t, "A", "B", "C")

	got, page, err := f.questions.List(context.Background(), model.QuestionFilter{}, 2, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || page.TotalItems != 3 || page.TotalPages != 2 {
		t.Fatalf("len=%d pagination=%+v", len(got), page)
	}
	if got[0].Difficulty != model.DifficultyMedium {
		t.Fatalf("default difficulty = %q", got[0].Difficulty)
	}
}

func TestCreateTestKeepsOrderAndWarmsCache(t *testing.T) {
	f := newFixture(t)
	ids := f.addQuestions(t, "A", "B", "C")
	order := []uuid.UUID{ids[2], ids[0], ids[1]}

	created, err := f.tests.Create(context.Background(), model.CreateTestRequest{
		Name:            "Weekly mock",
		QuestionIDs:     order,
		DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !exam.ValidCode(created.Code) {
		t.Fatalf("invalid code %q", created.Code)
	}
	for i, q := range created.Questions {
		if q.ID != order[i] {
			t.Fatalf("question %d = %s, want %s", i, q.ID, order[i])
		}
	}
	if !f.mr.Exists(config.CacheKey.TestPayloadKey(created.Code)) {
		t.Fatal("payload not cached")
	}
	if ttl := f.mr.TTL(config.CacheKey.TestPayloadKey(created.Code)); ttl != time.Hour {
		t.Fatalf("cache ttl = %v", ttl)
	}
}

func TestCreateTestRejectsUnknownAndDuplicateQuestions(t *testing.T) {
	f := newFixture(t)
	ids := f.addQuestions(t, "A")

	cases := map[string][]uuid.UUID{
		"unknown":   {ids[0], uuid.New()},
		"duplicate": {ids[0], ids[0]},
	}
	for name, qids := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.tests.Create(context.Background(), model.CreateTestRequest{
				Name: "Broken", QuestionIDs: qids, DurationMinutes: 10,
			})
			if !errors.Is(err, exam.ErrValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
		})
	}
}

func TestGetByKeyReadsThroughCache(t *testing.T) {
	f := newFixture(t)
	ids := f.addQuestions(t, "A", "B")
	created, err := f.tests.Create(context.Background(), model.CreateTestRequest{
		Name: "Cached", QuestionIDs: ids, DurationMinutes: 10,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f.mr.Del(config.CacheKey.TestPayloadKey(created.Code))

	got, err := f.tests.GetByKey(context.Background(), " "+strings.ToLower(created.Code)+" ")
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if got.ID != created.ID || len(got.Questions) != 2 {
		t.Fatalf("unexpected test %+v", got)
	}
	if !f.mr.Exists(config.CacheKey.TestPayloadKey(created.Code)) {
		t.Fatal("cache not repopulated after miss")
	}

	// Served from cache even once the store is gone.
	f.store.Close()
	cached, err := f.tests.GetByKey(context.Background(), created.Code)
	if err != nil {
		t.Fatalf("cached GetByKey: %v", err)
	}
	if cached.Questions[1].CorrectAnswer != 1 {
		t.Fatalf("answer key lost in cache: %+v", cached.Questions[1])
	}
}

func TestGetByKeyErrors(t *testing.T) {
	f := newFixture(t)

	if _, err := f.tests.GetByKey(context.Background(), "ZZ99"); !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("unknown code err = %v, want not found", err)
	}
	if _, err := f.tests.GetByKey(context.Background(), "bad code"); !errors.Is(err, exam.ErrValidation) {
		t.Fatalf("malformed code err = %v, want validation", err)
	}

	f.mr.Close()
	f.store.Close()
	_, err := f.tests.GetByKey(context.Background(), "ZZ99")
	if !errors.Is(err, exam.ErrTransient) || !exam.Retryable(err) {
		t.Fatalf("store failure err = %v, want transient", err)
	}
}

func TestWindowEvaluatesNow(t *testing.T) {
	f := newFixture(t)
	ids := f.addQuestions(t, "A")
	start := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	created, err := f.tests.Create(context.Background(), model.CreateTestRequest{
		Name: "Scheduled", QuestionIDs: ids, DurationMinutes: 10, StartDate: &start,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f.tests.now = func() time.Time { return start.Add(-10 * time.Minute) }
	w, err := f.tests.Window(context.Background(), created.Code)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if w.Window.CanEnter || w.Window.TimeUntilEntry != 5*time.Minute || w.Test.QuestionCount != 1 {
		t.Fatalf("unexpected window %+v", w)
	}
}

func TestResultSaveIsIdempotentAndClearsJournal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.addQuestions(t, "A")
	created, err := f.tests.Create(ctx, model.CreateTestRequest{Name: "Results", QuestionIDs: ids, DurationMinutes: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	sessionID := uuid.New()
	ev := model.AnswerEvent{SessionID: sessionID, TestID: created.ID, QuestionID: ids[0], SelectedOption: 1, AnsweredAt: time.Now()}
	if err := f.journal.RecordAnswer(ctx, ev); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	answers, err := f.journal.Answers(ctx, sessionID.String())
	if err != nil || answers[ids[0].String()] != 1 {
		t.Fatalf("journal = %v, %v", answers, err)
	}
	queued, _ := f.mr.List(config.WorkerKey.PersistAnswersQueue)
	if len(queued) != 1 {
		t.Fatalf("queue length = %d, want 1", len(queued))
	}

	in := model.ResultInput{
		SessionID:   sessionID,
		TestID:      created.ID,
		TestCode:    created.Code,
		StudentName: "Budi",
		StartedAt:   time.Now().Add(-time.Minute),
		Answers:     []model.StudentAnswer{{QuestionID: ids[0], SelectedOption: 1}},
		Result:      model.TestResult{Score: 1, CorrectAnswers: 1, TotalQuestions: 1, Percentage: 100},
	}
	first, err := f.results.Save(ctx, in)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := f.results.Save(ctx, in)
	if err != nil {
		t.Fatalf("Save again: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("completion time changed: %v vs %v", first, second)
	}
	if f.mr.Exists(config.CacheKey.SessionAnswersKey(sessionID.String())) {
		t.Fatal("journal not cleared after save")
	}

	records, page, err := f.tests.Results(ctx, created.Code, 1, 10)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(records) != 1 || page.TotalItems != 1 || records[0].StudentName != "Budi" {
		t.Fatalf("records=%+v pagination=%+v", records, page)
	}
}

func TestResultSaveFailureIsTransient(t *testing.T) {
	f := newFixture(t)
	f.store.Close()

	_, err := f.results.Save(context.Background(), model.ResultInput{SessionID: uuid.New()})
	if !exam.Retryable(err) {
		t.Fatalf("err = %v, want retryable", err)
	}
}

func TestPrewarmCachesSkipsEndedTests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.addQuestions(t, "A")

	past := time.Now().Add(-48 * time.Hour)
	pastEnd := past.Add(time.Hour)
	ended, err := f.tests.Create(ctx, model.CreateTestRequest{
		Name: "Ended", QuestionIDs: ids, DurationMinutes: 10, StartDate: &past, EndDate: &pastEnd,
	})
	if err != nil {
		t.Fatalf("Create ended: %v", err)
	}
	open, err := f.tests.Create(ctx, model.CreateTestRequest{Name: "Open", QuestionIDs: ids, DurationMinutes: 10})
	if err != nil {
		t.Fatalf("Create open: %v", err)
	}

	f.mr.FlushAll()
	if err := f.tests.PrewarmCaches(ctx); err != nil {
		t.Fatalf("PrewarmCaches: %v", err)
	}
	if !f.mr.Exists(config.CacheKey.TestPayloadKey(open.Code)) {
		t.Fatal("open test not prewarmed")
	}
	if f.mr.Exists(config.CacheKey.TestPayloadKey(ended.Code)) {
		t.Fatal("ended test prewarmed")
	}
}
