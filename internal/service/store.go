package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/mockmate/internal/model"
)

// The stores below are satisfied by both the PostgreSQL repositories and
// repository.SQLiteStore.

// QuestionStore persists the question bank.
type QuestionStore interface {
	CreateQuestion(ctx context.Context, q *model.Question) error
	ListQuestions(ctx context.Context, f model.QuestionFilter) ([]model.Question, int, error)
	QuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)
}

// TestStore persists assembled tests.
type TestStore interface {
	CreateTest(ctx context.Context, t *model.Test) error
	TestByCode(ctx context.Context, code string) (*model.Test, error)
	ListOpenTests(ctx context.Context, now time.Time) ([]model.Test, error)
}

// ResultStore persists submitted results.
type ResultStore interface {
	SaveResult(ctx context.Context, in model.ResultInput) (time.Time, error)
	ListResults(ctx context.Context, testID uuid.UUID, limit, offset int) ([]model.ResultRecord, int, error)
}

// pageBounds clamps listing parameters and returns limit and offset.
func pageBounds(page, perPage int) (int, int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage, perPage, (page - 1) * perPage
}
