package model

import (
	"time"

	"github.com/google/uuid"
)

// TestSettings toggles per-test behaviour for students.
type TestSettings struct {
	RandomizeQuestions bool `json:"randomize_questions"`
	AllowReview        bool `json:"allow_review"`
	ShowCorrectAnswers bool `json:"show_correct_answers"`
}

// Test is a instructor-assembled set of questions shared through a short code.
type Test struct {
	ID               uuid.UUID    `json:"id"`
	Code             string       `json:"code"`
	Name             string       `json:"name"`
	Description      string       `json:"description,omitempty"`
	Questions        []Question   `json:"questions"`
	StartDate        *time.Time   `json:"start_date,omitempty"`
	EndDate          *time.Time   `json:"end_date,omitempty"`
	DurationMinutes  int          `json:"duration_minutes"`
	TimeLimitMinutes int          `json:"time_limit_minutes"`
	Settings         TestSettings `json:"settings"`
	CreatedAt        time.Time    `json:"created_at"`
}

// QuestionByID finds a question of the test by id.
func (t *Test) QuestionByID(id uuid.UUID) (*Question, bool) {
	for i := range t.Questions {
		if t.Questions[i].ID == id {
			return &t.Questions[i], true
		}
	}
	return nil, false
}

// EstimatedMinutes is the UI estimate derived from the per-question time limit.
func (t *Test) EstimatedMinutes() int {
	return t.TimeLimitMinutes * len(t.Questions)
}

// CreateTestRequest is the payload for assembling a new test.
type CreateTestRequest struct {
	Name             string       `json:"name" binding:"required,min=3,max=255"`
	Description      string       `json:"description" binding:"omitempty,max=2000"`
	QuestionIDs      []uuid.UUID  `json:"question_ids" binding:"required,min=1,max=200"`
	StartDate        *time.Time   `json:"start_date" binding:"omitempty"`
	EndDate          *time.Time   `json:"end_date" binding:"omitempty,gtfield=StartDate"`
	DurationMinutes  int          `json:"duration_minutes" binding:"required,min=1,max=480"`
	TimeLimitMinutes int          `json:"time_limit_minutes" binding:"omitempty,min=0,max=60"`
	Settings         TestSettings `json:"settings"`
}

// TestSummary is the public view of a test used by the lobby.
type TestSummary struct {
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	DurationMinutes  int        `json:"duration_minutes"`
	QuestionCount    int        `json:"question_count"`
	EstimatedMinutes int        `json:"estimated_minutes"`
}

// Summary builds the public view of the test.
func (t *Test) Summary() TestSummary {
	return TestSummary{
		Code:             t.Code,
		Name:             t.Name,
		Description:      t.Description,
		StartDate:        t.StartDate,
		EndDate:          t.EndDate,
		DurationMinutes:  t.DurationMinutes,
		QuestionCount:    len(t.Questions),
		EstimatedMinutes: t.EstimatedMinutes(),
	}
}
