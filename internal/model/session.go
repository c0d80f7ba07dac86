package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamSession ties one student to one attempt at a test.
type ExamSession struct {
	ID          uuid.UUID `json:"id"`
	TestID      uuid.UUID `json:"test_id"`
	TestCode    string    `json:"test_code"`
	StudentName string    `json:"student_name"`
	RollNumber  string    `json:"roll_number,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// EntryRequest is what a student submits on the entry screen.
type EntryRequest struct {
	StudentName string `json:"student_name" validate:"required,min=2,max=100"`
	RollNumber  string `json:"roll_number" validate:"omitempty,alphanum,max=32"`
}

// StudentAnswer is the option a student picked for one question.
type StudentAnswer struct {
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedOption int       `json:"selected_option"`
	IsBookmarked   bool      `json:"is_bookmarked,omitempty"`
}

// AnswerEvent is one accepted answer, journaled while the session is active.
type AnswerEvent struct {
	SessionID      uuid.UUID `json:"session_id"`
	TestID         uuid.UUID `json:"test_id"`
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedOption int       `json:"selected_option"`
	IsBookmarked   bool      `json:"is_bookmarked"`
	AnsweredAt     time.Time `json:"answered_at"`
}
