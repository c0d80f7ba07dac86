package model

import (
	"time"

	"github.com/google/uuid"
)

// TopicScore is the per-topic accuracy bucket of a result.
type TopicScore struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// TestResult is the scored outcome of one session.
type TestResult struct {
	Score               int                   `json:"score"`
	CorrectAnswers      int                   `json:"correct_answers"`
	IncorrectAnswers    int                   `json:"incorrect_answers"`
	UnansweredQuestions int                   `json:"unanswered_questions"`
	TotalQuestions      int                   `json:"total_questions"`
	Percentage          int                   `json:"percentage"`
	TimeTakenSeconds    int                   `json:"time_taken_seconds"`
	TopicWiseScore      map[string]TopicScore `json:"topic_wise_score"`
}

// ResultInput is what the session hands to the result store on submission.
type ResultInput struct {
	SessionID   uuid.UUID       `json:"session_id"`
	TestID      uuid.UUID       `json:"test_id"`
	TestCode    string          `json:"test_code"`
	StudentName string          `json:"student_name"`
	RollNumber  string          `json:"roll_number,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	Answers     []StudentAnswer `json:"answers"`
	Result      TestResult      `json:"result"`
}

// ResultRecord is a persisted result as listed on the instructor dashboard.
type ResultRecord struct {
	ID          uuid.UUID       `json:"id"`
	SessionID   uuid.UUID       `json:"session_id"`
	TestID      uuid.UUID       `json:"test_id"`
	StudentName string          `json:"student_name"`
	RollNumber  string          `json:"roll_number,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Answers     []StudentAnswer `json:"answers"`
	TestResult
}
