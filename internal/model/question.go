package model

import (
	"time"

	"github.com/google/uuid"
)

// Difficulty classifies a question in the bank.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question represents a single multiple-choice question in the bank.
type Question struct {
	ID            uuid.UUID  `json:"id"`
	Text          string     `json:"text"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correct_answer"`
	Topic         string     `json:"topic"`
	Subject       string     `json:"subject,omitempty"`
	Difficulty    Difficulty `json:"difficulty"`
	Year          *int       `json:"year,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// QuestionView is a question as shown to a student (no correct answer).
type QuestionView struct {
	ID      uuid.UUID `json:"id"`
	Text    string    `json:"text"`
	Options []string  `json:"options"`
	Topic   string    `json:"topic"`
	Subject string    `json:"subject,omitempty"`
}

// View strips the correct answer from a question.
func (q Question) View() QuestionView {
	return QuestionView{
		ID:      q.ID,
		Text:    q.Text,
		Options: q.Options,
		Topic:   q.Topic,
		Subject: q.Subject,
	}
}

// CreateQuestionRequest is the payload for adding a question to the bank.
type CreateQuestionRequest struct {
	Text          string   `json:"text" binding:"required,min=1,max=2000"`
	Options       []string `json:"options" binding:"required,min=2,max=10,dive,required,max=500"`
	CorrectAnswer *int     `json:"correct_answer" binding:"required,min=0"`
	Topic         string   `json:"topic" binding:"required,max=100"`
	Subject       string   `json:"subject" binding:"omitempty,max=100"`
	Difficulty    string   `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Year          *int     `json:"year" binding:"omitempty,min=1900,max=2100"`
}

// QuestionFilter narrows a question bank listing.
type QuestionFilter struct {
	Subject    string
	Topic      string
	Difficulty string
	Year       *int
	Search     string
	Limit      int
	Offset     int
}
