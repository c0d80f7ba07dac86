package exam

import (
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/mockmate/internal/model"
)

// Failure is an error as presented to the student.
type Failure struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Snapshot is a read-only copy of a session's observable state.
type Snapshot struct {
	Phase                Phase                 `json:"phase"`
	Code                 string                `json:"code,omitempty"`
	Test                 *model.TestSummary    `json:"test,omitempty"`
	Window               *WindowStatus         `json:"window,omitempty"`
	Session              *model.ExamSession    `json:"session,omitempty"`
	CurrentQuestionIndex int                   `json:"current_question_index"`
	CurrentQuestionID    *uuid.UUID            `json:"current_question_id,omitempty"`
	Answers              []model.StudentAnswer `json:"answers,omitempty"`
	AnsweredCount        int                   `json:"answered_count"`
	Bookmarked           []uuid.UUID           `json:"bookmarked,omitempty"`
	Visited              []uuid.UUID           `json:"visited,omitempty"`
	TimeRemaining        int                   `json:"time_remaining_seconds"`
	TimerRunning         bool                  `json:"timer_running"`
	Warnings             Warnings              `json:"warnings"`
	Submitting           bool                  `json:"submitting"`
	IsSubmitted          bool                  `json:"is_submitted"`
	Result               *model.TestResult     `json:"result,omitempty"`
	CompletedAt          *time.Time            `json:"completed_at,omitempty"`
	Error                *Failure              `json:"error,omitempty"`
}

// Snapshot copies the observable state. The result shares nothing mutable
// with the machine.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		Phase:                m.phase,
		Code:                 m.code,
		CurrentQuestionIndex: m.state.CurrentQuestionIndex,
		AnsweredCount:        len(m.state.Answers),
		TimeRemaining:        m.timer.Remaining(),
		TimerRunning:         m.timer.Running(),
		Warnings:             m.timer.Warnings(),
		Submitting:           m.submitting,
		IsSubmitted:          m.state.IsSubmitted,
	}

	if m.test != nil {
		summary := m.test.Summary()
		window := m.window
		s.Test = &summary
		s.Window = &window
	}
	if m.session != nil {
		session := *m.session
		s.Session = &session
	}
	if m.state.CurrentQuestionIndex < len(m.order) {
		id := m.order[m.state.CurrentQuestionIndex]
		s.CurrentQuestionID = &id
	}
	if len(m.state.Answers) > 0 {
		s.Answers = m.state.answerList(m.order)
	}
	if len(m.state.Bookmarked) > 0 {
		s.Bookmarked = m.state.Bookmarked.Slice()
	}
	if len(m.state.Visited) > 0 {
		s.Visited = m.state.Visited.Slice()
	}
	if m.result != nil {
		result := *m.result
		result.TopicWiseScore = make(map[string]model.TopicScore, len(m.result.TopicWiseScore))
		for k, v := range m.result.TopicWiseScore {
			result.TopicWiseScore[k] = v
		}
		completedAt := m.completedAt
		s.Result = &result
		s.CompletedAt = &completedAt
	}
	if m.failure != nil {
		s.Error = &Failure{
			Kind:      Kind(m.failure),
			Message:   m.failure.Error(),
			Retryable: m.phase == PhaseActive || Retryable(m.failure),
		}
	}
	return s
}
