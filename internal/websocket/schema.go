package websocket

import (
	"github.com/google/uuid"
	"github.com/stemsi/mockmate/internal/exam"
	"github.com/stemsi/mockmate/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionEnter      Action = "enter"
	ActionAnswer     Action = "answer"
	ActionBookmark   Action = "bookmark"
	ActionNavigate   Action = "navigate"
	ActionSubmit     Action = "submit"
	ActionRetake     Action = "retake"
	ActionRetry      Action = "retry"
	ActionVisibility Action = "visibility"
	ActionPing       Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// EnterRequest is sent from the entry screen.
type EnterRequest struct {
	Action Action `json:"action"`
	model.EntryRequest
}

// AnswerRequest selects an option for a question.
type AnswerRequest struct {
	Action Action    `json:"action"`
	QID    uuid.UUID `json:"q_id" validate:"required"`
	Option *int      `json:"option" validate:"required,min=0"`
}

// BookmarkRequest toggles the bookmark on a question.
type BookmarkRequest struct {
	Action Action    `json:"action"`
	QID    uuid.UUID `json:"q_id" validate:"required"`
}

// NavigateRequest jumps to a question by display index.
type NavigateRequest struct {
	Action Action `json:"action"`
	Index  *int   `json:"index" validate:"required,min=0"`
}

// VisibilityRequest reports whether the exam page is hidden.
type VisibilityRequest struct {
	Action Action `json:"action"`
	Hidden bool   `json:"hidden"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState  Event = "state"
	EventPaper  Event = "paper"
	EventResult Event = "result"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// StateResponse carries the latest session snapshot.
type StateResponse struct {
	Event Event         `json:"event"`
	State exam.Snapshot `json:"state"`
}

// PaperResponse delivers the questions once the session is active.
type PaperResponse struct {
	Event             Event                `json:"event"`
	Questions         []model.QuestionView `json:"questions"`
	RequestFullscreen bool                 `json:"request_fullscreen"`
}

// ResultResponse delivers the scored result, with review items when allowed.
type ResultResponse struct {
	Event  Event             `json:"event"`
	Result *model.TestResult `json:"result"`
	Review []exam.ReviewItem `json:"review,omitempty"`
}

type ErrorResponse struct {
	Event     Event             `json:"event"`
	Code      string            `json:"code"`
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
