package exam

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/mockmate/internal/model"
)

// Phase enumerates the states of an exam session.
type Phase string

const (
	PhaseLoading  Phase = "loading"
	PhaseTooEarly Phase = "too_early"
	PhaseEntry    Phase = "entry"
	PhaseActive   Phase = "active"
	PhaseResults  Phase = "results"
	PhaseInvalid  Phase = "invalid"
)

// ErrReviewDisabled is returned when a test does not allow answer review.
var ErrReviewDisabled = fmt.Errorf("%w: review is disabled for this test", ErrValidation)

// Options tune a Machine.
type Options struct {
	// PauseWhenHidden suspends the countdown while the student's page is hidden.
	PauseWhenHidden bool
	// SaveRetryTicks is how many ticks to wait before re-submitting a result
	// whose save failed after the time ran out.
	SaveRetryTicks int
	// Shuffle orders questions when a test asks for randomization.
	Shuffle func(n int, swap func(i, j int))
}

// Machine is the exam session state machine. It performs no I/O: fetching a
// test and saving a result are split into Begin/Finish steps driven by the
// Controller. It is not safe for concurrent use.
type Machine struct {
	opts Options

	phase   Phase
	code    string
	test    *model.Test
	window  WindowStatus
	session *model.ExamSession
	order   []uuid.UUID
	state   State
	timer   Countdown

	pending     *model.TestResult
	unsaved     *model.ResultInput
	result      *model.TestResult
	completedAt time.Time
	submitting  bool
	retryIn     int
	retake      bool
	hidden      bool
	failure     error
}

// NewMachine creates a machine in the loading phase.
func NewMachine(opts Options) *Machine {
	if opts.SaveRetryTicks <= 0 {
		opts.SaveRetryTicks = 5
	}
	if opts.Shuffle == nil {
		opts.Shuffle = rand.Shuffle
	}
	return &Machine{opts: opts, phase: PhaseLoading}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Code returns the normalized code being loaded or taken.
func (m *Machine) Code() string { return m.code }

// Failure returns the error surfaced in the current phase, if any.
func (m *Machine) Failure() error { return m.failure }

// Session returns the active session, nil outside active and results.
func (m *Machine) Session() *model.ExamSession { return m.session }

// BeginLoad validates a code and moves to loading. Validation failures leave
// the phase untouched.
func (m *Machine) BeginLoad(raw string) (string, error) {
	if m.phase != PhaseLoading && m.phase != PhaseInvalid {
		return "", ErrWrongPhase
	}
	code, err := NormalizeCode(raw)
	if err != nil {
		return "", err
	}

	*m = Machine{opts: m.opts, phase: PhaseLoading, code: code, hidden: m.hidden}
	return code, nil
}

// Retry restarts loading of the last code from the invalid phase.
func (m *Machine) Retry() (string, error) {
	if m.phase != PhaseInvalid || m.code == "" {
		return "", ErrWrongPhase
	}
	return m.BeginLoad(m.code)
}

// FinishLoad applies the outcome of fetching the test.
func (m *Machine) FinishLoad(test *model.Test, err error, now time.Time) {
	if m.phase != PhaseLoading {
		return
	}
	switch {
	case err != nil:
		if !isKnown(err) {
			err = Transient("fetch test", err)
		}
		m.fail(err)
		return
	case test == nil:
		m.fail(ErrNotFound)
		return
	}

	m.test = test
	m.classify(now)
}

// classify routes a freshly loaded test by the entry-window policy.
func (m *Machine) classify(now time.Time) {
	m.window = EvaluateWindow(m.test.StartDate, m.test.EndDate, now)
	switch {
	case m.window.HasTestEnded:
		m.fail(ErrExpired)
	case m.window.CanEnter:
		m.phase = PhaseEntry
	case m.window.TimeUntilEntry > 0:
		m.phase = PhaseTooEarly
	default:
		m.fail(ErrEntryClosed)
	}
}

// Tick advances the live clock by one tick. It reports whether a submission
// is due because the time ran out or a failed save should be retried.
func (m *Machine) Tick(now time.Time) bool {
	if m.test != nil {
		m.window = EvaluateWindow(m.test.StartDate, m.test.EndDate, now)
	}

	switch m.phase {
	case PhaseTooEarly:
		m.classify(now)
	case PhaseActive:
		for _, ev := range m.timer.Tick() {
			if ev == TimerExpired && !m.submitting {
				return true
			}
		}
		if m.timer.Expired() && !m.submitting && m.failure != nil {
			m.retryIn--
			if m.retryIn <= 0 {
				m.retryIn = m.opts.SaveRetryTicks
				return true
			}
		}
	}
	return false
}

// Enter creates the session for a student and starts the countdown.
func (m *Machine) Enter(req model.EntryRequest, now time.Time) error {
	if m.phase != PhaseEntry {
		return ErrWrongPhase
	}
	name := strings.TrimSpace(req.StudentName)
	if name == "" {
		return fieldError("student_name", "is required")
	}

	m.window = EvaluateWindow(m.test.StartDate, m.test.EndDate, now)
	if m.window.HasTestEnded {
		m.fail(ErrExpired)
		return ErrExpired
	}
	if !m.window.CanEnter && !m.retake {
		m.fail(ErrEntryClosed)
		return ErrEntryClosed
	}

	m.order = make([]uuid.UUID, len(m.test.Questions))
	for i, q := range m.test.Questions {
		m.order[i] = q.ID
	}
	if m.test.Settings.RandomizeQuestions {
		m.opts.Shuffle(len(m.order), func(i, j int) {
			m.order[i], m.order[j] = m.order[j], m.order[i]
		})
	}

	var first *uuid.UUID
	if len(m.order) > 0 {
		first = &m.order[0]
	}

	m.session = &model.ExamSession{
		ID:          uuid.New(),
		TestID:      m.test.ID,
		TestCode:    m.test.Code,
		StudentName: name,
		RollNumber:  strings.TrimSpace(req.RollNumber),
		StartedAt:   now,
	}
	m.state = newState(first)
	m.timer.Reset()
	m.timer.Start(m.test.DurationMinutes * 60)
	if m.hidden && m.opts.PauseWhenHidden {
		m.timer.Suspend()
	}
	m.pending = nil
	m.result = nil
	m.failure = nil
	m.phase = PhaseActive
	return nil
}

// Answer records the selected option for a question, replacing any earlier one.
func (m *Machine) Answer(questionID uuid.UUID, option int) (model.StudentAnswer, error) {
	if err := m.checkEditable(); err != nil {
		return model.StudentAnswer{}, err
	}
	q, ok := m.test.QuestionByID(questionID)
	if !ok {
		return model.StudentAnswer{}, fieldError("q_id", "is not part of this test")
	}
	if option < 0 || option >= len(q.Options) {
		return model.StudentAnswer{}, fieldError("option", fmt.Sprintf("must be between 0 and %d", len(q.Options)-1))
	}

	a := model.StudentAnswer{
		QuestionID:     questionID,
		SelectedOption: option,
		IsBookmarked:   m.state.Bookmarked.Has(questionID),
	}
	m.state.Answers[questionID] = a
	m.state.Visited.Add(questionID)
	return a, nil
}

// ToggleBookmark flips the bookmark on a question and reports the new value.
func (m *Machine) ToggleBookmark(questionID uuid.UUID) (bool, error) {
	if m.phase != PhaseActive {
		return false, ErrWrongPhase
	}
	if m.submitting || m.unsaved != nil {
		return false, ErrSubmitting
	}
	if _, ok := m.test.QuestionByID(questionID); !ok {
		return false, fieldError("q_id", "is not part of this test")
	}

	marked := m.state.Bookmarked.Toggle(questionID)
	if a, ok := m.state.Answers[questionID]; ok {
		a.IsBookmarked = marked
		m.state.Answers[questionID] = a
	}
	return marked, nil
}

// Navigate moves to a question by display index.
func (m *Machine) Navigate(index int) error {
	if m.phase != PhaseActive {
		return ErrWrongPhase
	}
	if index < 0 || index >= len(m.order) {
		return fieldError("index", "is out of range")
	}
	m.state.CurrentQuestionIndex = index
	m.state.Visited.Add(m.order[index])
	return nil
}

// SetHidden records page visibility and applies the pause policy.
func (m *Machine) SetHidden(hidden bool) {
	m.hidden = hidden
	if !m.opts.PauseWhenHidden || m.phase != PhaseActive {
		return
	}
	if hidden {
		m.timer.Suspend()
	} else {
		m.timer.Resume()
	}
}

// Extend grants extra seconds to a running session.
func (m *Machine) Extend(seconds int) error {
	if m.phase != PhaseActive {
		return ErrWrongPhase
	}
	if m.timer.Expired() {
		return ErrTimeUp
	}
	if seconds <= 0 {
		return fieldError("seconds", "must be positive")
	}
	m.timer.AddTime(seconds)
	return nil
}

// BeginSubmit scores the answers accumulated so far and freezes them until a
// save succeeds. Once scored, every later attempt re-sends the same input, so
// a save that committed but reported failure cannot diverge from the retry.
func (m *Machine) BeginSubmit() (model.ResultInput, error) {
	if m.phase != PhaseActive {
		return model.ResultInput{}, ErrWrongPhase
	}
	if m.submitting {
		return model.ResultInput{}, ErrSubmitting
	}

	if m.unsaved == nil {
		answers := m.state.answerList(m.order)
		m.unsaved = &model.ResultInput{
			SessionID:   m.session.ID,
			TestID:      m.test.ID,
			TestCode:    m.test.Code,
			StudentName: m.session.StudentName,
			RollNumber:  m.session.RollNumber,
			StartedAt:   m.session.StartedAt,
			Answers:     answers,
			Result:      Score(m.test, answers, m.test.DurationMinutes*60, m.timer.Remaining()),
		}
	}
	result := m.unsaved.Result
	m.pending = &result
	m.submitting = true

	return *m.unsaved, nil
}

// FinishSubmit applies the outcome of saving a result. On failure the session
// stays active with its scored answers locked and a retryable error.
func (m *Machine) FinishSubmit(completedAt time.Time, err error) {
	if !m.submitting {
		return
	}
	m.submitting = false

	if err != nil {
		m.pending = nil
		m.failure = Transient("save result", err)
		m.retryIn = m.opts.SaveRetryTicks
		return
	}

	m.result = m.pending
	m.pending = nil
	m.unsaved = nil
	m.completedAt = completedAt
	m.state.IsSubmitted = true
	m.timer.Stop()
	m.failure = nil
	m.phase = PhaseResults
}

// Retake discards the finished attempt and returns to entry.
func (m *Machine) Retake() error {
	if m.phase != PhaseResults {
		return ErrWrongPhase
	}
	m.timer.Reset()
	m.session = nil
	m.order = nil
	m.state = State{}
	m.result = nil
	m.completedAt = time.Time{}
	m.retake = true
	m.phase = PhaseEntry
	return nil
}

// Paper returns the questions in display order without answers.
func (m *Machine) Paper() ([]model.QuestionView, error) {
	if m.phase != PhaseActive {
		return nil, ErrWrongPhase
	}
	out := make([]model.QuestionView, 0, len(m.order))
	for _, id := range m.order {
		q, _ := m.test.QuestionByID(id)
		out = append(out, q.View())
	}
	return out, nil
}

// ReviewItem is one question of a finished attempt.
type ReviewItem struct {
	model.QuestionView
	SelectedOption *int  `json:"selected_option,omitempty"`
	IsBookmarked   bool  `json:"is_bookmarked"`
	CorrectAnswer  *int  `json:"correct_answer,omitempty"`
	IsCorrect      *bool `json:"is_correct,omitempty"`
}

// Review lists the finished attempt question by question.
func (m *Machine) Review() ([]ReviewItem, error) {
	if m.phase != PhaseResults {
		return nil, ErrWrongPhase
	}
	if !m.test.Settings.AllowReview {
		return nil, ErrReviewDisabled
	}

	items := make([]ReviewItem, 0, len(m.order))
	for _, id := range m.order {
		q, _ := m.test.QuestionByID(id)
		item := ReviewItem{
			QuestionView: q.View(),
			IsBookmarked: m.state.Bookmarked.Has(id),
		}
		a, answered := m.state.Answers[id]
		if answered {
			selected := a.SelectedOption
			item.SelectedOption = &selected
		}
		if m.test.Settings.ShowCorrectAnswers {
			correct := q.CorrectAnswer
			isCorrect := answered && a.SelectedOption == correct
			item.CorrectAnswer = &correct
			item.IsCorrect = &isCorrect
		}
		items = append(items, item)
	}
	return items, nil
}

func (m *Machine) checkEditable() error {
	switch {
	case m.phase != PhaseActive:
		return ErrWrongPhase
	case m.submitting, m.unsaved != nil:
		return ErrSubmitting
	case m.timer.Expired():
		return ErrTimeUp
	}
	return nil
}

func (m *Machine) fail(err error) {
	m.timer.Stop()
	m.submitting = false
	m.failure = err
	m.phase = PhaseInvalid
}

func isKnown(err error) bool {
	return Kind(err) != "transient" || Retryable(err)
}
