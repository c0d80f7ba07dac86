package exam

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/mockmate/internal/model"
)

// ErrClosed is returned by calls on a closed controller.
var ErrClosed = errors.New("session closed")

// TestRepository fetches a test by its share code.
type TestRepository interface {
	GetByKey(ctx context.Context, code string) (*model.Test, error)
}

// ResultStore persists a submitted result and returns the completion time.
// Saving the same session twice must not create a second record.
type ResultStore interface {
	Save(ctx context.Context, in model.ResultInput) (time.Time, error)
}

// AnswerRecorder journals accepted answers. It is optional.
type AnswerRecorder interface {
	RecordAnswer(ctx context.Context, ev model.AnswerEvent) error
}

// ControllerConfig tunes a Controller.
type ControllerConfig struct {
	Machine      Options
	TickInterval time.Duration
	FetchTimeout time.Duration
	SaveTimeout  time.Duration
	// Ticks replaces the internal ticker when set.
	Ticks <-chan time.Time
	// Now replaces time.Now when set.
	Now func() time.Time
}

// Transition is emitted once for every entry into the active or results
// phase, carrying what the student needs to see at that point.
type Transition struct {
	Phase       Phase
	Paper       []model.QuestionView
	Result      *model.TestResult
	CompletedAt *time.Time
	// Review is nil when the test does not allow review.
	Review []ReviewItem
}

// Controller owns one exam session. A single goroutine applies every command,
// tick and I/O completion to the Machine in arrival order, so none of them
// observe a half-applied update. Fetches and saves run off that goroutine.
type Controller struct {
	machine  *Machine
	tests    TestRepository
	results  ResultStore
	recorder AnswerRecorder
	cfg      ControllerConfig
	log      zerolog.Logger

	msgs    chan func()
	journal chan model.AnswerEvent
	updates chan Snapshot
	ticks   <-chan time.Time
	ticker  *time.Ticker
	loadSeq int

	// transitions are queued on the session goroutine and never dropped.
	transitions chan Transition
	queued      []Transition

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController starts a session controller in the loading phase.
func NewController(tests TestRepository, results ResultStore, recorder AnswerRecorder, cfg ControllerConfig, log zerolog.Logger) *Controller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		machine:     NewMachine(cfg.Machine),
		tests:       tests,
		results:     results,
		recorder:    recorder,
		cfg:         cfg,
		log:         log.With().Str("component", "session").Logger(),
		msgs:        make(chan func()),
		journal:     make(chan model.AnswerEvent, 64),
		updates:     make(chan Snapshot, 1),
		transitions: make(chan Transition),
		ticks:       cfg.Ticks,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	if c.ticks == nil {
		c.ticker = time.NewTicker(cfg.TickInterval)
		c.ticks = c.ticker.C
	}

	go c.run()
	if recorder != nil {
		go c.runJournal()
	}
	return c
}

func (c *Controller) run() {
	defer close(c.done)
	if c.ticker != nil {
		defer c.ticker.Stop()
	}

	c.publish()
	for {
		before := c.machine.Phase()

		var out chan<- Transition
		var next Transition
		if len(c.queued) > 0 {
			out, next = c.transitions, c.queued[0]
		}

		select {
		case <-c.ctx.Done():
			return
		case out <- next:
			c.queued = c.queued[1:]
			continue
		case fn := <-c.msgs:
			fn()
		case now := <-c.ticks:
			if c.machine.Tick(now) {
				if err := c.submit(); err != nil {
					c.log.Debug().Err(err).Msg("Auto-submit skipped")
				}
			}
		}

		if after := c.machine.Phase(); after != before {
			ev := c.log.Info().Str("code", c.machine.Code()).Str("from", string(before)).Str("to", string(after))
			if err := c.machine.Failure(); err != nil {
				ev = ev.Err(err)
			}
			ev.Msg("Session phase changed")
			c.queueTransition(after)
		}
		c.publish()
	}
}

func (c *Controller) queueTransition(p Phase) {
	tr := Transition{Phase: p}
	switch p {
	case PhaseActive:
		paper, err := c.machine.Paper()
		if err != nil {
			return
		}
		tr.Paper = paper
	case PhaseResults:
		s := c.machine.Snapshot()
		tr.Result, tr.CompletedAt = s.Result, s.CompletedAt
		if review, err := c.machine.Review(); err == nil {
			tr.Review = review
		}
	default:
		return
	}
	c.queued = append(c.queued, tr)
}

// publish replaces any unread snapshot with the latest one.
func (c *Controller) publish() {
	s := c.machine.Snapshot()
	for {
		select {
		case c.updates <- s:
			return
		default:
		}
		select {
		case <-c.updates:
		default:
		}
	}
}

// do runs fn on the session goroutine and waits for its result.
func (c *Controller) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case c.msgs <- func() { errc <- fn() }:
	case <-c.ctx.Done():
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-c.ctx.Done():
		return ErrClosed
	}
}

// post queues fn from a background job. It is dropped once the session closes.
func (c *Controller) post(fn func()) {
	select {
	case c.msgs <- fn:
	case <-c.ctx.Done():
	}
}

func (c *Controller) fetch(code string) {
	c.loadSeq++
	seq := c.loadSeq
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.FetchTimeout)
		test, err := c.tests.GetByKey(ctx, code)
		cancel()
		if err != nil {
			c.log.Warn().Err(err).Str("code", code).Msg("Failed to fetch test")
		}
		c.post(func() {
			if seq != c.loadSeq {
				return
			}
			c.machine.FinishLoad(test, err, c.cfg.Now())
		})
	}()
}

func (c *Controller) submit() error {
	in, err := c.machine.BeginSubmit()
	if err != nil {
		return err
	}

	go func() {
		// Saves outlive the session so a disconnect right after submit still lands.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), c.cfg.SaveTimeout)
		completedAt, err := c.results.Save(ctx, in)
		cancel()
		if err != nil {
			c.log.Error().Err(err).Str("session_id", in.SessionID.String()).Msg("Failed to save result")
		} else {
			c.log.Info().
				Str("session_id", in.SessionID.String()).
				Int("score", in.Result.Score).
				Int("total", in.Result.TotalQuestions).
				Msg("Result saved")
		}
		c.post(func() { c.machine.FinishSubmit(completedAt, err) })
	}()
	return nil
}

func (c *Controller) runJournal() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.journal:
			ctx, cancel := context.WithTimeout(c.ctx, c.cfg.SaveTimeout)
			if err := c.recorder.RecordAnswer(ctx, ev); err != nil {
				c.log.Warn().Err(err).Str("session_id", ev.SessionID.String()).Msg("Failed to journal answer")
			}
			cancel()
		}
	}
}

func (c *Controller) record(a model.StudentAnswer) {
	if c.recorder == nil {
		return
	}
	s := c.machine.Session()
	ev := model.AnswerEvent{
		SessionID:      s.ID,
		TestID:         s.TestID,
		QuestionID:     a.QuestionID,
		SelectedOption: a.SelectedOption,
		IsBookmarked:   a.IsBookmarked,
		AnsweredAt:     c.cfg.Now(),
	}
	select {
	case c.journal <- ev:
	default:
		c.log.Warn().Str("session_id", s.ID.String()).Msg("Answer journal full, dropping event")
	}
}

// Load validates code and starts fetching the test.
func (c *Controller) Load(code string) error {
	return c.do(func() error {
		normalized, err := c.machine.BeginLoad(code)
		if err != nil {
			return err
		}
		c.fetch(normalized)
		return nil
	})
}

// Retry repeats the last failed load, or re-submits after a failed save.
func (c *Controller) Retry() error {
	return c.do(func() error {
		if c.machine.Phase() == PhaseActive {
			if c.machine.Failure() == nil {
				return ErrWrongPhase
			}
			return c.submit()
		}
		code, err := c.machine.Retry()
		if err != nil {
			return err
		}
		c.fetch(code)
		return nil
	})
}

// Enter starts the session for a student.
func (c *Controller) Enter(req model.EntryRequest) error {
	return c.do(func() error {
		return c.machine.Enter(req, c.cfg.Now())
	})
}

// Answer records an option for a question.
func (c *Controller) Answer(questionID uuid.UUID, option int) error {
	return c.do(func() error {
		a, err := c.machine.Answer(questionID, option)
		if err != nil {
			return err
		}
		c.record(a)
		return nil
	})
}

// ToggleBookmark flips a question's bookmark.
func (c *Controller) ToggleBookmark(questionID uuid.UUID) (bool, error) {
	var marked bool
	err := c.do(func() error {
		var err error
		marked, err = c.machine.ToggleBookmark(questionID)
		return err
	})
	return marked, err
}

// Navigate moves to a question by display index.
func (c *Controller) Navigate(index int) error {
	return c.do(func() error { return c.machine.Navigate(index) })
}

// Submit scores and saves the session.
func (c *Controller) Submit() error {
	return c.do(c.submit)
}

// Retake returns a finished session to entry.
func (c *Controller) Retake() error {
	return c.do(c.machine.Retake)
}

// SetHidden reports page visibility.
func (c *Controller) SetHidden(hidden bool) error {
	return c.do(func() error {
		c.machine.SetHidden(hidden)
		return nil
	})
}

// Extend adds seconds to the running countdown.
func (c *Controller) Extend(seconds int) error {
	return c.do(func() error { return c.machine.Extend(seconds) })
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := c.do(func() error {
		s = c.machine.Snapshot()
		return nil
	})
	return s, err
}

// Paper returns the questions of the active session in display order.
func (c *Controller) Paper() ([]model.QuestionView, error) {
	var out []model.QuestionView
	err := c.do(func() error {
		var err error
		out, err = c.machine.Paper()
		return err
	})
	return out, err
}

// Review returns the question-by-question review of a finished session.
func (c *Controller) Review() ([]ReviewItem, error) {
	var out []ReviewItem
	err := c.do(func() error {
		var err error
		out, err = c.machine.Review()
		return err
	})
	return out, err
}

// Updates delivers the latest snapshot after every change. Slow readers miss
// intermediate snapshots, never the newest one.
func (c *Controller) Updates() <-chan Snapshot {
	return c.updates
}

// Transitions delivers every entry into the active and results phases in
// order. Unlike Updates, nothing is skipped when the reader is slow.
func (c *Controller) Transitions() <-chan Transition {
	return c.transitions
}

// Close stops the session. In-flight result saves still complete.
func (c *Controller) Close() {
	c.cancel()
	<-c.done
}
