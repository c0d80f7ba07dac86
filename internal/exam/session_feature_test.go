package exam

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"github.com/stemsi/mockmate/internal/model"
)

func TestSessionFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "session",
		ScenarioInitializer: initializeSessionScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{filepath.Join("testdata", "features")},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// sessionWorld drives a Machine synchronously, saving results inline.
type sessionWorld struct {
	test      *model.Test
	machine   *Machine
	now       time.Time
	failSaves int
}

func initializeSessionScenario(ctx *godog.ScenarioContext) {
	w := &sessionWorld{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*w = sessionWorld{now: t0}
		return ctx, nil
	})

	ctx.Step(`^a test "([^"]+)" with (\d+) questions and a (\d+) minute duration$`, w.givenTest)
	ctx.Step(`^the test starts (\d+) minutes ago$`, w.startsAgo)
	ctx.Step(`^the test starts in (\d+) minutes$`, w.startsIn)
	ctx.Step(`^saving results fails once$`, w.savingFailsOnce)
	ctx.Step(`^the student loads "([^"]+)"$`, w.load)
	ctx.Step(`^the student loads "([^"]+)" and enters as "([^"]+)"$`, w.loadAndEnter)
	ctx.Step(`^the student answers question (\d+) with option (\d+)$`, w.answer)
	ctx.Step(`^the student submits$`, w.submit)
	ctx.Step(`^(\d+) seconds pass$`, w.secondsPass)
	ctx.Step(`^the phase is "([^"]+)"$`, w.phaseIs)
	ctx.Step(`^the error kind is "([^"]+)"$`, w.errorKindIs)
	ctx.Step(`^a retryable error is shown$`, w.retryableError)
	ctx.Step(`^the result is (\d+) correct, (\d+) incorrect and (\d+) unanswered at (\d+) percent$`, w.resultIs)
}

func (w *sessionWorld) givenTest(code string, n, minutes int) error {
	w.test = &model.Test{ID: uuid.New(), Code: code, Name: "Feature test", DurationMinutes: minutes}
	for i := 0; i < n; i++ {
		w.test.Questions = append(w.test.Questions, model.Question{
			ID:            uuid.New(),
			Text:          fmt.Sprintf("question %d", i+1),
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: i % 4,
			Topic:         "General",
		})
	}
	return nil
}

func (w *sessionWorld) startsAgo(minutes int) error {
	start := w.now.Add(-time.Duration(minutes) * time.Minute)
	w.test.StartDate = &start
	return nil
}

func (w *sessionWorld) startsIn(minutes int) error {
	start := w.now.Add(time.Duration(minutes) * time.Minute)
	w.test.StartDate = &start
	return nil
}

func (w *sessionWorld) savingFailsOnce() error {
	w.failSaves = 1
	return nil
}

func (w *sessionWorld) load(code string) error {
	w.machine = NewMachine(Options{Shuffle: noShuffle, SaveRetryTicks: 1})
	normalized, err := w.machine.BeginLoad(code)
	if err != nil {
		return err
	}
	if normalized != w.test.Code {
		w.machine.FinishLoad(nil, ErrNotFound, w.now)
		return nil
	}
	w.machine.FinishLoad(w.test, nil, w.now)
	return nil
}

func (w *sessionWorld) loadAndEnter(code, name string) error {
	if err := w.load(code); err != nil {
		return err
	}
	return w.machine.Enter(model.EntryRequest{StudentName: name}, w.now)
}

func (w *sessionWorld) answer(question, option int) error {
	_, err := w.machine.Answer(w.test.Questions[question-1].ID, option)
	return err
}

func (w *sessionWorld) submit() error {
	if _, err := w.machine.BeginSubmit(); err != nil {
		return err
	}
	w.save()
	return nil
}

func (w *sessionWorld) save() {
	if w.failSaves > 0 {
		w.failSaves--
		w.machine.FinishSubmit(time.Time{}, errors.New("store unavailable"))
		return
	}
	w.machine.FinishSubmit(w.now, nil)
}

func (w *sessionWorld) secondsPass(n int) error {
	for i := 0; i < n; i++ {
		w.now = w.now.Add(time.Second)
		if w.machine.Tick(w.now) {
			if _, err := w.machine.BeginSubmit(); err != nil {
				return err
			}
			w.save()
		}
	}
	return nil
}

func (w *sessionWorld) phaseIs(phase string) error {
	if got := w.machine.Phase(); got != Phase(phase) {
		return fmt.Errorf("phase is %s, want %s", got, phase)
	}
	return nil
}

func (w *sessionWorld) errorKindIs(kind string) error {
	if got := Kind(w.machine.Failure()); got != kind {
		return fmt.Errorf("error kind is %q, want %q", got, kind)
	}
	return nil
}

func (w *sessionWorld) retryableError() error {
	s := w.machine.Snapshot()
	if s.Error == nil || !s.Error.Retryable {
		return fmt.Errorf("expected retryable error, got %+v", s.Error)
	}
	return nil
}

func (w *sessionWorld) resultIs(correct, incorrect, unanswered, percent int) error {
	s := w.machine.Snapshot()
	if s.Result == nil {
		return fmt.Errorf("no result in phase %s", s.Phase)
	}
	r := s.Result
	if r.CorrectAnswers != correct || r.IncorrectAnswers != incorrect || r.UnansweredQuestions != unanswered || r.Percentage != percent {
		return fmt.Errorf("result %d/%d/%d at %d%%, want %d/%d/%d at %d%%",
			r.CorrectAnswers, r.IncorrectAnswers, r.UnansweredQuestions, r.Percentage,
			correct, incorrect, unanswered, percent)
	}
	return nil
}
