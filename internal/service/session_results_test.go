package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/mockmate/internal/exam"
	"github.com/stemsi/mockmate/internal/model"
)

// ackLostResults commits the first save and then reports it as failed.
type ackLostResults struct {
	mu     sync.Mutex
	inner  *ResultService
	failed bool
}

func (r *ackLostResults) Save(ctx context.Context, in model.ResultInput) (time.Time, error) {
	at, err := r.inner.Save(ctx, in)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil && !r.failed {
		r.failed = true
		return time.Time{}, errors.New("connection reset after commit")
	}
	return at, err
}

func waitSnapshot(t *testing.T, c *exam.Controller, cond func(exam.Snapshot) bool) exam.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s, err := c.Snapshot()
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met, last snapshot %+v", s)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStoredResultMatchesShownAfterLostAck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.addQuestions(t, "A", "B")
	created, err := f.tests.Create(ctx, model.CreateTestRequest{Name: "Lost ack", QuestionIDs: ids, DurationMinutes: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ctrl := exam.NewController(f.tests, &ackLostResults{inner: f.results}, nil, exam.ControllerConfig{
		Ticks: make(chan time.Time),
	}, zerolog.Nop())
	t.Cleanup(ctrl.Close)

	if err := ctrl.Load(created.Code); err != nil {
		t.Fatalf("Load: %v", err)
	}
	waitSnapshot(t, ctrl, func(s exam.Snapshot) bool { return s.Phase == exam.PhaseEntry })
	if err := ctrl.Enter(model.EntryRequest{StudentName: "Citra"}); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := ctrl.Answer(ids[0], 0); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if err := ctrl.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitSnapshot(t, ctrl, func(s exam.Snapshot) bool { return s.Error != nil && !s.Submitting })

	if err := ctrl.Answer(ids[0], 1); !errors.Is(err, exam.ErrSubmitting) {
		t.Fatalf("Answer after failed save err = %v, want ErrSubmitting", err)
	}
	if err := ctrl.Retry(); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	shown := waitSnapshot(t, ctrl, func(s exam.Snapshot) bool { return s.Phase == exam.PhaseResults }).Result

	records, _, err := f.tests.Results(ctx, created.Code, 1, 10)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("stored %d results, want 1", len(records))
	}
	stored := records[0].TestResult
	if stored.Percentage != shown.Percentage || stored.CorrectAnswers != shown.CorrectAnswers ||
		stored.IncorrectAnswers != shown.IncorrectAnswers || stored.TimeTakenSeconds != shown.TimeTakenSeconds {
		t.Fatalf("stored %+v, shown %+v", stored, *shown)
	}
	if shown.Percentage != 0 {
		t.Fatalf("Percentage = %d, want 0", shown.Percentage)
	}
}
