// Package seed imports a question bank, and optionally tests built from it,
// from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/mockmate/internal/model"
	"github.com/stemsi/mockmate/internal/service"
	"gopkg.in/yaml.v3"
)

// Bank is the root of a seed file.
type Bank struct {
	Questions []Question `yaml:"questions"`
	Tests     []Test     `yaml:"tests"`
}

// Question is one bank entry. Ref names it for tests in the same file.
type Question struct {
	Ref           string   `yaml:"ref"`
	Text          string   `yaml:"text"`
	Options       []string `yaml:"options"`
	CorrectAnswer int      `yaml:"correct_answer"`
	Topic         string   `yaml:"topic"`
	Subject       string   `yaml:"subject"`
	Difficulty    string   `yaml:"difficulty"`
	Year          *int     `yaml:"year"`
}

// Test assembles seeded questions by ref.
type Test struct {
	Name             string     `yaml:"name"`
	Description      string     `yaml:"description"`
	Questions        []string   `yaml:"questions"`
	StartDate        *time.Time `yaml:"start_date"`
	EndDate          *time.Time `yaml:"end_date"`
	DurationMinutes  int        `yaml:"duration_minutes"`
	TimeLimitMinutes int        `yaml:"time_limit_minutes"`
	Settings         Settings   `yaml:"settings"`
}

// Settings mirrors model.TestSettings with YAML keys.
type Settings struct {
	RandomizeQuestions bool `yaml:"randomize_questions"`
	AllowReview        bool `yaml:"allow_review"`
	ShowCorrectAnswers bool `yaml:"show_correct_answers"`
}

// Summary reports what Apply created.
type Summary struct {
	Questions int
	Tests     map[string]string // name → share code
}

// Parse decodes a seed file. Unknown keys are rejected so typos surface
// instead of silently dropping data.
func Parse(r io.Reader) (*Bank, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var b Bank
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed file is empty")
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (b *Bank) validate() error {
	if len(b.Questions) == 0 {
		return errors.New("seed file has no questions")
	}

	refs := make(map[string]bool, len(b.Questions))
	for i, q := range b.Questions {
		if q.Text == "" || q.Topic == "" {
			return fmt.Errorf("question %d: text and topic are required", i+1)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d: at least two options are required", i+1)
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return fmt.Errorf("question %d: correct_answer %d is out of range", i+1, q.CorrectAnswer)
		}
		switch q.Difficulty {
		case "", string(model.DifficultyEasy), string(model.DifficultyMedium), string(model.DifficultyHard):
		default:
			return fmt.Errorf("question %d: unknown difficulty %q", i+1, q.Difficulty)
		}
		if q.Ref == "" {
			continue
		}
		if refs[q.Ref] {
			return fmt.Errorf("question %d: duplicate ref %q", i+1, q.Ref)
		}
		refs[q.Ref] = true
	}

	for _, t := range b.Tests {
		if t.Name == "" || t.DurationMinutes <= 0 {
			return fmt.Errorf("test %q: name and a positive duration_minutes are required", t.Name)
		}
		if len(t.Questions) == 0 {
			return fmt.Errorf("test %q: no questions", t.Name)
		}
		for _, ref := range t.Questions {
			if !refs[ref] {
				return fmt.Errorf("test %q: unknown question ref %q", t.Name, ref)
			}
		}
		if t.StartDate != nil && t.EndDate != nil && !t.EndDate.After(*t.StartDate) {
			return fmt.Errorf("test %q: end_date must be after start_date", t.Name)
		}
	}
	return nil
}

// Apply creates the bank's questions and tests through the services.
func Apply(ctx context.Context, b *Bank, questions *service.QuestionService, tests *service.TestService) (*Summary, error) {
	sum := &Summary{Tests: make(map[string]string, len(b.Tests))}
	ids := make(map[string]uuid.UUID, len(b.Questions))

	for i, q := range b.Questions {
		correct := q.CorrectAnswer
		created, err := questions.Create(ctx, model.CreateQuestionRequest{
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: &correct,
			Topic:         q.Topic,
			Subject:       q.Subject,
			Difficulty:    q.Difficulty,
			Year:          q.Year,
		})
		if err != nil {
			return sum, fmt.Errorf("question %d: %w", i+1, err)
		}
		if q.Ref != "" {
			ids[q.Ref] = created.ID
		}
		sum.Questions++
	}

	for _, t := range b.Tests {
		qids := make([]uuid.UUID, len(t.Questions))
		for i, ref := range t.Questions {
			qids[i] = ids[ref]
		}
		created, err := tests.Create(ctx, model.CreateTestRequest{
			Name:             t.Name,
			Description:      t.Description,
			QuestionIDs:      qids,
			StartDate:        t.StartDate,
			EndDate:          t.EndDate,
			DurationMinutes:  t.DurationMinutes,
			TimeLimitMinutes: t.TimeLimitMinutes,
			Settings: model.TestSettings{
				RandomizeQuestions: t.Settings.RandomizeQuestions,
				AllowReview:        t.Settings.AllowReview,
				ShowCorrectAnswers: t.Settings.ShowCorrectAnswers,
			},
		})
		if err != nil {
			return sum, fmt.Errorf("test %q: %w", t.Name, err)
		}
		sum.Tests[t.Name] = created.Code
	}
	return sum, nil
}
