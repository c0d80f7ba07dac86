package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/mockmate/internal/exam"
	"github.com/stemsi/mockmate/internal/model"
	"github.com/stemsi/mockmate/internal/response"
)

// QuestionService handles the question bank.
type QuestionService struct {
	questions QuestionStore
	log       zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questions QuestionStore, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		questions: questions,
		log:       log.With().Str("component", "question_service").Logger(),
	}
}

// Create adds a question to the bank.
func (s *QuestionService) Create(ctx context.Context, req model.CreateQuestionRequest) (*model.Question, error) {
	if req.CorrectAnswer == nil || *req.CorrectAnswer >= len(req.Options) {
		return nil, &exam.FieldError{Field: "correct_answer", Reason: "must index one of the options"}
	}

	difficulty := model.Difficulty(req.Difficulty)
	if difficulty == "" {
		difficulty = model.DifficultyMedium
	}

	q := &model.Question{
		Text:          strings.TrimSpace(req.Text),
		Options:       req.Options,
		CorrectAnswer: *req.CorrectAnswer,
		Topic:         strings.TrimSpace(req.Topic),
		Subject:       strings.TrimSpace(req.Subject),
		Difficulty:    difficulty,
		Year:          req.Year,
	}
	if err := s.questions.CreateQuestion(ctx, q); err != nil {
		return nil, err
	}

	s.log.Debug().Str("question_id", q.ID.String()).Str("topic", q.Topic).Msg("Question created")
	return q, nil
}

// List returns a filtered page of the bank.
func (s *QuestionService) List(ctx context.Context, f model.QuestionFilter, page, perPage int) ([]model.Question, *response.Pagination, error) {
	page, perPage, f.Limit, f.Offset = pageBounds(page, perPage)

	questions, total, err := s.questions.ListQuestions(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, response.NewPagination(page, perPage, total), nil
}
