package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/mockmate/internal/model"
	"github.com/stemsi/mockmate/internal/response"
	"github.com/stemsi/mockmate/internal/service"
	"github.com/stemsi/mockmate/internal/validator"
)

// QuestionHandler handles question bank endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

type listQuestionsQuery struct {
	Subject    string `form:"subject" binding:"omitempty,max=100"`
	Topic      string `form:"topic" binding:"omitempty,max=100"`
	Difficulty string `form:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Year       *int   `form:"year" binding:"omitempty,min=1900,max=2100"`
	Search     string `form:"q" binding:"omitempty,max=200"`
}

// ListQuestions godoc
// GET /api/v1/questions
// Lists the bank filtered by subject, topic, difficulty, year and free text.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	var q listQuestionsQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	page, perPage := pageParams(c)
	filter := model.QuestionFilter{
		Subject:    q.Subject,
		Topic:      q.Topic,
		Difficulty: q.Difficulty,
		Year:       q.Year,
		Search:     q.Search,
	}

	questions, pagination, err := h.questionService.List(c.Request.Context(), filter, page, perPage)
	if err != nil {
		fail(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"questions": questions}, pagination)
}

// CreateQuestion godoc
// POST /api/v1/questions
// Adds a question to the bank.
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var req model.CreateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": question})
}
