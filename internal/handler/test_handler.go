package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/mockmate/internal/model"
	"github.com/stemsi/mockmate/internal/response"
	"github.com/stemsi/mockmate/internal/service"
	"github.com/stemsi/mockmate/internal/validator"
)

// TestHandler handles test management and the public lobby lookup.
type TestHandler struct {
	testService *service.TestService
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(testService *service.TestService) *TestHandler {
	return &TestHandler{testService: testService}
}

// CreateTest godoc
// POST /api/v1/tests
// Assembles a test from bank questions and returns it with its share code.
func (h *TestHandler) CreateTest(c *gin.Context) {
	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// GetTest godoc
// GET /api/v1/tests/:code
// Returns the full test, answer key included.
func (h *TestHandler) GetTest(c *gin.Context) {
	test, err := h.testService.GetByKey(c.Request.Context(), c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// ListResults godoc
// GET /api/v1/tests/:code/results
// Lists submitted results, newest first.
func (h *TestHandler) ListResults(c *gin.Context) {
	page, perPage := pageParams(c)

	results, pagination, err := h.testService.Results(c.Request.Context(), c.Param("code"), page, perPage)
	if err != nil {
		fail(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

// GetWindow godoc
// GET /api/v1/public/tests/:code/window
// Returns the public summary of a test and whether it can be entered now.
func (h *TestHandler) GetWindow(c *gin.Context) {
	window, err := h.testService.Window(c.Request.Context(), c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, window)
}
