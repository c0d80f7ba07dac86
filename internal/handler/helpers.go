package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/mockmate/internal/exam"
	"github.com/stemsi/mockmate/internal/response"
	"github.com/stemsi/mockmate/internal/validator"
)

// fail writes the envelope for a service error.
func fail(c *gin.Context, err error) {
	var fe *exam.FieldError
	if errors.As(err, &fe) && fe.Field != "code" {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, validator.TranslateErrors(err))
		return
	}
	if status, _ := response.FromExamError(err); status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.FailExam(c, err)
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	return page, perPage
}
