package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/mockmate/internal/response"
	"github.com/stemsi/mockmate/internal/service"
)

// MonitorHandler exposes the live answer journal of in-progress sessions.
type MonitorHandler struct {
	journal *service.AnswerJournal
	log     zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(journal *service.AnswerJournal, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		journal: journal,
		log:     log.With().Str("component", "monitor_handler").Logger(),
	}
}

// SessionAnswers godoc
// GET /api/v1/sessions/:session_id/answers
// Returns the options journaled so far, keyed by question id. Empty once the
// result has been saved.
func (h *MonitorHandler) SessionAnswers(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	answers, err := h.journal.Answers(c.Request.Context(), sessionID.String())
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to read answer journal")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUnavailable)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session_id":     sessionID,
		"answers":        answers,
		"answered_count": len(answers),
	})
}
