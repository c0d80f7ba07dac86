package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/mockmate/internal/exam"
	"github.com/stemsi/mockmate/internal/response"
	"github.com/stemsi/mockmate/internal/validator"
	ws "github.com/stemsi/mockmate/internal/websocket"
)

const maxMessageSize = 16 << 10

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// SessionHandler runs one exam session per WebSocket connection.
type SessionHandler struct {
	tests    exam.TestRepository
	results  exam.ResultStore
	recorder exam.AnswerRecorder
	cfg      exam.ControllerConfig
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewSessionHandler creates a new SessionHandler. recorder may be nil.
func NewSessionHandler(
	tests exam.TestRepository,
	results exam.ResultStore,
	recorder exam.AnswerRecorder,
	cfg exam.ControllerConfig,
	log zerolog.Logger,
	allowedOrigins []string,
) *SessionHandler {
	return &SessionHandler{
		tests:    tests,
		results:  results,
		recorder: recorder,
		cfg:      cfg,
		log:      log.With().Str("component", "session_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/v1/tests/:code/session
// Upgrades to WebSocket, loads the test and drives the session from client actions.
func (h *SessionHandler) Stream(c *gin.Context) {
	code, err := exam.NormalizeCode(c.Param("code"))
	if err != nil {
		response.FailExam(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	wsLog := h.log.With().Str("code", code).Str("request_id", response.RequestID(c)).Logger()
	ctrl := exam.NewController(h.tests, h.results, h.recorder, h.cfg, wsLog)
	defer ctrl.Close()

	out := make(chan any, 16)
	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, ctrl, out, done, wsLog)
	}()
	defer func() {
		close(done)
		<-writerDone
	}()

	send := func(v any) {
		select {
		case out <- v:
		case <-done:
		case <-writerDone:
		}
	}

	wsLog.Info().Msg("Client connected")
	if err := ctrl.Load(code); err != nil {
		send(errorEvent(err))
	}

	for {
		data, err := ws.ReadMessage(conn)
		if err != nil {
			if ws.IsNormalClose(err) {
				wsLog.Debug().Msg("Connection closed")
			} else {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		if reply := h.dispatch(ctrl, data); reply != nil {
			send(reply)
		}
	}
}

// writeLoop is the only goroutine writing to conn. It forwards every
// snapshot and turns phase transitions into paper and result events.
func (h *SessionHandler) writeLoop(conn *websocket.Conn, ctrl *exam.Controller, out <-chan any, done <-chan struct{}, log zerolog.Logger) {
	write := func(v any) bool {
		if err := ws.WriteTyped(conn, v); err != nil {
			log.Debug().Err(err).Msg("Write failed")
			conn.Close()
			return false
		}
		return true
	}

	for {
		select {
		case <-done:
			return
		case v := <-out:
			if !write(v) {
				return
			}
		case snap := <-ctrl.Updates():
			if !write(ws.StateResponse{Event: ws.EventState, State: snap}) {
				return
			}
		case tr := <-ctrl.Transitions():
			if ev := transitionEvent(tr); ev != nil && !write(ev) {
				return
			}
		}
	}
}

func transitionEvent(tr exam.Transition) any {
	switch tr.Phase {
	case exam.PhaseActive:
		return ws.PaperResponse{Event: ws.EventPaper, Questions: tr.Paper, RequestFullscreen: true}
	case exam.PhaseResults:
		return ws.ResultResponse{Event: ws.EventResult, Result: tr.Result, Review: tr.Review}
	}
	return nil
}

// dispatch applies one client message and returns the direct reply, if any.
func (h *SessionHandler) dispatch(ctrl *exam.Controller, data []byte) any {
	var env ws.RequestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return payloadError(response.ErrInvalidPayload, map[string]string{"detail": err.Error()})
	}

	var err error
	switch env.Action {
	case ws.ActionPing:
		return ws.PongResponse{Event: ws.EventPong}

	case ws.ActionEnter:
		var req ws.EnterRequest
		if reply := decode(data, &req); reply != nil {
			return reply
		}
		err = ctrl.Enter(req.EntryRequest)

	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if reply := decode(data, &req); reply != nil {
			return reply
		}
		err = ctrl.Answer(req.QID, *req.Option)

	case ws.ActionBookmark:
		var req ws.BookmarkRequest
		if reply := decode(data, &req); reply != nil {
			return reply
		}
		_, err = ctrl.ToggleBookmark(req.QID)

	case ws.ActionNavigate:
		var req ws.NavigateRequest
		if reply := decode(data, &req); reply != nil {
			return reply
		}
		err = ctrl.Navigate(*req.Index)

	case ws.ActionVisibility:
		var req ws.VisibilityRequest
		if reply := decode(data, &req); reply != nil {
			return reply
		}
		err = ctrl.SetHidden(req.Hidden)

	case ws.ActionSubmit:
		err = ctrl.Submit()
	case ws.ActionRetake:
		err = ctrl.Retake()
	case ws.ActionRetry:
		err = ctrl.Retry()

	default:
		h.log.Debug().Str("action", string(env.Action)).Msg("Unknown action")
		return payloadError(response.ErrUnknownAction, nil)
	}

	if err != nil {
		return errorEvent(err)
	}
	return nil
}

// decode parses and validates a typed request. It returns an error event on failure.
func decode(data []byte, dst any) any {
	if err := json.Unmarshal(data, dst); err != nil {
		return payloadError(response.ErrInvalidPayload, map[string]string{"detail": err.Error()})
	}
	if fields := validator.Struct(dst); fields != nil {
		return payloadError(response.ErrValidation, fields)
	}
	return nil
}

func payloadError(code response.ErrCode, fields map[string]string) ws.ErrorResponse {
	return ws.ErrorResponse{
		Event:  ws.EventError,
		Code:   string(code),
		Error:  response.GetMessage(code),
		Fields: fields,
	}
}

func errorEvent(err error) ws.ErrorResponse {
	_, code := response.FromExamError(err)
	ev := payloadError(code, nil)
	var fe *exam.FieldError
	if errors.As(err, &fe) {
		ev.Fields = validator.TranslateErrors(err)
	}
	ev.Retryable = exam.Retryable(err)
	return ev
}
