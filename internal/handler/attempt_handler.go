package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepdesk/examtake/internal/attempt"
	"github.com/prepdesk/examtake/internal/gateway"
	"github.com/prepdesk/examtake/internal/middleware"
	"github.com/prepdesk/examtake/internal/model"
	"github.com/prepdesk/examtake/internal/response"
	"github.com/prepdesk/examtake/internal/service"
	"github.com/prepdesk/examtake/internal/validator"
	"github.com/rs/zerolog"
)

// AttemptHandler exposes the attempt session over HTTP.
type AttemptHandler struct {
	svc *service.AttemptService
	log zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(svc *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		svc: svc,
		log: log.With().Str("component", "attempt_handler").Logger(),
	}
}

// attemptID parses the :attempt_id route parameter.
func attemptID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("attempt_id"), 10, 64)
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

// failFromErr translates session and gateway errors into the response
// envelope. Every remote failure is caught here; nothing leaks upward as
// a bare 500 unless it is genuinely unclassified.
func failFromErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attempt.ErrPositionOutOfRange):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPosition)
	case errors.Is(err, attempt.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptSubmitted)
	case errors.Is(err, attempt.ErrNotSubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotSubmitted)
	case errors.Is(err, attempt.ErrReviewUnavailable):
		response.Fail(c, http.StatusForbidden, response.ErrReviewUnavailable)
	case errors.Is(err, attempt.ErrSessionClosed):
		response.Fail(c, http.StatusConflict, response.ErrNoActiveSession)
	case errors.Is(err, attempt.ErrNotConfirming):
		response.Fail(c, http.StatusConflict, response.ErrNotConfirming)
	case errors.Is(err, service.ErrTimedNoExit):
		response.Fail(c, http.StatusBadRequest, response.ErrTimedNoExit)
	default:
		failFromGateway(c, err)
	}
}

func failFromGateway(c *gin.Context, err error) {
	var gerr *gateway.Error
	if !errors.As(err, &gerr) {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	switch gerr.Kind {
	case gateway.KindUnauthorized:
		response.Fail(c, http.StatusUnauthorized, response.ErrCredentialRejected)
	case gateway.KindNotFound:
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case gateway.KindConflict:
		response.Fail(c, http.StatusConflict, response.ErrAttemptSubmitted)
	case gateway.KindValidation:
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"detail": gerr.Detail})
	default:
		response.Fail(c, http.StatusBadGateway, response.ErrUpstreamUnavailable)
	}
}

// StartAttempt godoc
// POST /api/v1/attempts
// Creates an attempt upstream and opens its session.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctrl, err := h.svc.Start(c.Request.Context(), middleware.GetCredential(c), req)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": ctrl.Snapshot(time.Now(), 1)})
}

// GetSession godoc
// GET /api/v1/attempts/:attempt_id?position=N
// Returns the session snapshot; this is the endpoint a reloaded page
// rebuilds itself from.
func (h *AttemptHandler) GetSession(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}

	position := 0
	if raw := c.Query("position"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPosition)
			return
		}
		position = p
	}

	ctrl, err := h.svc.Session(c.Request.Context(), middleware.GetCredential(c), id)
	if err != nil {
		failFromErr(c, err)
		return
	}
	h.svc.Touch(id)

	response.Success(c, http.StatusOK, gin.H{"session": ctrl.Snapshot(time.Now(), position)})
}

// GetQuestion godoc
// GET /api/v1/attempts/:attempt_id/questions/:position
// Loads a question, reconciling the answered-set with the server-reported
// selection and recording the position for resume.
func (h *AttemptHandler) GetQuestion(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPosition)
		return
	}

	ctrl, err := h.svc.Session(c.Request.Context(), middleware.GetCredential(c), id)
	if err != nil {
		failFromErr(c, err)
		return
	}
	h.svc.Touch(id)

	ctx := gateway.WithCredential(c.Request.Context(), middleware.GetCredential(c))
	q, nav, err := ctrl.LoadQuestion(ctx, position)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": q, "nav": nav})
}

// RecordAnswer godoc
// POST /api/v1/attempts/:attempt_id/answers
// Records a selection upstream; the answered-set is only updated after
// the write is confirmed.
func (h *AttemptHandler) RecordAnswer(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctrl, err := h.svc.Session(c.Request.Context(), middleware.GetCredential(c), id)
	if err != nil {
		failFromErr(c, err)
		return
	}
	h.svc.Touch(id)

	ctx := gateway.WithCredential(c.Request.Context(), middleware.GetCredential(c))
	if err := ctrl.RecordAnswer(ctx, req.Position, req.QuestionID, req.SelectedLabel); err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"ok": true})
}

// RequestSubmit godoc
// POST /api/v1/attempts/:attempt_id/submit
// With unanswered questions remaining this parks in confirmation and does
// not touch the network; otherwise it submits.
func (h *AttemptHandler) RequestSubmit(c *gin.Context) {
	h.submitVia(c, func(ctrl *attempt.Controller) (attempt.SubmissionState, error) {
		return ctrl.RequestSubmit(c.Request.Context()), nil
	})
}

// ConfirmSubmit godoc
// POST /api/v1/attempts/:attempt_id/submit/confirm
func (h *AttemptHandler) ConfirmSubmit(c *gin.Context) {
	h.submitVia(c, func(ctrl *attempt.Controller) (attempt.SubmissionState, error) {
		return ctrl.ConfirmSubmit(c.Request.Context()), nil
	})
}

// CancelSubmit godoc
// POST /api/v1/attempts/:attempt_id/submit/cancel
func (h *AttemptHandler) CancelSubmit(c *gin.Context) {
	h.submitVia(c, func(ctrl *attempt.Controller) (attempt.SubmissionState, error) {
		return ctrl.CancelSubmit()
	})
}

// submitVia runs one workflow trigger and responds with the resulting
// snapshot, so the UI always sees the submission state it landed in.
func (h *AttemptHandler) submitVia(c *gin.Context, trigger func(*attempt.Controller) (attempt.SubmissionState, error)) {
	id, ok := attemptID(c)
	if !ok {
		return
	}

	ctrl, err := h.svc.Session(c.Request.Context(), middleware.GetCredential(c), id)
	if err != nil {
		failFromErr(c, err)
		return
	}
	h.svc.Touch(id)

	state, err := trigger(ctrl)
	if err != nil {
		failFromErr(c, err)
		return
	}
	// Triggers run the submit inline, so an in-flight state here means the
	// trigger lost to a concurrent submission and was ignored.
	if state == attempt.StateSubmitting || state == attempt.StateAutoSubmitting {
		response.Fail(c, http.StatusConflict, response.ErrSubmitInFlight)
		return
	}

	view := ctrl.Snapshot(time.Now(), 0)
	response.Success(c, http.StatusOK, gin.H{"submission_state": state, "session": view})
}

// GetResult godoc
// GET /api/v1/attempts/:attempt_id/result
func (h *AttemptHandler) GetResult(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}

	ctrl, err := h.svc.Session(c.Request.Context(), middleware.GetCredential(c), id)
	if err != nil {
		failFromErr(c, err)
		return
	}

	ctx := gateway.WithCredential(c.Request.Context(), middleware.GetCredential(c))
	res, err := ctrl.Result(ctx)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// GetReview godoc
// GET /api/v1/attempts/:attempt_id/review
func (h *AttemptHandler) GetReview(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}

	ctrl, err := h.svc.Session(c.Request.Context(), middleware.GetCredential(c), id)
	if err != nil {
		failFromErr(c, err)
		return
	}

	ctx := gateway.WithCredential(c.Request.Context(), middleware.GetCredential(c))
	items, err := ctrl.Review(ctx)
	if err != nil {
		failFromErr(c, err)
		return
	}
	if items == nil {
		items = []model.ReviewItem{}
	}

	response.Success(c, http.StatusOK, gin.H{"review": items})
}

// SaveAndExitRequest carries the position to resume from later.
type SaveAndExitRequest struct {
	Position int `json:"position" binding:"omitempty,min=1"`
}

// SaveAndExit godoc
// POST /api/v1/attempts/:attempt_id/exit
// Practice attempts only; records the resume position and tears the
// session down.
func (h *AttemptHandler) SaveAndExit(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}

	var req SaveAndExitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.svc.SaveAndExit(c.Request.Context(), middleware.GetCredential(c), id, req.Position); err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"ok": true})
}

// LastPractice godoc
// GET /api/v1/attempts/last-practice
// Resolves the caller's resume target.
func (h *AttemptHandler) LastPractice(c *gin.Context) {
	attemptIDVal, position, found, err := h.svc.LastPractice(c.Request.Context(), middleware.GetCredential(c))
	if err != nil {
		failFromErr(c, err)
		return
	}
	if !found {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt_id": attemptIDVal, "position": position})
}
