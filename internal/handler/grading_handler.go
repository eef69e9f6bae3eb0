package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/examgate/examgate-backend/internal/middleware"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/response"
	"github.com/examgate/examgate-backend/internal/service"
	"github.com/examgate/examgate-backend/internal/validator"
)

// GradingHandler handles the examiner's session management endpoints.
type GradingHandler struct {
	gradingService *service.GradingService
	sessionService *service.ExamSessionService
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(gradingService *service.GradingService, sessionService *service.ExamSessionService) *GradingHandler {
	return &GradingHandler{gradingService: gradingService, sessionService: sessionService}
}

// GradeEssay godoc
// POST /api/v1/sessions/:sessionId/grade
// Awards points for one essay answer.
func (h *GradingHandler) GradeEssay(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	var req model.GradeEssayRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.gradingService.GradeEssay(c.Request.Context(), sessionID, req.QuestionID, req.Points, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrQuestionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrNotEssay):
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrNotEssay)
		case errors.Is(err, service.ErrSessionNotGraded):
			response.Fail(c, http.StatusConflict, response.ErrNotGraded)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// BeginReview godoc
// POST /api/v1/sessions/:sessionId/review
// Parks a finished session in UNDER_REVIEW.
func (h *GradingHandler) BeginReview(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.gradingService.BeginReview(c.Request.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrSessionNotActive):
			response.Fail(c, http.StatusConflict, response.ErrNotGraded)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// CancelSession godoc
// POST /api/v1/sessions/:sessionId/cancel
// Administratively voids an in-progress session. The attempt still counts.
func (h *GradingHandler) CancelSession(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Cancel(c.Request.Context(), sessionID, time.Now())
	if err != nil {
		failSessionTransition(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// CompleteSession godoc
// POST /api/v1/sessions/:sessionId/complete
// Administratively force-finishes an in-progress session, graded as usual.
func (h *GradingHandler) CompleteSession(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Complete(c.Request.Context(), sessionID, time.Now())
	if err != nil {
		failSessionTransition(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return sessionID, true
}

func failSessionTransition(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrSessionAlreadyTerminal):
		response.Fail(c, http.StatusConflict, response.ErrSessionTerminal)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
