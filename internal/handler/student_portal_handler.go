package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/examgate/examgate-backend/internal/middleware"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/policy"
	"github.com/examgate/examgate-backend/internal/response"
	"github.com/examgate/examgate-backend/internal/service"
	"github.com/examgate/examgate-backend/internal/validator"
)

// StudentPortalHandler handles the student-facing exam endpoints.
type StudentPortalHandler struct {
	sessionService *service.ExamSessionService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(sessionService *service.ExamSessionService) *StudentPortalHandler {
	return &StudentPortalHandler{sessionService: sessionService}
}

// GetLobby godoc
// GET /api/v1/student/lobby
// Lists published tests with live accessibility and the student's progress.
func (h *StudentPortalHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)

	entries, err := h.sessionService.Lobby(c.Request.Context(), claims.UserID, time.Now())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"tests": entries})
}

// StartTest godoc
// POST /api/v1/student/tests/:testId/start
// Creates a new session or resumes the active one.
func (h *StudentPortalHandler) StartTest(c *gin.Context) {
	claims := middleware.GetClaims(c)

	testID, err := uuid.Parse(c.Param("testId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.Start(c.Request.Context(), claims.UserID, testID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, policy.ErrTestNotAccessible):
			response.Fail(c, http.StatusForbidden, response.ErrTestNotAccessible)
		case errors.Is(err, policy.ErrMaxAttemptsExceeded):
			response.Fail(c, http.StatusForbidden, response.ErrMaxAttemptsExceeded)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// GetPaper godoc
// GET /api/v1/student/sessions/:sessionId/paper
// Returns the question paper in the session's snapshot order, keys stripped.
func (h *StudentPortalHandler) GetPaper(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	paper, err := h.sessionService.Paper(c.Request.Context(), sessionID)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": paper})
}

// GetState godoc
// GET /api/v1/student/sessions/:sessionId/state
// Restores the client after a reload: answers, order, remaining time.
func (h *StudentPortalHandler) GetState(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	state, err := h.sessionService.State(c.Request.Context(), sessionID, time.Now())
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// SaveAnswer godoc
// PUT /api/v1/student/sessions/:sessionId/answers
// Saves (or overwrites) one answer.
func (h *StudentPortalHandler) SaveAnswer(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.sessionService.SaveAnswer(c.Request.Context(), sessionID, req.QuestionID, req.Value, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTimeExpired):
			response.Fail(c, http.StatusForbidden, response.ErrTimeExpired)
		case errors.Is(err, service.ErrSessionNotActive):
			response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// UpdateProgress godoc
// PUT /api/v1/student/sessions/:sessionId/progress
// Remembers the current question index for resume.
func (h *StudentPortalHandler) UpdateProgress(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var req struct {
		Index int `json:"index" binding:"min=0"`
	}
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.UpdateProgress(c.Request.Context(), sessionID, req.Index); err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// SubmitTest godoc
// POST /api/v1/student/sessions/:sessionId/submit
// Finishes the session and triggers grading.
func (h *StudentPortalHandler) SubmitTest(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Submit(c.Request.Context(), sessionID, time.Now())
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// ownedSession parses the session id and verifies it belongs to the caller.
func (h *StudentPortalHandler) ownedSession(c *gin.Context) (uuid.UUID, bool) {
	claims := middleware.GetClaims(c)

	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}

	session, err := h.sessionService.Session(c.Request.Context(), sessionID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return uuid.Nil, false
	}
	if session == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return uuid.Nil, false
	}
	if session.StudentID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return uuid.Nil, false
	}
	return sessionID, true
}

func (h *StudentPortalHandler) failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrSessionNotActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
	case errors.Is(err, service.ErrSessionAlreadyTerminal):
		response.Fail(c, http.StatusConflict, response.ErrSessionTerminal)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
