package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/examgate/examgate-backend/internal/middleware"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/response"
	"github.com/examgate/examgate-backend/internal/service"
	"github.com/examgate/examgate-backend/internal/validator"
)

// TestHandler handles the examiner's test authoring endpoints.
type TestHandler struct {
	testService *service.TestService
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(testService *service.TestService) *TestHandler {
	return &TestHandler{testService: testService}
}

// CreateTest godoc
// POST /api/v1/tests
func (h *TestHandler) CreateTest(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// ListTests godoc
// GET /api/v1/tests?page=1&per_page=20
func (h *TestHandler) ListTests(c *gin.Context) {
	claims := middleware.GetClaims(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	tests, total, err := h.testService.ListByAuthor(c.Request.Context(), claims.UserID, page, perPage, time.Now())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	totalPages := (total + perPage - 1) / perPage
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": tests}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	})
}

// GetTest godoc
// GET /api/v1/tests/:testId
func (h *TestHandler) GetTest(c *gin.Context) {
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	test, err := h.testService.Get(c.Request.Context(), testID, time.Now())
	if err != nil {
		failTest(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// UpdateTest godoc
// PUT /api/v1/tests/:testId
func (h *TestHandler) UpdateTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	var req model.UpdateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Update(c.Request.Context(), claims.UserID, testID, &req)
	if err != nil {
		failTest(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// PublishTest godoc
// POST /api/v1/tests/:testId/publish
func (h *TestHandler) PublishTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	test, err := h.testService.Publish(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failTest(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// UnpublishTest godoc
// POST /api/v1/tests/:testId/unpublish
func (h *TestHandler) UnpublishTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	if err := h.testService.Unpublish(c.Request.Context(), claims.UserID, testID); err != nil {
		failTest(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GetQuestions godoc
// GET /api/v1/tests/:testId/questions
// Author view: includes correct keys.
func (h *TestHandler) GetQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	questions, err := h.testService.Questions(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failTest(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// ReplaceQuestions godoc
// PUT /api/v1/tests/:testId/questions
// Replaces the whole question set of an unpublished test.
func (h *TestHandler) ReplaceQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.testService.ReplaceQuestions(c.Request.Context(), claims.UserID, testID, &req); err != nil {
		failTest(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GetResults godoc
// GET /api/v1/tests/:testId/results?page=1&per_page=20
func (h *TestHandler) GetResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseTestID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	results, total, err := h.testService.Results(c.Request.Context(), claims.UserID, testID, page, perPage)
	if err != nil {
		failTest(c, err)
		return
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}

func parseTestID(c *gin.Context) (uuid.UUID, bool) {
	testID, err := uuid.Parse(c.Param("testId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return testID, true
}

func failTest(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTestNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotTestAuthor):
		response.Fail(c, http.StatusForbidden, response.ErrNotTestAuthor)
	case errors.Is(err, service.ErrTestPublished):
		response.Fail(c, http.StatusConflict, response.ErrTestPublished)
	case errors.Is(err, service.ErrTestHasNoQuestion):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
