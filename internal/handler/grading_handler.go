package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openexam/openexam-backend/internal/middleware"
	"github.com/openexam/openexam-backend/internal/model"
	"github.com/openexam/openexam-backend/internal/response"
	"github.com/openexam/openexam-backend/internal/service"
	"github.com/openexam/openexam-backend/internal/validator"
)

// GradingHandler handles the grader-facing endpoints.
type GradingHandler struct {
	gradingService *service.GradingService
}

// NewGradingHandler creates a new GradingHandler.
func NewGradingHandler(gradingService *service.GradingService) *GradingHandler {
	return &GradingHandler{gradingService: gradingService}
}

// ListPendingSubjective godoc
// GET /api/v1/admin/sessions/:id/pending
func (h *GradingHandler) ListPendingSubjective(c *gin.Context) {
	sessionID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	pending, err := h.gradingService.ListPendingSubjective(c.Request.Context(), sessionID)
	if err != nil {
		failFromService(c, err)
		return
	}
	if pending == nil {
		pending = []model.AnswerEntry{}
	}

	response.Success(c, http.StatusOK, gin.H{"answers": pending})
}

// GradeAnswerRequest is the payload for grading one subjective answer.
type GradeAnswerRequest struct {
	Score   float64 `json:"score" binding:"min=0"`
	Comment string  `json:"comment" binding:"omitempty,max=2000"`
}

// GradeAnswer godoc
// POST /api/v1/admin/answers/:id/grade
func (h *GradingHandler) GradeAnswer(c *gin.Context) {
	answerID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req GradeAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	if err := h.gradingService.ManualGradeSubjectiveAnswer(c.Request.Context(), answerID, req.Score, req.Comment, claims.UserID); err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "answer graded"})
}

// BatchGradeRequest is the payload for grading several answers at once.
type BatchGradeRequest struct {
	Items []model.GradeItem `json:"items" binding:"required,min=1,dive"`
}

// BatchGrade godoc
// POST /api/v1/admin/grades/batch
// Items are independent; the response reports each outcome.
func (h *GradingHandler) BatchGrade(c *gin.Context) {
	var req BatchGradeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	results := h.gradingService.BatchGradeSubjectiveAnswers(c.Request.Context(), req.Items, claims.UserID)

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// RegradeSession godoc
// POST /api/v1/admin/sessions/:id/regrade
func (h *GradingHandler) RegradeSession(c *gin.Context) {
	sessionID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.gradingService.RegradeSession(c.Request.Context(), sessionID); err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "session regraded"})
}
