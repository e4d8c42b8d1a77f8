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

// QuestionHandler handles question-bank management endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// ListBanks godoc
// GET /api/v1/admin/banks
func (h *QuestionHandler) ListBanks(c *gin.Context) {
	banks, err := h.questionService.ListBanks(c.Request.Context())
	if err != nil {
		failFromService(c, err)
		return
	}
	if banks == nil {
		banks = []model.QuestionBank{}
	}

	response.Success(c, http.StatusOK, gin.H{"banks": banks})
}

// CreateBank godoc
// POST /api/v1/admin/banks
func (h *QuestionHandler) CreateBank(c *gin.Context) {
	var req model.CreateQuestionBankRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	bank, err := h.questionService.CreateBank(c.Request.Context(), claims.UserID, req)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"bank": bank})
}

// UpdateBank godoc
// PUT /api/v1/admin/banks/:id
func (h *QuestionHandler) UpdateBank(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req model.CreateQuestionBankRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	bank, err := h.questionService.UpdateBank(c.Request.Context(), id, req)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"bank": bank})
}

// DeleteBank godoc
// DELETE /api/v1/admin/banks/:id
func (h *QuestionHandler) DeleteBank(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.questionService.DeleteBank(c.Request.Context(), id); err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "bank deleted"})
}

// ListBankQuestions godoc
// GET /api/v1/admin/banks/:id/questions
func (h *QuestionHandler) ListBankQuestions(c *gin.Context) {
	bankID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	questions, err := h.questionService.ListBankQuestions(c.Request.Context(), bankID)
	if err != nil {
		failFromService(c, err)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddQuestion godoc
// POST /api/v1/admin/banks/:id/questions
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	bankID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req model.CreateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.CreateQuestion(c.Request.Context(), bankID, req)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// UpdateQuestion godoc
// PUT /api/v1/admin/questions/:id
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req model.CreateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.UpdateQuestion(c.Request.Context(), id, req)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// DeleteQuestion godoc
// DELETE /api/v1/admin/questions/:id
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.questionService.DeleteQuestion(c.Request.Context(), id); err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "question deleted"})
}
