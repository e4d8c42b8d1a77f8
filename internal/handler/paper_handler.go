package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/openexam/openexam-backend/internal/middleware"
	"github.com/openexam/openexam-backend/internal/model"
	"github.com/openexam/openexam-backend/internal/response"
	"github.com/openexam/openexam-backend/internal/service"
	"github.com/openexam/openexam-backend/internal/validator"
)

// PaperHandler handles paper composition and lifecycle endpoints.
type PaperHandler struct {
	paperService *service.PaperService
}

// NewPaperHandler creates a new PaperHandler.
func NewPaperHandler(paperService *service.PaperService) *PaperHandler {
	return &PaperHandler{paperService: paperService}
}

// ComposePaperRequest is the payload for assembling a paper.
type ComposePaperRequest struct {
	Mode   string                `json:"mode" binding:"required,oneof=FIXED RANDOM MIXED"`
	Draft  model.PaperDraft      `json:"draft" binding:"required"`
	Fixed  []model.FixedQuestion `json:"fixed" binding:"omitempty,dive"`
	Random *model.RandomConfig   `json:"random" binding:"omitempty"`
	Mixed  *model.MixedConfig    `json:"mixed" binding:"omitempty"`
}

// ComposePaper godoc
// POST /api/v1/admin/papers
func (h *PaperHandler) ComposePaper(c *gin.Context) {
	var req ComposePaperRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	paper, questions, err := h.paperService.ComposePaper(c.Request.Context(), claims.UserID, service.ComposeInput{
		Mode:   model.PaperMode(req.Mode),
		Draft:  req.Draft,
		Fixed:  req.Fixed,
		Random: req.Random,
		Mixed:  req.Mixed,
	})
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"paper": paper, "questions": questions})
}

// GetPaper godoc
// GET /api/v1/admin/papers/:id
func (h *PaperHandler) GetPaper(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	paper, err := h.paperService.GetPaper(c.Request.Context(), id)
	if err != nil {
		failFromService(c, err)
		return
	}

	questions, err := h.paperService.GetPaperQuestions(c.Request.Context(), id)
	if err != nil {
		failFromService(c, err)
		return
	}
	if questions == nil {
		questions = []model.PaperQuestion{}
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper, "questions": questions})
}

// SearchPapers godoc
// GET /api/v1/admin/papers?keyword=&status=&page=&per_page=
func (h *PaperHandler) SearchPapers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	var status *model.PaperStatus
	if raw := c.Query("status"); raw != "" {
		s := model.PaperStatus(raw)
		status = &s
	}

	papers, total, err := h.paperService.SearchPapers(c.Request.Context(), c.Query("keyword"), status, page, perPage)
	if err != nil {
		failFromService(c, err)
		return
	}
	if papers == nil {
		papers = []model.Paper{}
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"papers": papers}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}

// ActivatePaper godoc
// POST /api/v1/admin/papers/:id/activate
func (h *PaperHandler) ActivatePaper(c *gin.Context) {
	h.setStatus(c, h.paperService.ActivatePaper, "paper activated")
}

// ArchivePaper godoc
// POST /api/v1/admin/papers/:id/archive
func (h *PaperHandler) ArchivePaper(c *gin.Context) {
	h.setStatus(c, h.paperService.ArchivePaper, "paper archived")
}

func (h *PaperHandler) setStatus(c *gin.Context, op func(ctx context.Context, id uuid.UUID) error, msg string) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := op(c.Request.Context(), id); err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": msg})
}

// DuplicatePaper godoc
// POST /api/v1/admin/papers/:id/duplicate
func (h *PaperHandler) DuplicatePaper(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	paper, err := h.paperService.DuplicatePaper(c.Request.Context(), id)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"paper": paper})
}

// DeletePaper godoc
// DELETE /api/v1/admin/papers/:id
func (h *PaperHandler) DeletePaper(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.paperService.DeletePaper(c.Request.Context(), id); err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "paper deleted"})
}
