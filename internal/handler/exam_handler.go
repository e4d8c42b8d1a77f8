package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/openexam/openexam-backend/internal/middleware"
	"github.com/openexam/openexam-backend/internal/model"
	"github.com/openexam/openexam-backend/internal/response"
	"github.com/openexam/openexam-backend/internal/service"
	"github.com/openexam/openexam-backend/internal/validator"
)

// ExamHandler handles the student-facing exam session endpoints.
type ExamHandler struct {
	sessionService *service.ExamSessionService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(sessionService *service.ExamSessionService) *ExamHandler {
	return &ExamHandler{sessionService: sessionService}
}

// StartExam godoc
// POST /api/v1/student/papers/:id/start
func (h *ExamHandler) StartExam(c *gin.Context) {
	paperID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	claims := middleware.GetClaims(c)
	session, err := h.sessionService.Start(c.Request.Context(), claims.UserID, paperID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// SaveAnswerRequest is the payload for a single answer save.
type SaveAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Answer     string    `json:"answer" binding:"max=20000"`
}

// SaveAnswer godoc
// POST /api/v1/student/sessions/:id/answers
func (h *ExamHandler) SaveAnswer(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var req SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.SaveAnswer(c.Request.Context(), sessionID, req.QuestionID, req.Answer); err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "answer saved"})
}

// BatchSaveAnswersRequest is the payload for a batched answer save.
type BatchSaveAnswersRequest struct {
	Answers map[uuid.UUID]string `json:"answers" binding:"required,min=1"`
}

// BatchSaveAnswers godoc
// POST /api/v1/student/sessions/:id/answers/batch
func (h *ExamHandler) BatchSaveAnswers(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var req BatchSaveAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.BatchSaveAnswers(c.Request.Context(), sessionID, req.Answers); err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "answers saved"})
}

// SubmitExam godoc
// POST /api/v1/student/sessions/:id/submit
func (h *ExamHandler) SubmitExam(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Submit(c.Request.Context(), sessionID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// ResumeExam godoc
// GET /api/v1/student/sessions/:id/resume
func (h *ExamHandler) ResumeExam(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Resume(c.Request.Context(), sessionID)
	if err != nil {
		failFromService(c, err)
		return
	}

	answers, err := h.sessionService.ListSessionAnswers(c.Request.Context(), sessionID)
	if err != nil {
		failFromService(c, err)
		return
	}
	if answers == nil {
		answers = []model.AnswerEntry{}
	}

	response.Success(c, http.StatusOK, gin.H{"session": session, "answers": answers})
}

// GetProgress godoc
// GET /api/v1/student/sessions/:id/progress
func (h *ExamHandler) GetProgress(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	progress, err := h.sessionService.GetProgress(c.Request.Context(), sessionID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"progress": progress})
}

// GetSessionResult godoc
// GET /api/v1/student/sessions/:id
func (h *ExamHandler) GetSessionResult(c *gin.Context) {
	sessionID, ok := h.ownedSession(c)
	if !ok {
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// ownedSession parses the session id and verifies it belongs to the caller.
// Students must not read or write each other's sessions.
func (h *ExamHandler) ownedSession(c *gin.Context) (uuid.UUID, bool) {
	sessionID, ok := parseUUIDParam(c, "id")
	if !ok {
		return uuid.Nil, false
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		failFromService(c, err)
		return uuid.Nil, false
	}

	claims := middleware.GetClaims(c)
	if claims == nil || session.UserID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return uuid.Nil, false
	}
	return sessionID, true
}
