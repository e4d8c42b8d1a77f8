package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerEntry is the stored response (and eventual score) for one question
// within one session. (SessionID, QuestionID) is unique; rows are created
// lazily on first save and updated in place afterwards.
type AnswerEntry struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	QuestionID   uuid.UUID `json:"question_id"`
	UserAnswer   string    `json:"user_answer"`
	Score        float64   `json:"score"`
	IsCorrect    bool      `json:"is_correct"`
	IsGraded     bool      `json:"is_graded"`
	GraderID     *int      `json:"grader_id,omitempty"`
	GradeComment string    `json:"grade_comment,omitempty"`
	AnsweredAt   time.Time `json:"answered_at"`
}

// GradeItem is one manual grading instruction inside a batch.
type GradeItem struct {
	AnswerID uuid.UUID `json:"answer_id" binding:"required"`
	Score    float64   `json:"score" binding:"min=0"`
	Comment  string    `json:"comment" binding:"omitempty,max=2000"`
}

// GradeItemResult is the per-item outcome of a batch grading call. Items are
// independent: one failure never rolls back the others.
type GradeItemResult struct {
	AnswerID uuid.UUID `json:"answer_id"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
}
