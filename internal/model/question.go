package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeFillBlank      QuestionType = "FILL_BLANK"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
	QuestionTypeEssay          QuestionType = "ESSAY"
)

// AllQuestionTypes lists every QuestionType. The grading dispatch test walks
// this slice so a new type cannot ship without a handler.
var AllQuestionTypes = []QuestionType{
	QuestionTypeSingleChoice,
	QuestionTypeMultipleChoice,
	QuestionTypeTrueFalse,
	QuestionTypeFillBlank,
	QuestionTypeShortAnswer,
	QuestionTypeEssay,
}

// IsSubjective reports whether the type needs a human grader.
func (t QuestionType) IsSubjective() bool {
	return t == QuestionTypeShortAnswer || t == QuestionTypeEssay
}

// Question represents a single question inside a bank.
type Question struct {
	ID           uuid.UUID       `json:"id"`
	BankID       uuid.UUID       `json:"bank_id"`
	QuestionType QuestionType    `json:"question_type"`
	Content      string          `json:"content"`
	Options      json.RawMessage `json:"options,omitempty"`
	Answer       string          `json:"answer"`
	Analysis     string          `json:"analysis,omitempty"`
	DefaultScore float64         `json:"default_score"`
	Difficulty   int             `json:"difficulty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CreateQuestionRequest is the payload for adding a question to a bank.
type CreateQuestionRequest struct {
	QuestionType string          `json:"question_type" binding:"required,oneof=SINGLE_CHOICE MULTIPLE_CHOICE TRUE_FALSE FILL_BLANK SHORT_ANSWER ESSAY"`
	Content      string          `json:"content" binding:"required,min=1,max=4000"`
	Options      json.RawMessage `json:"options" binding:"omitempty"`
	Answer       string          `json:"answer" binding:"required,max=4000"`
	Analysis     string          `json:"analysis" binding:"omitempty,max=4000"`
	DefaultScore float64         `json:"default_score" binding:"required,gt=0"`
	Difficulty   int             `json:"difficulty" binding:"required,min=1,max=5"`
}
