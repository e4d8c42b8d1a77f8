package model

import (
	"time"

	"github.com/google/uuid"
)

// PaperStatus enumerates a paper's lifecycle states. Only ACTIVE papers can
// be started by students.
type PaperStatus string

const (
	PaperStatusDraft    PaperStatus = "DRAFT"
	PaperStatusActive   PaperStatus = "ACTIVE"
	PaperStatusArchived PaperStatus = "ARCHIVED"
)

// PaperMode enumerates the assembly strategies.
type PaperMode string

const (
	PaperModeFixed  PaperMode = "FIXED"
	PaperModeRandom PaperMode = "RANDOM"
	PaperModeMixed  PaperMode = "MIXED"
)

// Paper is an assembled exam: metadata plus an ordered set of question
// associations stored separately as PaperQuestion rows. TotalScore is always
// the sum of the association scores.
type Paper struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description,omitempty"`
	TotalScore      float64     `json:"total_score"`
	PassScore       float64     `json:"pass_score"`
	DurationMinutes int         `json:"duration_minutes"`
	Mode            PaperMode   `json:"mode"`
	Status          PaperStatus `json:"status"`
	// StartTime/EndTime bound when sessions may be started. Nil means
	// unbounded on that side.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	CreatorID int        `json:"creator_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PaperQuestion associates one question with one paper. OrderIndex is
// 1-based and contiguous within a paper.
type PaperQuestion struct {
	PaperID    uuid.UUID `json:"paper_id"`
	QuestionID uuid.UUID `json:"question_id"`
	OrderIndex int       `json:"order_index"`
	Score      float64   `json:"score"`
}

// PaperDraft carries the metadata fields of a paper being composed. The
// total score is derived from the questions, never supplied.
type PaperDraft struct {
	Name            string     `json:"name" binding:"required,min=1,max=255"`
	Description     string     `json:"description" binding:"omitempty,max=4000"`
	PassScore       float64    `json:"pass_score" binding:"min=0"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,gt=0"`
	StartTime       *time.Time `json:"start_time" binding:"omitempty"`
	EndTime         *time.Time `json:"end_time" binding:"omitempty"`
}

// FixedQuestion is one explicit (question, score) pick for a fixed paper.
type FixedQuestion struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Score      float64   `json:"score" binding:"gt=0"`
}

// RandomRule selects Count questions of one type (optionally one difficulty)
// from the bank, each worth ScorePerQuestion.
type RandomRule struct {
	QuestionType     QuestionType `json:"question_type" binding:"required"`
	Difficulty       *int         `json:"difficulty" binding:"omitempty,min=1,max=5"`
	Count            int          `json:"count" binding:"required,gt=0"`
	ScorePerQuestion float64      `json:"score_per_question" binding:"required,gt=0"`
}

// RandomConfig drives random assembly from a single bank.
type RandomConfig struct {
	BankID uuid.UUID    `json:"bank_id" binding:"required"`
	Rules  []RandomRule `json:"rules" binding:"required,min=1,dive"`
}

// MixedConfig combines an explicit question list with optional random rules.
// FixedQuestionScores overrides per-question scores; questions absent from
// the map use their default score.
type MixedConfig struct {
	FixedQuestionIDs    []uuid.UUID           `json:"fixed_question_ids" binding:"omitempty"`
	FixedQuestionScores map[uuid.UUID]float64 `json:"fixed_question_scores" binding:"omitempty"`
	Random              *RandomConfig         `json:"random" binding:"omitempty"`
}
