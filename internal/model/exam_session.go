package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states. InProgress is the only
// non-terminal state once grading has finished; Submitted is transient
// between submission and the end of the grading cascade.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusSubmitted  SessionStatus = "SUBMITTED"
	SessionStatusGraded     SessionStatus = "GRADED"
	SessionStatusTimeout    SessionStatus = "TIMEOUT"
)

// Terminal reports whether the status permits no further answering.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusGraded || s == SessionStatusTimeout
}

// ExamSession represents one user's timed attempt at a paper.
type ExamSession struct {
	ID              uuid.UUID     `json:"id"`
	UserID          int           `json:"user_id"`
	PaperID         uuid.UUID     `json:"paper_id"`
	Status          SessionStatus `json:"status"`
	StartedAt       time.Time     `json:"started_at"`
	SubmittedAt     *time.Time    `json:"submitted_at,omitempty"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
	ObjectiveScore  float64       `json:"objective_score"`
	SubjectiveScore float64       `json:"subjective_score"`
	TotalScore      float64       `json:"total_score"`
	Passed          *bool         `json:"passed,omitempty"`
	// AbnormalBehaviors is a JSON-serialized ordered list of timestamped
	// free-text entries. Best-effort audit trail only.
	AbnormalBehaviors string `json:"abnormal_behaviors,omitempty"`
	// GradingError records a suppressed post-submission grading failure so it
	// stays observable instead of vanishing into a log line.
	GradingError *string   `json:"grading_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ExamProgress summarizes how far along a session is.
type ExamProgress struct {
	TotalQuestions    int  `json:"total_questions"`
	AnsweredQuestions int  `json:"answered_questions"`
	RemainingMinutes  int  `json:"remaining_minutes"`
	IsTimeout         bool `json:"is_timeout"`
}
