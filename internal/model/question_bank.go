package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionBank represents a pool of questions papers are assembled from.
type QuestionBank struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     *int      `json:"owner_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateQuestionBankRequest is the payload for creating a question bank.
type CreateQuestionBankRequest struct {
	Name        string `json:"name" binding:"required,min=3,max=255"`
	Description string `json:"description" binding:"omitempty,max=2000"`
}
