package service

import (
	"fmt"
	"strings"

	"github.com/openexam/openexam-backend/internal/model"
)

// The service layer surfaces failures as typed errors so callers can branch
// with errors.As instead of string matching. Nothing in this package panics
// on bad input or bad state.

// NotFoundError reports a missing paper/question/session/answer.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InvalidStateError reports an operation that is not valid for the current
// session or paper status (double submit, answering a finished session, ...).
type InvalidStateError struct {
	Op     string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// ValidationError collects field-level constraint violations.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, ", ")
}

func (e *ValidationError) add(problem string) {
	e.Problems = append(e.Problems, problem)
}

func (e *ValidationError) ok() bool { return len(e.Problems) == 0 }

// InsufficientPoolError reports a random-assembly rule that cannot be
// satisfied by the available question pool.
type InsufficientPoolError struct {
	QuestionType model.QuestionType
	Difficulty   *int
	Required     int
	Available    int
}

func (e *InsufficientPoolError) Error() string {
	if e.Difficulty != nil {
		return fmt.Sprintf("question pool insufficient: need %d %s questions at difficulty %d, only %d available",
			e.Required, e.QuestionType, *e.Difficulty, e.Available)
	}
	return fmt.Sprintf("question pool insufficient: need %d %s questions, only %d available",
		e.Required, e.QuestionType, e.Available)
}
