package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/openexam/openexam-backend/internal/model"
)

// The core consumes persistence through these narrow interfaces. The pgx
// implementations live in internal/repository; tests use in-memory fakes.
// Lookup methods return pgx.ErrNoRows (wrapped or bare) when nothing matches,
// which services translate into NotFoundError.

// PaperStore provides paper and paper-question persistence.
type PaperStore interface {
	GetPaper(ctx context.Context, id uuid.UUID) (*model.Paper, error)
	// CreatePaper persists the paper and its question associations in a
	// single transaction. Either everything lands or nothing does.
	CreatePaper(ctx context.Context, paper *model.Paper, questions []model.PaperQuestion) error
	UpdatePaper(ctx context.Context, paper *model.Paper) error
	DeletePaper(ctx context.Context, id uuid.UUID) error
	ListPaperQuestions(ctx context.Context, paperID uuid.UUID) ([]model.PaperQuestion, error)
	SearchPapers(ctx context.Context, keyword string, status *model.PaperStatus, page, perPage int) ([]model.Paper, int64, error)
}

// QuestionStore provides question-pool lookups.
type QuestionStore interface {
	GetQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error)
	// ListPool returns all questions of a bank matching type and, when
	// difficulty is non-nil, difficulty.
	ListPool(ctx context.Context, bankID uuid.UUID, questionType model.QuestionType, difficulty *int) ([]model.Question, error)
}

// SessionStore provides exam-session persistence.
type SessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	// GetActiveSession returns the user's IN_PROGRESS session for the paper,
	// or pgx.ErrNoRows if none exists.
	GetActiveSession(ctx context.Context, userID int, paperID uuid.UUID) (*model.ExamSession, error)
	CreateSession(ctx context.Context, session *model.ExamSession) error
	UpdateSession(ctx context.Context, session *model.ExamSession) error
	// MarkFinished transitions an IN_PROGRESS session to the given terminal
	// or transient status, stamping submit/end times. It reports false when
	// the session was no longer IN_PROGRESS, making concurrent sweeps and
	// submits no-ops rather than errors.
	MarkFinished(ctx context.Context, session *model.ExamSession, status model.SessionStatus) (bool, error)
	ListInProgress(ctx context.Context) ([]model.ExamSession, error)
	CountByPaper(ctx context.Context, paperID uuid.UUID) (int64, error)
}

// AnswerStore provides answer-entry persistence.
type AnswerStore interface {
	GetAnswer(ctx context.Context, id uuid.UUID) (*model.AnswerEntry, error)
	// FindAnswer looks up the entry for (session, question), pgx.ErrNoRows if absent.
	FindAnswer(ctx context.Context, sessionID, questionID uuid.UUID) (*model.AnswerEntry, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.AnswerEntry, error)
	// UpsertAnswer inserts or updates by (session, question).
	UpsertAnswer(ctx context.Context, entry *model.AnswerEntry) error
	// UpsertAnswers applies a batch as one transaction.
	UpsertAnswers(ctx context.Context, entries []model.AnswerEntry) error
	// UpdateGrading persists score/correctness/graded/grader fields.
	UpdateGrading(ctx context.Context, entry *model.AnswerEntry) error
}

// QuestionAdminStore extends QuestionStore with the write operations of the
// bank-management surface.
type QuestionAdminStore interface {
	QuestionStore
	ListByBank(ctx context.Context, bankID uuid.UUID) ([]model.Question, error)
	CreateQuestion(ctx context.Context, q *model.Question) error
	UpdateQuestion(ctx context.Context, q *model.Question) error
	DeleteQuestion(ctx context.Context, id uuid.UUID) error
	// CountPaperReferences reports how many papers use the question.
	CountPaperReferences(ctx context.Context, id uuid.UUID) (int64, error)
}

// BankStore provides question-bank persistence.
type BankStore interface {
	GetBank(ctx context.Context, id uuid.UUID) (*model.QuestionBank, error)
	CreateBank(ctx context.Context, b *model.QuestionBank) error
	UpdateBank(ctx context.Context, b *model.QuestionBank) error
	DeleteBank(ctx context.Context, id uuid.UUID) error
	ListBanks(ctx context.Context) ([]model.QuestionBank, error)
}

// UserStore provides account lookups for authentication.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
}
