package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openexam/openexam-backend/internal/model"
)

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

const sessionColumns = `id, user_id, paper_id, status, started_at, submitted_at, ended_at,
	objective_score, subjective_score, total_score, passed, abnormal_behaviors,
	grading_error, created_at, updated_at`

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.PaperID, &s.Status, &s.StartedAt, &s.SubmittedAt, &s.EndedAt,
		&s.ObjectiveScore, &s.SubjectiveScore, &s.TotalScore, &s.Passed, &s.AbnormalBehaviors,
		&s.GradingError, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession retrieves a session by ID.
func (r *ExamSessionRepository) GetSession(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
}

// GetActiveSession retrieves the user's IN_PROGRESS session for a paper.
func (r *ExamSessionRepository) GetActiveSession(ctx context.Context, userID int, paperID uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE user_id = $1 AND paper_id = $2 AND status = $3`,
		userID, paperID, model.SessionStatusInProgress))
}

// CreateSession inserts a new session. The partial unique index on
// (user_id, paper_id) WHERE status = 'IN_PROGRESS' makes a concurrent second
// start fail here rather than slip through the service's pre-check.
func (r *ExamSessionRepository) CreateSession(ctx context.Context, s *model.ExamSession) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_sessions (id, user_id, paper_id, status, started_at,
			objective_score, subjective_score, total_score, abnormal_behaviors,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.UserID, s.PaperID, s.Status, s.StartedAt,
		s.ObjectiveScore, s.SubjectiveScore, s.TotalScore, s.AbnormalBehaviors,
		s.CreatedAt, s.UpdatedAt)
	return err
}

// UpdateSession updates a session's mutable fields.
func (r *ExamSessionRepository) UpdateSession(ctx context.Context, s *model.ExamSession) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, submitted_at = $2, ended_at = $3, objective_score = $4,
		     subjective_score = $5, total_score = $6, passed = $7,
		     abnormal_behaviors = $8, grading_error = $9, updated_at = $10
		 WHERE id = $11`,
		s.Status, s.SubmittedAt, s.EndedAt, s.ObjectiveScore,
		s.SubjectiveScore, s.TotalScore, s.Passed,
		s.AbnormalBehaviors, s.GradingError, s.UpdatedAt, s.ID)
	return err
}

// MarkFinished transitions an IN_PROGRESS session to the given status,
// stamping submit and end times. The status guard in the WHERE clause makes
// concurrent submits and timeout sweeps race-safe: only one caller sees true.
func (r *ExamSessionRepository) MarkFinished(ctx context.Context, s *model.ExamSession, status model.SessionStatus) (bool, error) {
	now := time.Now()
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, submitted_at = $2, ended_at = $2, updated_at = $2
		 WHERE id = $3 AND status = $4`,
		status, now, s.ID, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	s.Status = status
	s.SubmittedAt = &now
	s.EndedAt = &now
	s.UpdatedAt = now
	return true, nil
}

// ListInProgress retrieves every IN_PROGRESS session for the timeout sweep.
func (r *ExamSessionRepository) ListInProgress(ctx context.Context) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE status = $1
		 ORDER BY started_at ASC`, model.SessionStatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.PaperID, &s.Status, &s.StartedAt, &s.SubmittedAt, &s.EndedAt,
			&s.ObjectiveScore, &s.SubjectiveScore, &s.TotalScore, &s.Passed, &s.AbnormalBehaviors,
			&s.GradingError, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// CountByPaper reports how many sessions exist for a paper.
func (r *ExamSessionRepository) CountByPaper(ctx context.Context, paperID uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE paper_id = $1`, paperID).Scan(&n)
	return n, err
}
