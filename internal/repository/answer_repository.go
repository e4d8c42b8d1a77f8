package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openexam/openexam-backend/internal/model"
)

// AnswerRepository handles answer-entry data access.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

const answerColumns = `id, session_id, question_id, user_answer, score, is_correct,
	is_graded, grader_id, grade_comment, answered_at`

func scanAnswer(row pgx.Row) (*model.AnswerEntry, error) {
	a := &model.AnswerEntry{}
	err := row.Scan(
		&a.ID, &a.SessionID, &a.QuestionID, &a.UserAnswer, &a.Score, &a.IsCorrect,
		&a.IsGraded, &a.GraderID, &a.GradeComment, &a.AnsweredAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetAnswer retrieves an answer entry by ID.
func (r *AnswerRepository) GetAnswer(ctx context.Context, id uuid.UUID) (*model.AnswerEntry, error) {
	return scanAnswer(r.pool.QueryRow(ctx,
		`SELECT `+answerColumns+` FROM answer_entries WHERE id = $1`, id))
}

// FindAnswer retrieves the entry for a (session, question) pair.
func (r *AnswerRepository) FindAnswer(ctx context.Context, sessionID, questionID uuid.UUID) (*model.AnswerEntry, error) {
	return scanAnswer(r.pool.QueryRow(ctx,
		`SELECT `+answerColumns+`
		 FROM answer_entries
		 WHERE session_id = $1 AND question_id = $2`, sessionID, questionID))
}

// ListBySession retrieves all answer entries of a session.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.AnswerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+answerColumns+`
		 FROM answer_entries
		 WHERE session_id = $1
		 ORDER BY answered_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.AnswerEntry
	for rows.Next() {
		var a model.AnswerEntry
		if err := rows.Scan(
			&a.ID, &a.SessionID, &a.QuestionID, &a.UserAnswer, &a.Score, &a.IsCorrect,
			&a.IsGraded, &a.GraderID, &a.GradeComment, &a.AnsweredAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

const upsertAnswerSQL = `
	INSERT INTO answer_entries (id, session_id, question_id, user_answer, answered_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (session_id, question_id)
	DO UPDATE SET user_answer = EXCLUDED.user_answer, answered_at = EXCLUDED.answered_at`

// UpsertAnswer inserts or updates the entry for (session, question).
func (r *AnswerRepository) UpsertAnswer(ctx context.Context, entry *model.AnswerEntry) error {
	_, err := r.pool.Exec(ctx, upsertAnswerSQL,
		entry.ID, entry.SessionID, entry.QuestionID, entry.UserAnswer, entry.AnsweredAt)
	return err
}

// UpsertAnswers applies a batch of entries in one transaction.
func (r *AnswerRepository) UpsertAnswers(ctx context.Context, entries []model.AnswerEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, entry := range entries {
		if _, err := tx.Exec(ctx, upsertAnswerSQL,
			entry.ID, entry.SessionID, entry.QuestionID, entry.UserAnswer, entry.AnsweredAt,
		); err != nil {
			return fmt.Errorf("upsert answer: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// UpdateGrading persists the grading outcome of an entry.
func (r *AnswerRepository) UpdateGrading(ctx context.Context, entry *model.AnswerEntry) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE answer_entries
		 SET score = $1, is_correct = $2, is_graded = $3, grader_id = $4, grade_comment = $5
		 WHERE id = $6`,
		entry.Score, entry.IsCorrect, entry.IsGraded, entry.GraderID, entry.GradeComment, entry.ID)
	return err
}
