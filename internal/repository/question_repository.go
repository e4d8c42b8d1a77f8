package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openexam/openexam-backend/internal/model"
)

// QuestionRepository handles question and question-bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, bank_id, question_type, content, options, answer,
	analysis, default_score, difficulty, created_at, updated_at`

func scanQuestion(row pgx.Row) (*model.Question, error) {
	q := &model.Question{}
	err := row.Scan(
		&q.ID, &q.BankID, &q.QuestionType, &q.Content, &q.Options, &q.Answer,
		&q.Analysis, &q.DefaultScore, &q.Difficulty, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// GetQuestion retrieves a question by ID.
func (r *QuestionRepository) GetQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	return scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
}

// ListPool retrieves all questions of a bank matching type and optional difficulty.
func (r *QuestionRepository) ListPool(ctx context.Context, bankID uuid.UUID, questionType model.QuestionType, difficulty *int) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE bank_id = $1 AND question_type = $2`
	args := []any{bankID, questionType}
	if difficulty != nil {
		args = append(args, *difficulty)
		query += fmt.Sprintf(" AND difficulty = $%d", len(args))
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuestions(rows)
}

// ListByBank retrieves all questions of a bank.
func (r *QuestionRepository) ListByBank(ctx context.Context, bankID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE bank_id = $1 ORDER BY created_at ASC`, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuestions(rows)
}

func collectQuestions(rows pgx.Rows) ([]model.Question, error) {
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(
			&q.ID, &q.BankID, &q.QuestionType, &q.Content, &q.Options, &q.Answer,
			&q.Analysis, &q.DefaultScore, &q.Difficulty, &q.CreatedAt, &q.UpdatedAt,
		); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CreateQuestion inserts a new question.
func (r *QuestionRepository) CreateQuestion(ctx context.Context, q *model.Question) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO questions (id, bank_id, question_type, content, options, answer,
			analysis, default_score, difficulty, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		q.ID, q.BankID, q.QuestionType, q.Content, q.Options, q.Answer,
		q.Analysis, q.DefaultScore, q.Difficulty, q.CreatedAt, q.UpdatedAt)
	return err
}

// UpdateQuestion updates a question's content fields.
func (r *QuestionRepository) UpdateQuestion(ctx context.Context, q *model.Question) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE questions
		 SET question_type = $1, content = $2, options = $3, answer = $4,
		     analysis = $5, default_score = $6, difficulty = $7, updated_at = $8
		 WHERE id = $9`,
		q.QuestionType, q.Content, q.Options, q.Answer,
		q.Analysis, q.DefaultScore, q.Difficulty, q.UpdatedAt, q.ID)
	return err
}

// DeleteQuestion removes a question.
func (r *QuestionRepository) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	return err
}

// CountPaperReferences reports how many papers reference the question.
func (r *QuestionRepository) CountPaperReferences(ctx context.Context, id uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM paper_questions WHERE question_id = $1`, id).Scan(&n)
	return n, err
}

// GetBank retrieves a question bank by ID.
func (r *QuestionRepository) GetBank(ctx context.Context, id uuid.UUID) (*model.QuestionBank, error) {
	b := &model.QuestionBank{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, description, created_at, updated_at
		 FROM question_banks WHERE id = $1`, id,
	).Scan(&b.ID, &b.OwnerID, &b.Name, &b.Description, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CreateBank inserts a new question bank.
func (r *QuestionRepository) CreateBank(ctx context.Context, b *model.QuestionBank) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO question_banks (id, owner_id, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.OwnerID, b.Name, b.Description, b.CreatedAt, b.UpdatedAt)
	return err
}

// UpdateBank updates a bank's name and description.
func (r *QuestionRepository) UpdateBank(ctx context.Context, b *model.QuestionBank) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE question_banks SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
		b.Name, b.Description, b.UpdatedAt, b.ID)
	return err
}

// DeleteBank removes a question bank; its questions cascade via the schema.
func (r *QuestionRepository) DeleteBank(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM question_banks WHERE id = $1`, id)
	return err
}

// ListBanks retrieves all question banks.
func (r *QuestionRepository) ListBanks(ctx context.Context) ([]model.QuestionBank, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, name, description, created_at, updated_at
		 FROM question_banks ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var banks []model.QuestionBank
	for rows.Next() {
		var b model.QuestionBank
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Name, &b.Description, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		banks = append(banks, b)
	}
	return banks, rows.Err()
}
