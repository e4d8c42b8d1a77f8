package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openexam/openexam-backend/internal/model"
)

// PaperRepository handles paper and paper-question data access.
type PaperRepository struct {
	pool *pgxpool.Pool
}

// NewPaperRepository creates a new PaperRepository.
func NewPaperRepository(pool *pgxpool.Pool) *PaperRepository {
	return &PaperRepository{pool: pool}
}

const paperColumns = `id, name, description, total_score, pass_score, duration_minutes,
	mode, status, start_time, end_time, creator_id, created_at, updated_at`

func scanPaper(row pgx.Row) (*model.Paper, error) {
	p := &model.Paper{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.TotalScore, &p.PassScore, &p.DurationMinutes,
		&p.Mode, &p.Status, &p.StartTime, &p.EndTime, &p.CreatorID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPaper retrieves a paper by ID.
func (r *PaperRepository) GetPaper(ctx context.Context, id uuid.UUID) (*model.Paper, error) {
	return scanPaper(r.pool.QueryRow(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE id = $1`, id))
}

// CreatePaper inserts a paper together with its question associations in a
// single transaction.
func (r *PaperRepository) CreatePaper(ctx context.Context, paper *model.Paper, questions []model.PaperQuestion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO papers (id, name, description, total_score, pass_score, duration_minutes,
			mode, status, start_time, end_time, creator_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		paper.ID, paper.Name, paper.Description, paper.TotalScore, paper.PassScore,
		paper.DurationMinutes, paper.Mode, paper.Status, paper.StartTime, paper.EndTime,
		paper.CreatorID, paper.CreatedAt, paper.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert paper: %w", err)
	}

	for _, pq := range questions {
		_, err = tx.Exec(ctx,
			`INSERT INTO paper_questions (paper_id, question_id, order_index, score)
			 VALUES ($1, $2, $3, $4)`,
			pq.PaperID, pq.QuestionID, pq.OrderIndex, pq.Score)
		if err != nil {
			return fmt.Errorf("insert paper question: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// UpdatePaper updates a paper's mutable fields.
func (r *PaperRepository) UpdatePaper(ctx context.Context, paper *model.Paper) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE papers
		 SET name = $1, description = $2, total_score = $3, pass_score = $4,
		     duration_minutes = $5, mode = $6, status = $7, start_time = $8,
		     end_time = $9, updated_at = $10
		 WHERE id = $11`,
		paper.Name, paper.Description, paper.TotalScore, paper.PassScore,
		paper.DurationMinutes, paper.Mode, paper.Status, paper.StartTime,
		paper.EndTime, paper.UpdatedAt, paper.ID)
	return err
}

// DeletePaper removes a paper; associations cascade via the schema.
func (r *PaperRepository) DeletePaper(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM papers WHERE id = $1`, id)
	return err
}

// ListPaperQuestions retrieves a paper's associations ordered by index.
func (r *PaperRepository) ListPaperQuestions(ctx context.Context, paperID uuid.UUID) ([]model.PaperQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT paper_id, question_id, order_index, score
		 FROM paper_questions
		 WHERE paper_id = $1
		 ORDER BY order_index ASC`, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pqs []model.PaperQuestion
	for rows.Next() {
		var pq model.PaperQuestion
		if err := rows.Scan(&pq.PaperID, &pq.QuestionID, &pq.OrderIndex, &pq.Score); err != nil {
			return nil, err
		}
		pqs = append(pqs, pq)
	}
	return pqs, rows.Err()
}

// SearchPapers retrieves papers matching a keyword and optional status, paginated.
func (r *PaperRepository) SearchPapers(ctx context.Context, keyword string, status *model.PaperStatus, page, perPage int) ([]model.Paper, int64, error) {
	offset := (page - 1) * perPage

	baseQuery := ` FROM papers WHERE 1=1`
	args := []any{}

	if keyword != "" {
		args = append(args, "%"+keyword+"%")
		baseQuery += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}
	if status != nil {
		args = append(args, *status)
		baseQuery += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + paperColumns + baseQuery +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var papers []model.Paper
	for rows.Next() {
		var p model.Paper
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.TotalScore, &p.PassScore, &p.DurationMinutes,
			&p.Mode, &p.Status, &p.StartTime, &p.EndTime, &p.CreatorID, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		papers = append(papers, p)
	}
	return papers, total, rows.Err()
}
