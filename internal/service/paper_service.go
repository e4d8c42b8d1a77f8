package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/openexam/openexam-backend/internal/model"
	"github.com/rs/zerolog"
)

// PaperService assembles exam papers from question pools and manages their
// lifecycle. Random sampling uses an injected seedable source so the shuffle
// distribution is testable.
type PaperService struct {
	papers    PaperStore
	questions QuestionStore
	sessions  SessionStore
	// rng is shared across requests and rand.Rand is not safe for
	// concurrent use; rngMu serializes every draw.
	rng   *rand.Rand
	rngMu sync.Mutex
	now   func() time.Time
	log   zerolog.Logger
}

// NewPaperService creates a PaperService. rng may be nil, in which case a
// time-seeded source is used.
func NewPaperService(papers PaperStore, questions QuestionStore, sessions SessionStore, rng *rand.Rand, log zerolog.Logger) *PaperService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &PaperService{
		papers:    papers,
		questions: questions,
		sessions:  sessions,
		rng:       rng,
		now:       time.Now,
		log:       log.With().Str("component", "paper_service").Logger(),
	}
}

// ComposeInput carries the mode-specific configuration for ComposePaper.
// Exactly the fields matching Mode are consulted.
type ComposeInput struct {
	Mode   model.PaperMode
	Draft  model.PaperDraft
	Fixed  []model.FixedQuestion
	Random *model.RandomConfig
	Mixed  *model.MixedConfig
}

// ComposePaper builds and persists a new draft paper under the given mode.
// The operation is atomic: on any validation or pool error nothing is stored
// and no associations are returned. The returned paper's total score is
// always the sum of its association scores.
func (s *PaperService) ComposePaper(ctx context.Context, creatorID int, in ComposeInput) (*model.Paper, []model.PaperQuestion, error) {
	var (
		assocs []model.PaperQuestion
		err    error
	)

	switch in.Mode {
	case model.PaperModeFixed:
		assocs, err = s.buildFixed(ctx, in.Fixed)
	case model.PaperModeRandom:
		if in.Random == nil {
			err = &ValidationError{Problems: []string{"random config is required"}}
		} else {
			assocs, err = s.selectQuestions(ctx, *in.Random)
		}
	case model.PaperModeMixed:
		if in.Mixed == nil {
			err = &ValidationError{Problems: []string{"mixed config is required"}}
		} else {
			assocs, err = s.buildMixed(ctx, *in.Mixed)
		}
	default:
		err = &ValidationError{Problems: []string{fmt.Sprintf("unknown paper mode %q", in.Mode)}}
	}
	if err != nil {
		return nil, nil, err
	}
	if len(assocs) == 0 {
		return nil, nil, &ValidationError{Problems: []string{"paper must contain at least one question"}}
	}

	total := 0.0
	for _, a := range assocs {
		total += a.Score
	}

	paper := &model.Paper{
		ID:              uuid.New(),
		Name:            in.Draft.Name,
		Description:     in.Draft.Description,
		TotalScore:      total,
		PassScore:       in.Draft.PassScore,
		DurationMinutes: in.Draft.DurationMinutes,
		Mode:            in.Mode,
		Status:          model.PaperStatusDraft,
		StartTime:       in.Draft.StartTime,
		EndTime:         in.Draft.EndTime,
		CreatorID:       creatorID,
		CreatedAt:       s.now(),
		UpdatedAt:       s.now(),
	}
	if err := validatePaper(paper); err != nil {
		return nil, nil, err
	}

	for i := range assocs {
		assocs[i].PaperID = paper.ID
		assocs[i].OrderIndex = i + 1
	}

	if err := s.papers.CreatePaper(ctx, paper, assocs); err != nil {
		return nil, nil, fmt.Errorf("persist paper: %w", err)
	}

	s.log.Info().
		Str("paper_id", paper.ID.String()).
		Str("mode", string(in.Mode)).
		Int("questions", len(assocs)).
		Float64("total_score", total).
		Msg("Paper composed")

	return paper, assocs, nil
}

// buildFixed resolves an explicit ordered (question, score) list.
func (s *PaperService) buildFixed(ctx context.Context, fixed []model.FixedQuestion) ([]model.PaperQuestion, error) {
	if len(fixed) == 0 {
		return nil, &ValidationError{Problems: []string{"fixed paper needs at least one question"}}
	}

	seen := make(map[uuid.UUID]struct{}, len(fixed))
	assocs := make([]model.PaperQuestion, 0, len(fixed))
	for _, f := range fixed {
		if _, dup := seen[f.QuestionID]; dup {
			return nil, &ValidationError{Problems: []string{fmt.Sprintf("question %s listed twice", f.QuestionID)}}
		}
		seen[f.QuestionID] = struct{}{}

		if _, err := s.questions.GetQuestion(ctx, f.QuestionID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &NotFoundError{Entity: "question", ID: f.QuestionID.String()}
			}
			return nil, fmt.Errorf("resolve question %s: %w", f.QuestionID, err)
		}
		assocs = append(assocs, model.PaperQuestion{QuestionID: f.QuestionID, Score: f.Score})
	}
	return assocs, nil
}

// buildMixed concatenates the explicit fixed subset with an optional random
// subset; order indices are reassigned sequentially across both by the caller.
func (s *PaperService) buildMixed(ctx context.Context, cfg model.MixedConfig) ([]model.PaperQuestion, error) {
	var assocs []model.PaperQuestion

	seen := make(map[uuid.UUID]struct{}, len(cfg.FixedQuestionIDs))
	for _, qid := range cfg.FixedQuestionIDs {
		if _, dup := seen[qid]; dup {
			return nil, &ValidationError{Problems: []string{fmt.Sprintf("question %s listed twice", qid)}}
		}
		seen[qid] = struct{}{}

		q, err := s.questions.GetQuestion(ctx, qid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &NotFoundError{Entity: "question", ID: qid.String()}
			}
			return nil, fmt.Errorf("resolve question %s: %w", qid, err)
		}

		score, ok := cfg.FixedQuestionScores[qid]
		if !ok {
			score = q.DefaultScore
		}
		assocs = append(assocs, model.PaperQuestion{QuestionID: qid, Score: score})
	}

	if cfg.Random != nil && len(cfg.Random.Rules) > 0 {
		randomAssocs, err := s.selectQuestions(ctx, *cfg.Random)
		if err != nil {
			return nil, err
		}
		assocs = append(assocs, randomAssocs...)
	}

	if len(assocs) == 0 {
		return nil, &ValidationError{Problems: []string{"mixed paper must contain at least one question"}}
	}
	return assocs, nil
}

// selectQuestions applies random rules in order. Each rule's pool is shuffled
// with a full Fisher–Yates pass and the first Count elements are taken, so
// every Count-subset of the pool is equally likely. Order indices are
// assigned later, across the full concatenation.
func (s *PaperService) selectQuestions(ctx context.Context, cfg model.RandomConfig) ([]model.PaperQuestion, error) {
	var assocs []model.PaperQuestion

	for _, rule := range cfg.Rules {
		pool, err := s.questions.ListPool(ctx, cfg.BankID, rule.QuestionType, rule.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("query question pool: %w", err)
		}
		if len(pool) < rule.Count {
			return nil, &InsufficientPoolError{
				QuestionType: rule.QuestionType,
				Difficulty:   rule.Difficulty,
				Required:     rule.Count,
				Available:    len(pool),
			}
		}

		s.rngMu.Lock()
		for i := len(pool) - 1; i > 0; i-- {
			j := s.rng.Intn(i + 1)
			pool[i], pool[j] = pool[j], pool[i]
		}
		s.rngMu.Unlock()

		for _, q := range pool[:rule.Count] {
			assocs = append(assocs, model.PaperQuestion{
				QuestionID: q.ID,
				Score:      rule.ScorePerQuestion,
			})
		}
	}
	return assocs, nil
}

// validatePaper checks paper-level field constraints once the total is known.
func validatePaper(p *model.Paper) error {
	verr := &ValidationError{}
	if p.Name == "" {
		verr.add("name must not be empty")
	}
	if p.DurationMinutes <= 0 {
		verr.add("duration must be greater than zero")
	}
	if p.PassScore < 0 {
		verr.add("pass score must not be negative")
	}
	if p.TotalScore > 0 && p.PassScore > p.TotalScore {
		verr.add("pass score must not exceed total score")
	}
	if !verr.ok() {
		return verr
	}
	return nil
}

// GetPaper returns a paper by id.
func (s *PaperService) GetPaper(ctx context.Context, id uuid.UUID) (*model.Paper, error) {
	paper, err := s.papers.GetPaper(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "paper", ID: id.String()}
		}
		return nil, fmt.Errorf("get paper: %w", err)
	}
	return paper, nil
}

// GetPaperQuestions returns the paper's associations ordered by index.
func (s *PaperService) GetPaperQuestions(ctx context.Context, paperID uuid.UUID) ([]model.PaperQuestion, error) {
	if _, err := s.GetPaper(ctx, paperID); err != nil {
		return nil, err
	}
	pqs, err := s.papers.ListPaperQuestions(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("list paper questions: %w", err)
	}
	return pqs, nil
}

// ActivatePaper moves a paper to ACTIVE, making it startable.
func (s *PaperService) ActivatePaper(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, model.PaperStatusActive)
}

// ArchivePaper moves a paper to ARCHIVED.
func (s *PaperService) ArchivePaper(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, model.PaperStatusArchived)
}

func (s *PaperService) setStatus(ctx context.Context, id uuid.UUID, status model.PaperStatus) error {
	paper, err := s.GetPaper(ctx, id)
	if err != nil {
		return err
	}
	paper.Status = status
	paper.UpdatedAt = s.now()
	if err := s.papers.UpdatePaper(ctx, paper); err != nil {
		return fmt.Errorf("update paper status: %w", err)
	}
	return nil
}

// DuplicatePaper copies a paper and its associations into a new draft.
func (s *PaperService) DuplicatePaper(ctx context.Context, id uuid.UUID) (*model.Paper, error) {
	original, err := s.GetPaper(ctx, id)
	if err != nil {
		return nil, err
	}
	pqs, err := s.papers.ListPaperQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list paper questions: %w", err)
	}

	copyPaper := *original
	copyPaper.ID = uuid.New()
	copyPaper.Name = original.Name + " (copy)"
	copyPaper.Status = model.PaperStatusDraft
	copyPaper.CreatedAt = s.now()
	copyPaper.UpdatedAt = s.now()

	copied := make([]model.PaperQuestion, len(pqs))
	for i, pq := range pqs {
		copied[i] = model.PaperQuestion{
			PaperID:    copyPaper.ID,
			QuestionID: pq.QuestionID,
			OrderIndex: pq.OrderIndex,
			Score:      pq.Score,
		}
	}

	if err := s.papers.CreatePaper(ctx, &copyPaper, copied); err != nil {
		return nil, fmt.Errorf("persist paper copy: %w", err)
	}
	return &copyPaper, nil
}

// DeletePaper removes a paper that has never been attempted. Papers with
// sessions are kept for record integrity.
func (s *PaperService) DeletePaper(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetPaper(ctx, id); err != nil {
		return err
	}
	count, err := s.sessions.CountByPaper(ctx, id)
	if err != nil {
		return fmt.Errorf("count sessions: %w", err)
	}
	if count > 0 {
		return &InvalidStateError{Op: "delete paper", Reason: "paper already has exam sessions"}
	}
	if err := s.papers.DeletePaper(ctx, id); err != nil {
		return fmt.Errorf("delete paper: %w", err)
	}
	return nil
}

// SearchPapers returns a page of papers matching the keyword and status filter.
func (s *PaperService) SearchPapers(ctx context.Context, keyword string, status *model.PaperStatus, page, perPage int) ([]model.Paper, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.papers.SearchPapers(ctx, keyword, status, page, perPage)
}
