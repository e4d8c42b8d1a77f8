package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/openexam/openexam-backend/internal/model"
	"github.com/rs/zerolog"
)

// QuestionService manages question banks and their questions, the pool the
// paper composer draws from.
type QuestionService struct {
	questions QuestionAdminStore
	banks     BankStore
	now       func() time.Time
	log       zerolog.Logger
}

// NewQuestionService creates a QuestionService.
func NewQuestionService(questions QuestionAdminStore, banks BankStore, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		questions: questions,
		banks:     banks,
		now:       time.Now,
		log:       log.With().Str("component", "question_service").Logger(),
	}
}

// CreateBank stores a new question bank.
func (s *QuestionService) CreateBank(ctx context.Context, ownerID int, req model.CreateQuestionBankRequest) (*model.QuestionBank, error) {
	bank := &model.QuestionBank{
		ID:          uuid.New(),
		OwnerID:     &ownerID,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}
	if err := s.banks.CreateBank(ctx, bank); err != nil {
		return nil, fmt.Errorf("create bank: %w", err)
	}
	return bank, nil
}

// GetBank returns a bank by id.
func (s *QuestionService) GetBank(ctx context.Context, id uuid.UUID) (*model.QuestionBank, error) {
	bank, err := s.banks.GetBank(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "question bank", ID: id.String()}
		}
		return nil, fmt.Errorf("get bank: %w", err)
	}
	return bank, nil
}

// UpdateBank renames a bank.
func (s *QuestionService) UpdateBank(ctx context.Context, id uuid.UUID, req model.CreateQuestionBankRequest) (*model.QuestionBank, error) {
	bank, err := s.GetBank(ctx, id)
	if err != nil {
		return nil, err
	}
	bank.Name = req.Name
	bank.Description = req.Description
	bank.UpdatedAt = s.now()
	if err := s.banks.UpdateBank(ctx, bank); err != nil {
		return nil, fmt.Errorf("update bank: %w", err)
	}
	return bank, nil
}

// DeleteBank removes a bank and its questions.
func (s *QuestionService) DeleteBank(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetBank(ctx, id); err != nil {
		return err
	}
	if err := s.banks.DeleteBank(ctx, id); err != nil {
		return fmt.Errorf("delete bank: %w", err)
	}
	return nil
}

// ListBanks returns every question bank.
func (s *QuestionService) ListBanks(ctx context.Context) ([]model.QuestionBank, error) {
	banks, err := s.banks.ListBanks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	return banks, nil
}

// CreateQuestion validates and stores a new question in the bank.
func (s *QuestionService) CreateQuestion(ctx context.Context, bankID uuid.UUID, req model.CreateQuestionRequest) (*model.Question, error) {
	if _, err := s.GetBank(ctx, bankID); err != nil {
		return nil, err
	}
	if err := validateQuestion(model.QuestionType(req.QuestionType), req.Options, req.Answer); err != nil {
		return nil, err
	}

	question := &model.Question{
		ID:           uuid.New(),
		BankID:       bankID,
		QuestionType: model.QuestionType(req.QuestionType),
		Content:      req.Content,
		Options:      req.Options,
		Answer:       req.Answer,
		Analysis:     req.Analysis,
		DefaultScore: req.DefaultScore,
		Difficulty:   req.Difficulty,
		CreatedAt:    s.now(),
		UpdatedAt:    s.now(),
	}
	if err := s.questions.CreateQuestion(ctx, question); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}

	s.log.Debug().
		Str("question_id", question.ID.String()).
		Str("bank_id", bankID.String()).
		Str("type", string(question.QuestionType)).
		Msg("Question created")
	return question, nil
}

// GetQuestion returns a question by id.
func (s *QuestionService) GetQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	question, err := s.questions.GetQuestion(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "question", ID: id.String()}
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return question, nil
}

// UpdateQuestion replaces a question's content fields.
func (s *QuestionService) UpdateQuestion(ctx context.Context, id uuid.UUID, req model.CreateQuestionRequest) (*model.Question, error) {
	question, err := s.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateQuestion(model.QuestionType(req.QuestionType), req.Options, req.Answer); err != nil {
		return nil, err
	}

	question.QuestionType = model.QuestionType(req.QuestionType)
	question.Content = req.Content
	question.Options = req.Options
	question.Answer = req.Answer
	question.Analysis = req.Analysis
	question.DefaultScore = req.DefaultScore
	question.Difficulty = req.Difficulty
	question.UpdatedAt = s.now()

	if err := s.questions.UpdateQuestion(ctx, question); err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	return question, nil
}

// DeleteQuestion removes a question not referenced by any paper.
func (s *QuestionService) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetQuestion(ctx, id); err != nil {
		return err
	}
	refs, err := s.questions.CountPaperReferences(ctx, id)
	if err != nil {
		return fmt.Errorf("count paper references: %w", err)
	}
	if refs > 0 {
		return &InvalidStateError{Op: "delete question", Reason: "question is used by one or more papers"}
	}
	if err := s.questions.DeleteQuestion(ctx, id); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

// ListBankQuestions returns all questions of a bank.
func (s *QuestionService) ListBankQuestions(ctx context.Context, bankID uuid.UUID) ([]model.Question, error) {
	if _, err := s.GetBank(ctx, bankID); err != nil {
		return nil, err
	}
	questions, err := s.questions.ListByBank(ctx, bankID)
	if err != nil {
		return nil, fmt.Errorf("list bank questions: %w", err)
	}
	return questions, nil
}

// validateQuestion enforces the type-specific shape rules the binding tags
// cannot express.
func validateQuestion(qtype model.QuestionType, options json.RawMessage, answer string) error {
	verr := &ValidationError{}

	switch qtype {
	case model.QuestionTypeSingleChoice, model.QuestionTypeMultipleChoice:
		if len(options) == 0 {
			verr.add("choice questions require options")
		} else {
			var opts map[string]string
			if err := json.Unmarshal(options, &opts); err != nil {
				verr.add("options must be a JSON object of label to text")
			} else if len(opts) < 2 {
				verr.add("choice questions need at least two options")
			}
		}
	case model.QuestionTypeTrueFalse:
		if answer != "true" && answer != "false" {
			verr.add(`true/false answer must be "true" or "false"`)
		}
	case model.QuestionTypeFillBlank, model.QuestionTypeShortAnswer, model.QuestionTypeEssay:
		// Free-text: no shape constraints beyond the binding tags.
	default:
		verr.add(fmt.Sprintf("unknown question type %q", qtype))
	}

	if !verr.ok() {
		return verr
	}
	return nil
}
