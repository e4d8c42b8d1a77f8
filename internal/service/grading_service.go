package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/openexam/openexam-backend/internal/grading"
	"github.com/openexam/openexam-backend/internal/model"
	"github.com/rs/zerolog"
)

// Partial credit awarded to a multiple-choice answer that selects only
// correct options but not all of them.
const partialCreditFactor = 0.5

// GradingService turns raw answers into scores: automatic grading for
// objective questions, a manual workflow for subjective ones, and total
// aggregation.
type GradingService struct {
	sessions  SessionStore
	answers   AnswerStore
	questions QuestionStore
	papers    PaperStore
	now       func() time.Time
	log       zerolog.Logger
}

// NewGradingService creates a GradingService.
func NewGradingService(sessions SessionStore, answers AnswerStore, questions QuestionStore, papers PaperStore, log zerolog.Logger) *GradingService {
	return &GradingService{
		sessions:  sessions,
		answers:   answers,
		questions: questions,
		papers:    papers,
		now:       time.Now,
		log:       log.With().Str("component", "grading_service").Logger(),
	}
}

// AutoGradeObjectiveAnswers grades every non-subjective answer of the session
// and stores the summed objective score on the session.
func (s *GradingService) AutoGradeObjectiveAnswers(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}

	entries, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}

	pqs, err := s.papers.ListPaperQuestions(ctx, session.PaperID)
	if err != nil {
		return fmt.Errorf("list paper questions: %w", err)
	}
	paperScores := make(map[uuid.UUID]float64, len(pqs))
	for _, pq := range pqs {
		paperScores[pq.QuestionID] = pq.Score
	}

	objectiveScore := 0.0
	for i := range entries {
		entry := &entries[i]

		question, err := s.getQuestion(ctx, entry.QuestionID)
		if err != nil {
			return err
		}
		if question.QuestionType.IsSubjective() {
			continue
		}

		maxScore, ok := paperScores[question.ID]
		if !ok {
			maxScore = question.DefaultScore
		}

		if err := gradeObjective(entry, question, maxScore); err != nil {
			return err
		}
		entry.IsGraded = true

		if err := s.answers.UpdateGrading(ctx, entry); err != nil {
			return fmt.Errorf("store grade: %w", err)
		}
		objectiveScore += entry.Score
	}

	session.ObjectiveScore = objectiveScore
	session.UpdatedAt = s.now()
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("store objective score: %w", err)
	}

	s.log.Debug().
		Str("session_id", sessionID.String()).
		Float64("objective_score", objectiveScore).
		Msg("Objective answers graded")
	return nil
}

// gradeObjective applies the type-specific rule. The switch is exhaustive
// over the objective types; subjective types never reach it.
func gradeObjective(entry *model.AnswerEntry, question *model.Question, maxScore float64) error {
	switch question.QuestionType {
	case model.QuestionTypeSingleChoice, model.QuestionTypeTrueFalse:
		correct := grading.ExactMatchDefault(entry.UserAnswer, question.Answer)
		entry.IsCorrect = correct
		entry.Score = 0
		if correct {
			entry.Score = maxScore
		}

	case model.QuestionTypeMultipleChoice:
		result := grading.CompareMultipleChoice(entry.UserAnswer, question.Answer)
		switch {
		case result.FullyCorrect:
			entry.Score = maxScore
			entry.IsCorrect = true
		case result.PartiallyCorrect:
			entry.Score = maxScore * partialCreditFactor
			entry.IsCorrect = false
		default:
			entry.Score = 0
			entry.IsCorrect = false
		}

	case model.QuestionTypeFillBlank:
		// TODO: some fill-blank answers encode alternates separated by "|";
		// grading currently compares against the whole literal. Pending
		// product decision before splitting.
		correct := grading.FuzzyMatch(entry.UserAnswer, question.Answer, grading.DefaultFuzzyThreshold)
		entry.IsCorrect = correct
		entry.Score = 0
		if correct {
			entry.Score = maxScore
		}

	case model.QuestionTypeShortAnswer, model.QuestionTypeEssay:
		return &InvalidStateError{Op: "auto grade", Reason: fmt.Sprintf("%s answers require manual grading", question.QuestionType)}

	default:
		return &InvalidStateError{Op: "auto grade", Reason: fmt.Sprintf("no grading rule for question type %q", question.QuestionType)}
	}
	return nil
}

// ManualGradeSubjectiveAnswer records a grader's score for a short-answer or
// essay response. When this was the last ungraded subjective answer of the
// session, the total score is computed and the session becomes GRADED.
func (s *GradingService) ManualGradeSubjectiveAnswer(ctx context.Context, answerID uuid.UUID, score float64, comment string, graderID int) error {
	entry, err := s.answers.GetAnswer(ctx, answerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Entity: "answer", ID: answerID.String()}
		}
		return fmt.Errorf("get answer: %w", err)
	}

	question, err := s.getQuestion(ctx, entry.QuestionID)
	if err != nil {
		return err
	}
	if !question.QuestionType.IsSubjective() {
		return &InvalidStateError{Op: "manual grade", Reason: "only short-answer and essay questions can be graded manually"}
	}

	session, err := s.getSession(ctx, entry.SessionID)
	if err != nil {
		return err
	}

	maxScore, err := s.effectiveScore(ctx, session.PaperID, question)
	if err != nil {
		return err
	}
	if score < 0 || score > maxScore {
		return &ValidationError{Problems: []string{fmt.Sprintf("score must be between 0 and %g", maxScore)}}
	}

	entry.Score = score
	entry.IsCorrect = score == maxScore
	entry.IsGraded = true
	entry.GraderID = &graderID
	entry.GradeComment = comment

	if err := s.answers.UpdateGrading(ctx, entry); err != nil {
		return fmt.Errorf("store grade: %w", err)
	}

	// Re-read entry states now, not from anything captured before this write.
	allGraded, err := s.allSubjectiveGraded(ctx, entry.SessionID)
	if err != nil {
		return err
	}
	if allGraded {
		return s.CalculateTotalScore(ctx, entry.SessionID)
	}
	return nil
}

// BatchGradeSubjectiveAnswers grades items in sequence. Each item succeeds or
// fails on its own; earlier successes are never rolled back.
func (s *GradingService) BatchGradeSubjectiveAnswers(ctx context.Context, items []model.GradeItem, graderID int) []model.GradeItemResult {
	results := make([]model.GradeItemResult, 0, len(items))
	for _, item := range items {
		res := model.GradeItemResult{AnswerID: item.AnswerID, OK: true}
		if err := s.ManualGradeSubjectiveAnswer(ctx, item.AnswerID, item.Score, item.Comment, graderID); err != nil {
			res.OK = false
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

// CalculateTotalScore sums graded objective and subjective scores, sets the
// pass flag against the paper's pass score, and marks the session GRADED.
func (s *GradingService) CalculateTotalScore(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	paper, err := s.papers.GetPaper(ctx, session.PaperID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Entity: "paper", ID: session.PaperID.String()}
		}
		return fmt.Errorf("get paper: %w", err)
	}

	entries, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}

	objective, subjective := 0.0, 0.0
	for _, entry := range entries {
		if !entry.IsGraded {
			continue
		}
		question, err := s.getQuestion(ctx, entry.QuestionID)
		if err != nil {
			return err
		}
		if question.QuestionType.IsSubjective() {
			subjective += entry.Score
		} else {
			objective += entry.Score
		}
	}

	passed := objective+subjective >= paper.PassScore
	session.ObjectiveScore = objective
	session.SubjectiveScore = subjective
	session.TotalScore = objective + subjective
	session.Passed = &passed
	session.Status = model.SessionStatusGraded
	session.UpdatedAt = s.now()

	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("store total score: %w", err)
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Float64("total_score", session.TotalScore).
		Bool("passed", passed).
		Msg("Session graded")
	return nil
}

// RegradeSession resets every answer entry, re-runs objective grading, and
// clears the session's subjective/total scores and pass flag. Subjective
// scores are lost and must be re-entered.
func (s *GradingService) RegradeSession(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}

	entries, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	for i := range entries {
		entry := &entries[i]
		entry.Score = 0
		entry.IsCorrect = false
		entry.IsGraded = false
		if err := s.answers.UpdateGrading(ctx, entry); err != nil {
			return fmt.Errorf("reset grade: %w", err)
		}
	}

	if err := s.AutoGradeObjectiveAnswers(ctx, sessionID); err != nil {
		return err
	}

	// Reload: AutoGradeObjectiveAnswers already stored the objective score.
	session, err = s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	session.SubjectiveScore = 0
	session.TotalScore = 0
	session.Passed = nil
	session.UpdatedAt = s.now()
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("reset session scores: %w", err)
	}
	return nil
}

// ListPendingSubjective returns the session's subjective answers that still
// need a grader.
func (s *GradingService) ListPendingSubjective(ctx context.Context, sessionID uuid.UUID) ([]model.AnswerEntry, error) {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}
	entries, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	var pending []model.AnswerEntry
	for _, entry := range entries {
		if entry.IsGraded {
			continue
		}
		question, err := s.getQuestion(ctx, entry.QuestionID)
		if err != nil {
			return nil, err
		}
		if question.QuestionType.IsSubjective() {
			pending = append(pending, entry)
		}
	}
	return pending, nil
}

// HasSubjectiveAnswers reports whether the session contains any short-answer
// or essay entries.
func (s *GradingService) HasSubjectiveAnswers(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	entries, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("list answers: %w", err)
	}
	for _, entry := range entries {
		question, err := s.getQuestion(ctx, entry.QuestionID)
		if err != nil {
			return false, err
		}
		if question.QuestionType.IsSubjective() {
			return true, nil
		}
	}
	return false, nil
}

func (s *GradingService) allSubjectiveGraded(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	entries, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("list answers: %w", err)
	}
	for _, entry := range entries {
		question, err := s.getQuestion(ctx, entry.QuestionID)
		if err != nil {
			return false, err
		}
		if question.QuestionType.IsSubjective() && !entry.IsGraded {
			return false, nil
		}
	}
	return true, nil
}

// effectiveScore resolves the score a question is worth inside a paper: the
// paper association's score when one exists, else the question default.
func (s *GradingService) effectiveScore(ctx context.Context, paperID uuid.UUID, question *model.Question) (float64, error) {
	pqs, err := s.papers.ListPaperQuestions(ctx, paperID)
	if err != nil {
		return 0, fmt.Errorf("list paper questions: %w", err)
	}
	for _, pq := range pqs {
		if pq.QuestionID == question.ID {
			return pq.Score, nil
		}
	}
	return question.DefaultScore, nil
}

func (s *GradingService) getSession(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "session", ID: id.String()}
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *GradingService) getQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	question, err := s.questions.GetQuestion(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "question", ID: id.String()}
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return question, nil
}
