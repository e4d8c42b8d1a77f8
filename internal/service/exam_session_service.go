package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/openexam/openexam-backend/internal/config"
	"github.com/openexam/openexam-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ExamSessionService owns the session state machine: start, save, submit,
// resume, timeout and the abnormal-behavior log. Post-submission grading is
// delegated to the GradingService; its failures are recorded, never allowed
// to fail a submission.
type ExamSessionService struct {
	sessions SessionStore
	papers   PaperStore
	answers  AnswerStore
	grading  *GradingService
	rdb      *redis.Client
	now      func() time.Time
	log      zerolog.Logger
}

// NewExamSessionService creates an ExamSessionService. rdb may be nil; the
// start-time cache is then skipped and every timeout check reads the store.
func NewExamSessionService(sessions SessionStore, papers PaperStore, answers AnswerStore, grading *GradingService, rdb *redis.Client, log zerolog.Logger) *ExamSessionService {
	return &ExamSessionService{
		sessions: sessions,
		papers:   papers,
		answers:  answers,
		grading:  grading,
		rdb:      rdb,
		now:      time.Now,
		log:      log.With().Str("component", "exam_session_service").Logger(),
	}
}

// Start creates a new IN_PROGRESS session for (user, paper). The paper must
// be ACTIVE, the current time inside its activation window, and the user must
// not already have an in-progress attempt at this paper.
func (s *ExamSessionService) Start(ctx context.Context, userID int, paperID uuid.UUID) (*model.ExamSession, error) {
	paper, err := s.getPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}

	if paper.Status != model.PaperStatusActive {
		return nil, &InvalidStateError{Op: "start exam", Reason: "paper is not active"}
	}

	now := s.now()
	if paper.StartTime != nil && now.Before(*paper.StartTime) {
		return nil, &InvalidStateError{Op: "start exam", Reason: "exam has not started yet"}
	}
	if paper.EndTime != nil && now.After(*paper.EndTime) {
		return nil, &InvalidStateError{Op: "start exam", Reason: "exam has already ended"}
	}

	existing, err := s.sessions.GetActiveSession(ctx, userID, paperID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		return nil, &InvalidStateError{Op: "start exam", Reason: "an in-progress session for this paper already exists"}
	}

	session := &model.ExamSession{
		ID:        uuid.New(),
		UserID:    userID,
		PaperID:   paperID,
		Status:    model.SessionStatusInProgress,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.cacheStartTime(ctx, session)

	s.log.Info().
		Str("session_id", session.ID.String()).
		Int("user_id", userID).
		Str("paper_id", paperID.String()).
		Msg("Exam session started")
	return session, nil
}

// SaveAnswer upserts the answer for one question while the session is
// in progress and not timed out.
func (s *ExamSessionService) SaveAnswer(ctx context.Context, sessionID, questionID uuid.UUID, answer string) error {
	if _, err := s.requireAnswerable(ctx, sessionID); err != nil {
		return err
	}

	entry, err := s.answers.FindAnswer(ctx, sessionID, questionID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("find answer: %w", err)
	}
	if entry == nil {
		entry = &model.AnswerEntry{
			ID:         uuid.New(),
			SessionID:  sessionID,
			QuestionID: questionID,
		}
	}
	entry.UserAnswer = answer
	entry.AnsweredAt = s.now()

	if err := s.answers.UpsertAnswer(ctx, entry); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// BatchSaveAnswers upserts a map of question → answer as one logical unit:
// all entries are applied in a single transaction or none are.
func (s *ExamSessionService) BatchSaveAnswers(ctx context.Context, sessionID uuid.UUID, answers map[uuid.UUID]string) error {
	if _, err := s.requireAnswerable(ctx, sessionID); err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}

	now := s.now()
	entries := make([]model.AnswerEntry, 0, len(answers))
	for questionID, answer := range answers {
		entries = append(entries, model.AnswerEntry{
			ID:         uuid.New(),
			SessionID:  sessionID,
			QuestionID: questionID,
			UserAnswer: answer,
			AnsweredAt: now,
		})
	}

	if err := s.answers.UpsertAnswers(ctx, entries); err != nil {
		return fmt.Errorf("batch save answers: %w", err)
	}
	return nil
}

// Submit finishes an in-progress session and runs the grading cascade.
// Grading failures never fail the submission; they are recorded on the
// session and logged.
func (s *ExamSessionService) Submit(ctx context.Context, sessionID uuid.UUID) (*model.ExamSession, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusInProgress {
		return nil, &InvalidStateError{Op: "submit exam", Reason: "session has already been submitted"}
	}

	ok, err := s.sessions.MarkFinished(ctx, session, model.SessionStatusSubmitted)
	if err != nil {
		return nil, fmt.Errorf("submit session: %w", err)
	}
	if !ok {
		// Lost a race against a concurrent submit or timeout sweep.
		return nil, &InvalidStateError{Op: "submit exam", Reason: "session has already been submitted"}
	}

	s.runGradingCascade(ctx, session)
	return session, nil
}

// Resume returns the in-progress session for continued answering. A timed-out
// session is finished through the timeout path instead, and the caller gets
// an InvalidState error.
func (s *ExamSessionService) Resume(ctx context.Context, sessionID uuid.UUID) (*model.ExamSession, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusInProgress {
		return nil, &InvalidStateError{Op: "resume exam", Reason: "session is no longer in progress"}
	}

	timedOut, err := s.CheckTimeout(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if timedOut {
		if ok, err := s.sessions.MarkFinished(ctx, session, model.SessionStatusTimeout); err != nil {
			return nil, fmt.Errorf("finish timed-out session: %w", err)
		} else if ok {
			s.runGradingCascade(ctx, session)
		}
		return nil, &InvalidStateError{Op: "resume exam", Reason: "session timed out and was submitted automatically"}
	}

	return session, nil
}

// CheckTimeout reports whether the session's elapsed wall-clock time exceeds
// the paper's duration.
func (s *ExamSessionService) CheckTimeout(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	paper, err := s.getPaper(ctx, session.PaperID)
	if err != nil {
		return false, err
	}

	elapsed := s.now().Sub(s.startTime(ctx, session))
	return elapsed > time.Duration(paper.DurationMinutes)*time.Minute, nil
}

// SweepTimeouts scans in-progress sessions and finishes every one whose time
// is up, running the same grading cascade as Submit. It is idempotent:
// sessions already finished by a concurrent submit or an earlier sweep are
// skipped without error. Returns the number of sessions transitioned.
func (s *ExamSessionService) SweepTimeouts(ctx context.Context) (int, error) {
	sessions, err := s.sessions.ListInProgress(ctx)
	if err != nil {
		return 0, fmt.Errorf("list in-progress sessions: %w", err)
	}

	swept := 0
	for i := range sessions {
		session := &sessions[i]

		timedOut, err := s.CheckTimeout(ctx, session.ID)
		if err != nil {
			if errors.As(err, new(*NotFoundError)) {
				continue
			}
			return swept, err
		}
		if !timedOut {
			continue
		}

		ok, err := s.sessions.MarkFinished(ctx, session, model.SessionStatusTimeout)
		if err != nil {
			return swept, fmt.Errorf("finish session %s: %w", session.ID, err)
		}
		if !ok {
			continue // Already finished elsewhere.
		}

		s.runGradingCascade(ctx, session)
		swept++

		s.log.Info().
			Str("session_id", session.ID.String()).
			Msg("Session timed out and auto-submitted")
	}
	return swept, nil
}

// GetProgress summarizes answered counts and remaining time for a session.
func (s *ExamSessionService) GetProgress(ctx context.Context, sessionID uuid.UUID) (*model.ExamProgress, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	paper, err := s.getPaper(ctx, session.PaperID)
	if err != nil {
		return nil, err
	}

	pqs, err := s.papers.ListPaperQuestions(ctx, session.PaperID)
	if err != nil {
		return nil, fmt.Errorf("list paper questions: %w", err)
	}

	entries, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	answered := 0
	for _, entry := range entries {
		if !isBlank(entry.UserAnswer) {
			answered++
		}
	}

	elapsed := s.now().Sub(session.StartedAt)
	remaining := paper.DurationMinutes - int(elapsed.Minutes())
	if remaining < 0 {
		remaining = 0
	}

	return &model.ExamProgress{
		TotalQuestions:    len(pqs),
		AnsweredQuestions: answered,
		RemainingMinutes:  remaining,
		IsTimeout:         elapsed > time.Duration(paper.DurationMinutes)*time.Minute,
	}, nil
}

// RecordAbnormalBehavior appends a timestamped entry to the session's
// abnormal-behavior log. The log is best-effort: a corrupt existing log is
// replaced with a fresh list instead of failing the call.
func (s *ExamSessionService) RecordAbnormalBehavior(ctx context.Context, sessionID uuid.UUID, description string) error {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}

	var behaviors []string
	if session.AbnormalBehaviors != "" {
		if err := json.Unmarshal([]byte(session.AbnormalBehaviors), &behaviors); err != nil {
			s.log.Warn().
				Str("session_id", sessionID.String()).
				Msg("Abnormal-behavior log unparseable, starting fresh")
			behaviors = nil
		}
	}

	behaviors = append(behaviors, fmt.Sprintf("%s - %s", s.now().Format("2006-01-02 15:04:05"), description))
	raw, err := json.Marshal(behaviors)
	if err != nil {
		return fmt.Errorf("serialize behavior log: %w", err)
	}

	session.AbnormalBehaviors = string(raw)
	session.UpdatedAt = s.now()
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("store behavior log: %w", err)
	}
	return nil
}

// GetSession returns a session by id.
func (s *ExamSessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*model.ExamSession, error) {
	return s.getSession(ctx, sessionID)
}

// ListSessionAnswers returns all answer entries of a session.
func (s *ExamSessionService) ListSessionAnswers(ctx context.Context, sessionID uuid.UUID) ([]model.AnswerEntry, error) {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}
	entries, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return entries, nil
}

// runGradingCascade auto-grades objective answers and, when the session has
// no subjective answers at all, computes the total immediately. Errors are
// recorded on the session and logged; the submission itself already
// succeeded and must stay successful.
func (s *ExamSessionService) runGradingCascade(ctx context.Context, session *model.ExamSession) {
	err := s.grading.AutoGradeObjectiveAnswers(ctx, session.ID)
	if err == nil {
		var hasSubjective bool
		hasSubjective, err = s.grading.HasSubjectiveAnswers(ctx, session.ID)
		if err == nil && !hasSubjective {
			err = s.grading.CalculateTotalScore(ctx, session.ID)
		}
	}
	if err == nil {
		return
	}

	s.log.Error().
		Err(err).
		Str("session_id", session.ID.String()).
		Msg("Post-submission grading failed; submission kept")

	// Keep the failure observable instead of swallowed.
	msg := err.Error()
	if fresh, gerr := s.sessions.GetSession(ctx, session.ID); gerr == nil {
		fresh.GradingError = &msg
		fresh.UpdatedAt = s.now()
		if uerr := s.sessions.UpdateSession(ctx, fresh); uerr != nil {
			s.log.Error().Err(uerr).Str("session_id", session.ID.String()).Msg("Failed to record grading error")
		}
	}
}

// requireAnswerable loads the session and rejects answering when it is not
// in progress or its time is up. Leaving IN_PROGRESS is the cancellation
// mechanism: there is no other way to stop answer writes.
func (s *ExamSessionService) requireAnswerable(ctx context.Context, sessionID uuid.UUID) (*model.ExamSession, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusInProgress {
		return nil, &InvalidStateError{Op: "save answer", Reason: "session is no longer in progress"}
	}

	timedOut, err := s.CheckTimeout(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if timedOut {
		return nil, &InvalidStateError{Op: "save answer", Reason: "session has timed out"}
	}
	return session, nil
}

// cacheStartTime stores the session start in Redis so timeout checks on the
// hot answering path avoid a store read. Failures are logged only.
func (s *ExamSessionService) cacheStartTime(ctx context.Context, session *model.ExamSession) {
	if s.rdb == nil {
		return
	}
	key := config.CacheKey.SessionStartKey(session.ID.String())
	if err := s.rdb.Set(ctx, key, session.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Failed to cache session start time")
	}
}

// startTime resolves the session start, preferring the Redis cache and
// falling back to (and re-priming from) the loaded session.
func (s *ExamSessionService) startTime(ctx context.Context, session *model.ExamSession) time.Time {
	if s.rdb == nil {
		return session.StartedAt
	}
	key := config.CacheKey.SessionStartKey(session.ID.String())
	val, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.cacheStartTime(ctx, session)
		}
		return session.StartedAt
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return session.StartedAt
	}
	return time.Unix(unix, 0)
}

func (s *ExamSessionService) getSession(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "session", ID: id.String()}
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *ExamSessionService) getPaper(ctx context.Context, id uuid.UUID) (*model.Paper, error) {
	paper, err := s.papers.GetPaper(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "paper", ID: id.String()}
		}
		return nil, fmt.Errorf("get paper: %w", err)
	}
	return paper, nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
