package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/openexam/openexam-backend/internal/model"
	"github.com/rs/zerolog"
)

// In-memory store implementations backing the service tests. They honor the
// same contracts as the pgx repositories: pgx.ErrNoRows on missing rows,
// value copies on reads so callers never alias store state.

type memStore struct {
	mu             sync.Mutex
	papers         map[uuid.UUID]model.Paper
	paperQuestions map[uuid.UUID][]model.PaperQuestion
	questions      map[uuid.UUID]model.Question
	sessions       map[uuid.UUID]model.ExamSession
	answers        map[uuid.UUID]model.AnswerEntry
	users          map[string]model.User
	nextUserID     int

	// failures lets a test make a single store method return an error.
	failures map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		papers:         make(map[uuid.UUID]model.Paper),
		paperQuestions: make(map[uuid.UUID][]model.PaperQuestion),
		questions:      make(map[uuid.UUID]model.Question),
		sessions:       make(map[uuid.UUID]model.ExamSession),
		answers:        make(map[uuid.UUID]model.AnswerEntry),
		users:          make(map[string]model.User),
		nextUserID:     1,
		failures:       make(map[string]error),
	}
}

func (m *memStore) failOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = err
}

func (m *memStore) failure(method string) error {
	if err, ok := m.failures[method]; ok {
		return err
	}
	return nil
}

// --- PaperStore ---

func (m *memStore) GetPaper(_ context.Context, id uuid.UUID) (*model.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("GetPaper"); err != nil {
		return nil, err
	}
	p, ok := m.papers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

func (m *memStore) CreatePaper(_ context.Context, paper *model.Paper, questions []model.PaperQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("CreatePaper"); err != nil {
		return err
	}
	m.papers[paper.ID] = *paper
	m.paperQuestions[paper.ID] = append([]model.PaperQuestion(nil), questions...)
	return nil
}

func (m *memStore) UpdatePaper(_ context.Context, paper *model.Paper) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.papers[paper.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.papers[paper.ID] = *paper
	return nil
}

func (m *memStore) DeletePaper(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.papers, id)
	delete(m.paperQuestions, id)
	return nil
}

func (m *memStore) ListPaperQuestions(_ context.Context, paperID uuid.UUID) ([]model.PaperQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ListPaperQuestions"); err != nil {
		return nil, err
	}
	pqs := append([]model.PaperQuestion(nil), m.paperQuestions[paperID]...)
	sort.Slice(pqs, func(i, j int) bool { return pqs[i].OrderIndex < pqs[j].OrderIndex })
	return pqs, nil
}

func (m *memStore) SearchPapers(_ context.Context, keyword string, status *model.PaperStatus, page, perPage int) ([]model.Paper, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Paper
	for _, p := range m.papers {
		if keyword != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(keyword)) {
			continue
		}
		if status != nil && p.Status != *status {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	total := int64(len(all))
	start := (page - 1) * perPage
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// --- QuestionStore ---

func (m *memStore) GetQuestion(_ context.Context, id uuid.UUID) (*model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("GetQuestion"); err != nil {
		return nil, err
	}
	q, ok := m.questions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &q, nil
}

func (m *memStore) ListPool(_ context.Context, bankID uuid.UUID, questionType model.QuestionType, difficulty *int) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pool []model.Question
	for _, q := range m.questions {
		if q.BankID != bankID || q.QuestionType != questionType {
			continue
		}
		if difficulty != nil && q.Difficulty != *difficulty {
			continue
		}
		pool = append(pool, q)
	}
	// Deterministic base order so shuffle tests are reproducible.
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID.String() < pool[j].ID.String() })
	return pool, nil
}

// --- SessionStore ---

func (m *memStore) GetSession(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("GetSession"); err != nil {
		return nil, err
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &s, nil
}

func (m *memStore) GetActiveSession(_ context.Context, userID int, paperID uuid.UUID) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID && s.PaperID == paperID && s.Status == model.SessionStatusInProgress {
			cp := s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) CreateSession(_ context.Context, session *model.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = *session
	return nil
}

func (m *memStore) UpdateSession(_ context.Context, session *model.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UpdateSession"); err != nil {
		return err
	}
	if _, ok := m.sessions[session.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.sessions[session.ID] = *session
	return nil
}

func (m *memStore) MarkFinished(_ context.Context, session *model.ExamSession, status model.SessionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("MarkFinished"); err != nil {
		return false, err
	}
	stored, ok := m.sessions[session.ID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if stored.Status != model.SessionStatusInProgress {
		return false, nil
	}
	now := time.Now()
	stored.Status = status
	stored.SubmittedAt = &now
	stored.EndedAt = &now
	stored.UpdatedAt = now
	m.sessions[session.ID] = stored
	*session = stored
	return true, nil
}

func (m *memStore) ListInProgress(_ context.Context) ([]model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamSession
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusInProgress {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *memStore) CountByPaper(_ context.Context, paperID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if s.PaperID == paperID {
			n++
		}
	}
	return n, nil
}

// --- AnswerStore ---

func (m *memStore) GetAnswer(_ context.Context, id uuid.UUID) (*model.AnswerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.answers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (m *memStore) FindAnswer(_ context.Context, sessionID, questionID uuid.UUID) (*model.AnswerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.answers {
		if a.SessionID == sessionID && a.QuestionID == questionID {
			cp := a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.AnswerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ListBySession"); err != nil {
		return nil, err
	}
	var out []model.AnswerEntry
	for _, a := range m.answers {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *memStore) UpsertAnswer(_ context.Context, entry *model.AnswerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UpsertAnswer"); err != nil {
		return err
	}
	m.upsertLocked(*entry)
	return nil
}

func (m *memStore) UpsertAnswers(_ context.Context, entries []model.AnswerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UpsertAnswers"); err != nil {
		return err
	}
	for _, e := range entries {
		m.upsertLocked(e)
	}
	return nil
}

// upsertLocked matches on (session, question) like the ON CONFLICT clause.
func (m *memStore) upsertLocked(entry model.AnswerEntry) {
	for id, a := range m.answers {
		if a.SessionID == entry.SessionID && a.QuestionID == entry.QuestionID {
			a.UserAnswer = entry.UserAnswer
			a.AnsweredAt = entry.AnsweredAt
			m.answers[id] = a
			return
		}
	}
	m.answers[entry.ID] = entry
}

func (m *memStore) UpdateGrading(_ context.Context, entry *model.AnswerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UpdateGrading"); err != nil {
		return err
	}
	a, ok := m.answers[entry.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	a.Score = entry.Score
	a.IsCorrect = entry.IsCorrect
	a.IsGraded = entry.IsGraded
	a.GraderID = entry.GraderID
	a.GradeComment = entry.GradeComment
	m.answers[entry.ID] = a
	return nil
}

// --- UserStore ---

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (m *memStore) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = m.nextUserID
	m.nextUserID++
	m.users[user.Username] = *user
	return nil
}

// --- fixture helpers ---

var testLogger = zerolog.Nop()

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func (m *memStore) addQuestion(q model.Question) model.Question {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.DefaultScore == 0 {
		q.DefaultScore = 5
	}
	if q.Difficulty == 0 {
		q.Difficulty = 3
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[q.ID] = q
	return q
}

func (m *memStore) addPaper(p model.Paper, pqs []model.PaperQuestion) model.Paper {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = model.PaperStatusActive
	}
	if p.DurationMinutes == 0 {
		p.DurationMinutes = 60
	}
	for i := range pqs {
		pqs[i].PaperID = p.ID
		if pqs[i].OrderIndex == 0 {
			pqs[i].OrderIndex = i + 1
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.papers[p.ID] = p
	m.paperQuestions[p.ID] = pqs
	return p
}

func (m *memStore) addSession(s model.ExamSession) model.ExamSession {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = model.SessionStatusInProgress
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s
}

func (m *memStore) addAnswer(a model.AnswerEntry) model.AnswerEntry {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers[a.ID] = a
	return a
}

func (m *memStore) answer(id uuid.UUID) model.AnswerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answers[id]
}

func (m *memStore) session(id uuid.UUID) model.ExamSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}
