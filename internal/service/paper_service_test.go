package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/openexam/openexam-backend/internal/model"
)

func newPaperService(store *memStore, seed int64) *PaperService {
	return NewPaperService(store, store, store, rand.New(rand.NewSource(seed)), testLogger)
}

func draft(name string) model.PaperDraft {
	return draftWithPass(name, 6)
}

// draftWithPass is for papers whose composed total is below draft's
// default pass score.
func draftWithPass(name string, pass float64) model.PaperDraft {
	return model.PaperDraft{Name: name, DurationMinutes: 60, PassScore: pass}
}

func TestComposePaperFixed(t *testing.T) {
	store := newMemStore()
	svc := newPaperService(store, 1)

	q1 := store.addQuestion(model.Question{QuestionType: model.QuestionTypeSingleChoice})
	q2 := store.addQuestion(model.Question{QuestionType: model.QuestionTypeEssay})

	paper, pqs, err := svc.ComposePaper(context.Background(), 1, ComposeInput{
		Mode:  model.PaperModeFixed,
		Draft: draft("midterm"),
		Fixed: []model.FixedQuestion{
			{QuestionID: q1.ID, Score: 4},
			{QuestionID: q2.ID, Score: 10},
		},
	})
	if err != nil {
		t.Fatalf("ComposePaper: %v", err)
	}

	if paper.TotalScore != 14 {
		t.Errorf("TotalScore = %g, want 14", paper.TotalScore)
	}
	if paper.Status != model.PaperStatusDraft {
		t.Errorf("Status = %s, want DRAFT", paper.Status)
	}
	if len(pqs) != 2 {
		t.Fatalf("got %d associations, want 2", len(pqs))
	}
	// Order follows the input list.
	if pqs[0].QuestionID != q1.ID || pqs[1].QuestionID != q2.ID {
		t.Errorf("association order does not follow input")
	}
	for i, pq := range pqs {
		if pq.OrderIndex != i+1 {
			t.Errorf("OrderIndex[%d] = %d, want %d", i, pq.OrderIndex, i+1)
		}
		if pq.PaperID != paper.ID {
			t.Errorf("association %d not bound to paper", i)
		}
	}
}

func TestComposePaperFixedRejectsDuplicatesAndUnknown(t *testing.T) {
	store := newMemStore()
	svc := newPaperService(store, 1)
	q := store.addQuestion(model.Question{QuestionType: model.QuestionTypeSingleChoice})

	_, _, err := svc.ComposePaper(context.Background(), 1, ComposeInput{
		Mode:  model.PaperModeFixed,
		Draft: draft("dups"),
		Fixed: []model.FixedQuestion{{QuestionID: q.ID, Score: 5}, {QuestionID: q.ID, Score: 5}},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("duplicate question: got %v, want ValidationError", err)
	}

	_, _, err = svc.ComposePaper(context.Background(), 1, ComposeInput{
		Mode:  model.PaperModeFixed,
		Draft: draft("ghost"),
		Fixed: []model.FixedQuestion{{QuestionID: uuid.New(), Score: 5}},
	})
	var nerr *NotFoundError
	if !errors.As(err, &nerr) {
		t.Errorf("unknown question: got %v, want NotFoundError", err)
	}
	if len(store.papers) != 0 {
		t.Errorf("failed compose stored %d papers, want 0", len(store.papers))
	}
}

func TestComposePaperRandom(t *testing.T) {
	store := newMemStore()
	svc := newPaperService(store, 42)
	bank := uuid.New()

	for i := 0; i < 10; i++ {
		store.addQuestion(model.Question{BankID: bank, QuestionType: model.QuestionTypeSingleChoice})
	}
	for i := 0; i < 4; i++ {
		store.addQuestion(model.Question{BankID: bank, QuestionType: model.QuestionTypeFillBlank})
	}

	paper, pqs, err := svc.ComposePaper(context.Background(), 1, ComposeInput{
		Mode:  model.PaperModeRandom,
		Draft: draft("random"),
		Random: &model.RandomConfig{
			BankID: bank,
			Rules: []model.RandomRule{
				{QuestionType: model.QuestionTypeSingleChoice, Count: 5, ScorePerQuestion: 2},
				{QuestionType: model.QuestionTypeFillBlank, Count: 3, ScorePerQuestion: 4},
			},
		},
	})
	if err != nil {
		t.Fatalf("ComposePaper: %v", err)
	}

	if len(pqs) != 8 {
		t.Fatalf("got %d questions, want 8", len(pqs))
	}
	if paper.TotalScore != 5*2+3*4 {
		t.Errorf("TotalScore = %g, want 22", paper.TotalScore)
	}
	seen := make(map[uuid.UUID]bool)
	for i, pq := range pqs {
		if pq.OrderIndex != i+1 {
			t.Errorf("OrderIndex[%d] = %d, want contiguous from 1", i, pq.OrderIndex)
		}
		if seen[pq.QuestionID] {
			t.Errorf("question %s selected twice", pq.QuestionID)
		}
		seen[pq.QuestionID] = true
	}
}

func TestComposePaperRandomInsufficientPool(t *testing.T) {
	store := newMemStore()
	svc := newPaperService(store, 1)
	bank := uuid.New()
	store.addQuestion(model.Question{BankID: bank, QuestionType: model.QuestionTypeTrueFalse})

	diff := 2
	_, _, err := svc.ComposePaper(context.Background(), 1, ComposeInput{
		Mode:  model.PaperModeRandom,
		Draft: draft("starved"),
		Random: &model.RandomConfig{
			BankID: bank,
			Rules:  []model.RandomRule{{QuestionType: model.QuestionTypeTrueFalse, Difficulty: &diff, Count: 3, ScorePerQuestion: 1}},
		},
	})

	var perr *InsufficientPoolError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want InsufficientPoolError", err)
	}
	if perr.Required != 3 || perr.Available != 0 {
		t.Errorf("Required/Available = %d/%d, want 3/0", perr.Required, perr.Available)
	}
	if len(store.papers) != 0 {
		t.Errorf("failed compose stored a paper")
	}
}

// Selection over many seeds should hit every pool member; a biased shuffle
// that never picks some element would fail this.
func TestComposePaperRandomSelectionCoverage(t *testing.T) {
	bank := uuid.New()
	store := newMemStore()
	ids := make([]uuid.UUID, 0, 6)
	for i := 0; i < 6; i++ {
		q := store.addQuestion(model.Question{BankID: bank, QuestionType: model.QuestionTypeSingleChoice})
		ids = append(ids, q.ID)
	}

	picked := make(map[uuid.UUID]int)
	for seed := int64(0); seed < 200; seed++ {
		svc := newPaperService(store, seed)
		_, pqs, err := svc.ComposePaper(context.Background(), 1, ComposeInput{
			Mode:  model.PaperModeRandom,
			Draft: draftWithPass("coverage", 1),
			Random: &model.RandomConfig{
				BankID: bank,
				Rules:  []model.RandomRule{{QuestionType: model.QuestionTypeSingleChoice, Count: 2, ScorePerQuestion: 1}},
			},
		})
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		for _, pq := range pqs {
			picked[pq.QuestionID]++
		}
	}

	for _, id := range ids {
		if picked[id] == 0 {
			t.Errorf("question %s never selected across 200 seeds", id)
		}
	}
}

func TestComposePaperRandomDeterministicWithSeed(t *testing.T) {
	bank := uuid.New()
	store := newMemStore()
	for i := 0; i < 8; i++ {
		store.addQuestion(model.Question{BankID: bank, QuestionType: model.QuestionTypeSingleChoice})
	}

	in := ComposeInput{
		Mode:  model.PaperModeRandom,
		Draft: draftWithPass("seeded", 1),
		Random: &model.RandomConfig{
			BankID: bank,
			Rules:  []model.RandomRule{{QuestionType: model.QuestionTypeSingleChoice, Count: 4, ScorePerQuestion: 1}},
		},
	}

	_, first, err := newPaperService(store, 7).ComposePaper(context.Background(), 1, in)
	if err != nil {
		t.Fatal(err)
	}
	_, second, err := newPaperService(store, 7).ComposePaper(context.Background(), 1, in)
	if err != nil {
		t.Fatal(err)
	}

	for i := range first {
		if first[i].QuestionID != second[i].QuestionID {
			t.Fatalf("same seed produced different selections at index %d", i)
		}
	}
}

// Handlers invoke one shared PaperService from parallel goroutines, so the
// shuffle source must hold up under concurrent composition. The race detector
// flags an unsynchronized rand.Rand here.
func TestComposePaperRandomConcurrent(t *testing.T) {
	bank := uuid.New()
	store := newMemStore()
	for i := 0; i < 12; i++ {
		store.addQuestion(model.Question{BankID: bank, QuestionType: model.QuestionTypeSingleChoice})
	}
	svc := newPaperService(store, 99)

	in := ComposeInput{
		Mode:  model.PaperModeRandom,
		Draft: draftWithPass("parallel", 1),
		Random: &model.RandomConfig{
			BankID: bank,
			Rules:  []model.RandomRule{{QuestionType: model.QuestionTypeSingleChoice, Count: 4, ScorePerQuestion: 1}},
		},
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4*50)
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if _, _, err := svc.ComposePaper(context.Background(), 1, in); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent ComposePaper: %v", err)
	}
}

func TestComposePaperMixed(t *testing.T) {
	store := newMemStore()
	svc := newPaperService(store, 3)
	bank := uuid.New()

	fixedQ := store.addQuestion(model.Question{QuestionType: model.QuestionTypeEssay, DefaultScore: 20})
	defaultQ := store.addQuestion(model.Question{QuestionType: model.QuestionTypeShortAnswer, DefaultScore: 8})
	for i := 0; i < 5; i++ {
		store.addQuestion(model.Question{BankID: bank, QuestionType: model.QuestionTypeSingleChoice})
	}

	paper, pqs, err := svc.ComposePaper(context.Background(), 1, ComposeInput{
		Mode:  model.PaperModeMixed,
		Draft: draft("mixed"),
		Mixed: &model.MixedConfig{
			FixedQuestionIDs:    []uuid.UUID{fixedQ.ID, defaultQ.ID},
			FixedQuestionScores: map[uuid.UUID]float64{fixedQ.ID: 25},
			Random: &model.RandomConfig{
				BankID: bank,
				Rules:  []model.RandomRule{{QuestionType: model.QuestionTypeSingleChoice, Count: 3, ScorePerQuestion: 2}},
			},
		},
	})
	if err != nil {
		t.Fatalf("ComposePaper: %v", err)
	}

	if len(pqs) != 5 {
		t.Fatalf("got %d questions, want 5", len(pqs))
	}
	// Fixed part comes first, score override and default both applied.
	if pqs[0].QuestionID != fixedQ.ID || pqs[0].Score != 25 {
		t.Errorf("fixed[0] = (%s, %g), want (%s, 25)", pqs[0].QuestionID, pqs[0].Score, fixedQ.ID)
	}
	if pqs[1].QuestionID != defaultQ.ID || pqs[1].Score != 8 {
		t.Errorf("fixed[1] score = %g, want default 8", pqs[1].Score)
	}
	if paper.TotalScore != 25+8+3*2 {
		t.Errorf("TotalScore = %g, want 39", paper.TotalScore)
	}
	for i, pq := range pqs {
		if pq.OrderIndex != i+1 {
			t.Errorf("OrderIndex[%d] = %d, want contiguous across fixed and random", i, pq.OrderIndex)
		}
	}
}

func TestComposePaperValidation(t *testing.T) {
	store := newMemStore()
	svc := newPaperService(store, 1)
	q := store.addQuestion(model.Question{QuestionType: model.QuestionTypeSingleChoice})

	tests := []struct {
		name  string
		draft model.PaperDraft
	}{
		{"empty name", model.PaperDraft{Name: "", DurationMinutes: 30}},
		{"zero duration", model.PaperDraft{Name: "x", DurationMinutes: 0}},
		{"negative pass score", model.PaperDraft{Name: "x", DurationMinutes: 30, PassScore: -1}},
		{"pass above total", model.PaperDraft{Name: "x", DurationMinutes: 30, PassScore: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.ComposePaper(context.Background(), 1, ComposeInput{
				Mode:  model.PaperModeFixed,
				Draft: tt.draft,
				Fixed: []model.FixedQuestion{{QuestionID: q.ID, Score: 5}},
			})
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestPaperLifecycle(t *testing.T) {
	store := newMemStore()
	svc := newPaperService(store, 1)
	q := store.addQuestion(model.Question{QuestionType: model.QuestionTypeSingleChoice})

	paper, _, err := svc.ComposePaper(context.Background(), 1, ComposeInput{
		Mode:  model.PaperModeFixed,
		Draft: draft("lifecycle"),
		Fixed: []model.FixedQuestion{{QuestionID: q.ID, Score: 10}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.ActivatePaper(context.Background(), paper.ID); err != nil {
		t.Fatalf("ActivatePaper: %v", err)
	}
	got, _ := svc.GetPaper(context.Background(), paper.ID)
	if got.Status != model.PaperStatusActive {
		t.Errorf("Status = %s, want ACTIVE", got.Status)
	}

	if err := svc.ArchivePaper(context.Background(), paper.ID); err != nil {
		t.Fatalf("ArchivePaper: %v", err)
	}
	got, _ = svc.GetPaper(context.Background(), paper.ID)
	if got.Status != model.PaperStatusArchived {
		t.Errorf("Status = %s, want ARCHIVED", got.Status)
	}
}

func TestDuplicatePaper(t *testing.T) {
	store := newMemStore()
	svc := newPaperService(store, 1)
	q := store.addQuestion(model.Question{QuestionType: model.QuestionTypeSingleChoice})

	original, _, err := svc.ComposePaper(context.Background(), 1, ComposeInput{
		Mode:  model.PaperModeFixed,
		Draft: draft("original"),
		Fixed: []model.FixedQuestion{{QuestionID: q.ID, Score: 10}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.ActivatePaper(context.Background(), original.ID); err != nil {
		t.Fatal(err)
	}

	dup, err := svc.DuplicatePaper(context.Background(), original.ID)
	if err != nil {
		t.Fatalf("DuplicatePaper: %v", err)
	}
	if dup.ID == original.ID {
		t.Error("duplicate shares id with original")
	}
	if dup.Name != "original (copy)" {
		t.Errorf("Name = %q", dup.Name)
	}
	if dup.Status != model.PaperStatusDraft {
		t.Errorf("Status = %s, want DRAFT", dup.Status)
	}
	pqs, _ := svc.GetPaperQuestions(context.Background(), dup.ID)
	if len(pqs) != 1 || pqs[0].QuestionID != q.ID {
		t.Errorf("duplicate did not carry question associations")
	}
}

func TestDeletePaperWithSessions(t *testing.T) {
	store := newMemStore()
	svc := newPaperService(store, 1)
	paper := store.addPaper(model.Paper{Name: "attempted"}, nil)
	store.addSession(model.ExamSession{PaperID: paper.ID, UserID: 1})

	err := svc.DeletePaper(context.Background(), paper.ID)
	var serr *InvalidStateError
	if !errors.As(err, &serr) {
		t.Fatalf("got %v, want InvalidStateError", err)
	}

	fresh := store.addPaper(model.Paper{Name: "untouched"}, nil)
	if err := svc.DeletePaper(context.Background(), fresh.ID); err != nil {
		t.Fatalf("delete unattempted paper: %v", err)
	}
}

func TestSearchPapers(t *testing.T) {
	store := newMemStore()
	svc := newPaperService(store, 1)
	store.addPaper(model.Paper{Name: "algebra midterm", Status: model.PaperStatusActive}, nil)
	store.addPaper(model.Paper{Name: "algebra final", Status: model.PaperStatusDraft}, nil)
	store.addPaper(model.Paper{Name: "history quiz", Status: model.PaperStatusActive}, nil)

	active := model.PaperStatusActive
	papers, total, err := svc.SearchPapers(context.Background(), "algebra", &active, 0, -5)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(papers) != 1 {
		t.Fatalf("total/len = %d/%d, want 1/1", total, len(papers))
	}
	if papers[0].Name != "algebra midterm" {
		t.Errorf("Name = %q", papers[0].Name)
	}
}
