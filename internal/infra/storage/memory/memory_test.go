package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/infra/storage"
)

func newRound(id, interviewID string, t domain.RoundType) *domain.Round {
	return &domain.Round{
		ID:          id,
		InterviewID: interviewID,
		Type:        t,
		Status:      domain.RoundInProgress,
		TotalCount:  2,
		CreatedAt:   time.Now(),
	}
}

func TestRoundRepo_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewRoundRepo(NewMemoryStorage())

	if err := repo.Create(ctx, newRound("r1", "i1", domain.RoundTechnical)); err != nil {
		t.Fatalf("create: %v", err)
	}

	a, _ := repo.Get(ctx, "r1")
	b, _ := repo.Get(ctx, "r1")
	if a.Version != 1 {
		t.Fatalf("expected version 1, got %d", a.Version)
	}

	a.AnsweredCount = 1
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if a.Version != 2 {
		t.Errorf("expected caller copy bumped to 2, got %d", a.Version)
	}

	b.AnsweredCount = 2
	if err := repo.Update(ctx, b); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	got, _ := repo.Get(ctx, "r1")
	if got.AnsweredCount != 1 {
		t.Errorf("stale write leaked: answered=%d", got.AnsweredCount)
	}
}

func TestRoundRepo_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewRoundRepo(NewMemoryStorage())
	r := newRound("r1", "i1", domain.RoundTechnical)
	r.Questions = []*domain.Question{{ID: "q1", Text: "original"}}
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	r.Questions[0].Text = "mutated"
	got, _ := repo.Get(ctx, "r1")
	if got.Questions[0].Text != "original" {
		t.Errorf("store shares memory with caller: %q", got.Questions[0].Text)
	}
}

func TestRoundRepo_Errors(t *testing.T) {
	ctx := context.Background()
	repo := NewRoundRepo(NewMemoryStorage())

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrRoundNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := repo.Update(ctx, newRound("missing", "i1", domain.RoundHR)); !errors.Is(err, domain.ErrRoundNotFound) {
		t.Errorf("expected not found on update, got %v", err)
	}

	_ = repo.Create(ctx, newRound("r1", "i1", domain.RoundHR))
	if err := repo.Create(ctx, newRound("r2", "i1", domain.RoundHR)); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("expected duplicate round type, got %v", err)
	}
}

func TestRoundRepo_FindUnevaluated(t *testing.T) {
	ctx := context.Background()
	repo := NewRoundRepo(NewMemoryStorage())
	answer := "x"

	done := newRound("done", "i1", domain.RoundTechnical)
	done.Questions = []*domain.Question{{ID: "q1", UserAnswer: &answer, Evaluation: &domain.Evaluation{Score: 7}}}

	pending := newRound("pending", "i2", domain.RoundTechnical)
	pending.Questions = []*domain.Question{{ID: "q2", UserAnswer: &answer, Evaluation: &domain.Evaluation{Score: 5, IsPending: true}}}

	waiting := newRound("waiting", "i3", domain.RoundCoding)
	waiting.Problems = []*domain.Problem{{ID: "p1", Status: domain.ProblemSubmitted, Submission: &domain.Submission{Code: "x"}}}

	for _, r := range []*domain.Round{done, pending, waiting} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("create %s: %v", r.ID, err)
		}
	}

	got, err := repo.FindUnevaluated(ctx, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	ids := map[string]bool{}
	for _, r := range got {
		ids[r.ID] = true
	}
	if len(got) != 2 || !ids["pending"] || !ids["waiting"] {
		t.Errorf("unexpected rounds: %v", ids)
	}
}

func TestInterviewRepo_UpdateAndList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	repo := NewInterviewRepo(store)

	for _, id := range []string{"a", "b"} {
		if err := repo.Create(ctx, &domain.Interview{ID: id, Status: domain.InterviewStatusCreated}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := repo.Create(ctx, &domain.Interview{ID: "a"}); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("expected duplicate, got %v", err)
	}

	iv, _ := repo.Get(ctx, "a")
	now = now.Add(time.Minute)
	iv.Advance(domain.InterviewStatusTechnical)
	if err := repo.Update(ctx, iv); err != nil {
		t.Fatalf("update: %v", err)
	}

	list, err := repo.List(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "a" || list[0].Status != domain.InterviewStatusTechnical {
		t.Errorf("expected most recently updated interview first, got %+v", list)
	}
}
