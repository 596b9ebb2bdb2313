package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/infra/ai/routing"
	"github.com/vietddude/interviewer/internal/infra/queue"
	"github.com/vietddude/interviewer/internal/infra/storage/memory"
	"github.com/vietddude/interviewer/internal/pipeline/round"
)

// ===== Mocks =====

type stubGenerator struct {
	mu sync.Mutex
	n  int
}

func (g *stubGenerator) Generate(ctx context.Context, req routing.GenerateRequest) routing.GenerateResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if req.Kind == routing.GenerateCodingProblem {
		return routing.GenerateResult{Problem: &domain.Problem{
			ID:     fmt.Sprintf("p%d", g.n),
			Title:  "Echo",
			Status: domain.ProblemPending,
		}}
	}
	return routing.GenerateResult{Question: &domain.Question{
		ID:       fmt.Sprintf("q%d", g.n),
		Category: req.Category,
		Text:     "Explain",
	}}
}

type nopEnqueuer struct{}

func (nopEnqueuer) Enqueue(ctx context.Context, p domain.Payload, opts queue.EnqueueOptions) (*domain.Job, error) {
	return &domain.Job{Kind: p.Kind()}, nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *round.Service) {
	t.Helper()
	store := memory.NewMemoryStorage()
	rounds := round.NewService(memory.NewRoundRepo(store), &stubGenerator{}, nopEnqueuer{}, round.Config{
		Technical: domain.Options{TotalItems: 1},
		HR:        domain.Options{TotalItems: 1},
		Coding:    domain.Options{TotalItems: 1},
	})
	return New(memory.NewInterviewRepo(store), rounds), rounds
}

// finishQA answers and evaluates the single question of a round.
func finishQA(t *testing.T, rounds *round.Service, r *domain.Round, score float64) {
	t.Helper()
	ctx := context.Background()
	q := r.Questions[0]
	_, err := rounds.SubmitAnswer(ctx, r.ID, q.ID, "answer")
	require.NoError(t, err)
	_, err = rounds.ApplyEvaluation(ctx, r.ID, q.ID, &domain.Evaluation{Score: score})
	require.NoError(t, err)
}

func finishCoding(t *testing.T, rounds *round.Service, r *domain.Round, facet float64) {
	t.Helper()
	ctx := context.Background()
	p := r.Problems[0]
	_, err := rounds.SubmitCode(ctx, r.ID, p.ID, "print(1)", "")
	require.NoError(t, err)
	_, err = rounds.ApplyCodeResult(ctx, round.CodeResult{
		RoundID:   r.ID,
		ProblemID: p.ID,
		Cursor:    0,
		Results:   []domain.TestResult{{Passed: true}},
		Review:    &domain.CodeReview{Correctness: facet, Efficiency: facet, Readability: facet, EdgeCases: facet},
	})
	require.NoError(t, err)
}

func TestFullInterview(t *testing.T) {
	ctx := context.Background()
	o, rounds := newTestOrchestrator(t)

	iv, err := o.CreateInterview(ctx, "cand-1", domain.Options{Difficulty: "easy"})
	require.NoError(t, err)
	assert.Equal(t, domain.InterviewStatusCreated, iv.Status)

	_, err = o.StartHR(ctx, iv.ID)
	assert.ErrorIs(t, err, domain.ErrPrerequisite)

	tech, err := o.StartTechnical(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, "easy", tech.Options.Difficulty)

	_, err = o.StartHR(ctx, iv.ID)
	assert.ErrorIs(t, err, domain.ErrPrerequisite)

	finishQA(t, rounds, tech, 8)
	hr, err := o.StartHR(ctx, iv.ID)
	require.NoError(t, err)

	_, err = o.StartCoding(ctx, iv.ID)
	assert.ErrorIs(t, err, domain.ErrPrerequisite)
	_, err = o.Report(ctx, iv.ID)
	assert.ErrorIs(t, err, domain.ErrPrerequisite)

	finishQA(t, rounds, hr, 6)
	coding, err := o.StartCoding(ctx, iv.ID)
	require.NoError(t, err)
	finishCoding(t, rounds, coding, 8)

	iv, err = o.Report(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InterviewStatusCompleted, iv.Status)
	require.NotNil(t, iv.Report)
	assert.Equal(t, 80.0, iv.Report.TechnicalScore)
	assert.Equal(t, 60.0, iv.Report.HRScore)
	assert.Equal(t, 90.0, iv.Report.CodingScore)
	// 80*0.40 + 60*0.25 + 90*0.35
	assert.Equal(t, 78.5, iv.Report.OverallScore)
	assert.Equal(t, domain.DecisionHire, iv.Report.Decision)
	assert.NotNil(t, iv.CompletedAt)
}

func TestStart_Resumes(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t)
	iv, err := o.CreateInterview(ctx, "cand-1", domain.Options{})
	require.NoError(t, err)

	first, err := o.StartTechnical(ctx, iv.ID)
	require.NoError(t, err)
	again, err := o.StartTechnical(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	iv, err = o.Get(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InterviewStatusTechnical, iv.Status)
	assert.Equal(t, first.ID, iv.TechnicalRoundID)
}

func TestRefresh_PicksUpLateEvaluation(t *testing.T) {
	ctx := context.Background()
	o, rounds := newTestOrchestrator(t)
	iv, err := o.CreateInterview(ctx, "cand-1", domain.Options{})
	require.NoError(t, err)

	tech, err := o.StartTechnical(ctx, iv.ID)
	require.NoError(t, err)
	q := tech.Questions[0]
	_, err = rounds.SubmitAnswer(ctx, tech.ID, q.ID, "answer")
	require.NoError(t, err)

	hr, err := o.StartHR(ctx, iv.ID)
	require.NoError(t, err)
	finishQA(t, rounds, hr, 5)
	coding, err := o.StartCoding(ctx, iv.ID)
	require.NoError(t, err)
	finishCoding(t, rounds, coding, 5)

	iv, err = o.Report(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, iv.Report.TechnicalScore)

	_, err = rounds.ApplyEvaluation(ctx, tech.ID, q.ID, &domain.Evaluation{Score: 10})
	require.NoError(t, err)
	iv, err = o.Refresh(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, iv.Report.TechnicalScore)
}

func TestRoundOptions(t *testing.T) {
	opts, err := domain.ParseOptions(map[string]any{
		"difficulty": "hard",
		"role":       "backend",
		"coding":     map[string]any{"total_items": 2, "language": "go"},
	})
	require.NoError(t, err)

	coding := roundOptions(opts, domain.RoundCoding)
	assert.Equal(t, 2, coding.TotalItems)
	assert.Equal(t, "go", coding.Language)
	assert.Equal(t, "hard", coding.Difficulty)

	tech := roundOptions(opts, domain.RoundTechnical)
	assert.Equal(t, 0, tech.TotalItems)
	assert.Equal(t, "backend", tech.Role)
}

func TestRoundOptions_AdaptiveFalseSurvives(t *testing.T) {
	opts, err := domain.ParseOptions(map[string]any{"adaptive": false})
	require.NoError(t, err)

	coding := roundOptions(opts, domain.RoundCoding)
	require.NotNil(t, coding.Adaptive)
	assert.False(t, coding.AdaptiveEnabled())

	nested, err := domain.ParseOptions(map[string]any{
		"adaptive": true,
		"coding":   map[string]any{"adaptive": false},
	})
	require.NoError(t, err)
	assert.False(t, roundOptions(nested, domain.RoundCoding).AdaptiveEnabled())
}
