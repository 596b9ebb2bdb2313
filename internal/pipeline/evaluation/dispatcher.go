// Package evaluation runs background jobs: answer and HR evaluation, code
// execution with review, and item prefetch.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/infra/ai/routing"
	"github.com/vietddude/interviewer/internal/infra/queue"
	"github.com/vietddude/interviewer/internal/pipeline/round"
)

// errPending is returned when every provider failed for a reason other
// than quota. The pending marker is already stored; the job retries.
var errPending = errors.New("evaluation pending")

// Evaluator scores answers and code.
type Evaluator interface {
	Evaluate(ctx context.Context, req routing.EvaluateRequest) routing.EvaluateResult
}

// Executor runs code against test cases.
type Executor interface {
	ExecuteTestCases(ctx context.Context, code, language string, cases []domain.TestCase) []domain.TestResult
}

// Refresher recomputes an interview report.
type Refresher interface {
	Refresh(ctx context.Context, interviewID string) (*domain.Interview, error)
}

// Dispatcher routes jobs to the handler of their kind. It serves every
// queue.
type Dispatcher struct {
	rounds    *round.Service
	evaluator Evaluator
	executor  Executor
	refresher Refresher
	log       *slog.Logger
}

func NewDispatcher(rounds *round.Service, evaluator Evaluator, executor Executor, refresher Refresher) *Dispatcher {
	return &Dispatcher{
		rounds:    rounds,
		evaluator: evaluator,
		executor:  executor,
		refresher: refresher,
		log:       slog.Default().With("component", "evaluation"),
	}
}

// Handle implements queue.Handler.
func (d *Dispatcher) Handle(ctx context.Context, job *domain.Job) error {
	payload, err := job.DecodePayload()
	if err != nil {
		return queue.Permanent(err)
	}

	switch p := payload.(type) {
	case *domain.AnswerEvaluationPayload:
		return d.evaluateAnswer(ctx, job, p.RoundID, p.QuestionID, routing.EvaluateTechnicalAnswer)
	case *domain.HREvaluationPayload:
		return d.evaluateAnswer(ctx, job, p.RoundID, p.QuestionID, routing.EvaluateHRAnswer)
	case *domain.CodeExecutionPayload:
		return d.executeCode(ctx, job, p)
	case *domain.ItemGenerationPayload:
		return d.rounds.Prefetch(ctx, *p)
	default:
		return queue.Permanent(fmt.Errorf("%w: %T", domain.ErrUnknownJobKind, payload))
	}
}

// classify maps lookup failures to terminal errors; the job can never
// succeed against a missing round or item.
func classify(err error) error {
	if errors.Is(err, domain.ErrRoundNotFound) ||
		errors.Is(err, domain.ErrItemNotFound) ||
		errors.Is(err, domain.ErrNotAnswered) {
		return queue.Permanent(err)
	}
	return err
}

// settle decides the job outcome once a result has been stored.
func settle(res routing.EvaluateResult) error {
	switch {
	case !res.Pending:
		return nil
	case res.QuotaExhausted:
		return queue.ErrQuotaExhausted
	default:
		return errPending
	}
}

func (d *Dispatcher) refresh(ctx context.Context, r *domain.Round) {
	if r.Status != domain.RoundCompleted || d.refresher == nil {
		return
	}
	if _, err := d.refresher.Refresh(ctx, r.InterviewID); err != nil {
		d.log.Warn("Failed to refresh interview report", "interview", r.InterviewID, "error", err)
	}
}

func (d *Dispatcher) evaluateAnswer(ctx context.Context, job *domain.Job, roundID, questionID string, kind routing.EvaluateKind) error {
	r, err := d.rounds.Get(ctx, roundID)
	if err != nil {
		return classify(err)
	}
	q := r.Question(questionID)
	if q == nil {
		return queue.Permanent(fmt.Errorf("question %s: %w", questionID, domain.ErrItemNotFound))
	}
	if !q.Answered() {
		return queue.Permanent(fmt.Errorf("question %s: %w", questionID, domain.ErrNotAnswered))
	}

	res := d.evaluator.Evaluate(ctx, routing.EvaluateRequest{
		Kind:           kind,
		Category:       q.Category,
		Question:       q.Text,
		ExpectedPoints: q.ExpectedPoints,
		Answer:         *q.UserAnswer,
	})
	eval := *res.Evaluation
	eval.RequestedAt = job.CreatedAt

	updated, err := d.rounds.ApplyEvaluation(ctx, roundID, questionID, &eval)
	if err != nil {
		return classify(err)
	}
	d.log.Debug("Answer evaluated",
		"round", roundID, "question", questionID, "score", eval.Score, "source", res.Source)
	d.refresh(ctx, updated)
	return settle(res)
}

func (d *Dispatcher) executeCode(ctx context.Context, job *domain.Job, p *domain.CodeExecutionPayload) error {
	r, err := d.rounds.Get(ctx, p.RoundID)
	if err != nil {
		return classify(err)
	}
	problem, _ := r.Problem(p.ProblemID)
	if problem == nil {
		return queue.Permanent(fmt.Errorf("problem %s: %w", p.ProblemID, domain.ErrItemNotFound))
	}

	// A rerun for unchanged code only needs a new review.
	results := problem.TestResults
	if len(results) == 0 || problem.Submission == nil || problem.Submission.Code != p.Code {
		results = d.executor.ExecuteTestCases(ctx, p.Code, p.Language, problem.TestCases)
	}
	passed := 0
	for _, tr := range results {
		if tr.Passed {
			passed++
		}
	}

	res := d.evaluator.Evaluate(ctx, routing.EvaluateRequest{
		Kind:               routing.EvaluateCodeReview,
		ProblemTitle:       problem.Title,
		ProblemDescription: problem.Description,
		Code:               p.Code,
		Language:           p.Language,
		PassedTests:        passed,
		TotalTests:         len(results),
	})
	review := *res.Review
	review.RequestedAt = job.CreatedAt

	updated, err := d.rounds.ApplyCodeResult(ctx, round.CodeResult{
		RoundID:   p.RoundID,
		ProblemID: p.ProblemID,
		Cursor:    p.Cursor,
		Results:   results,
		Review:    &review,
	})
	if err != nil {
		return classify(err)
	}
	d.log.Debug("Code evaluated",
		"round", p.RoundID, "problem", p.ProblemID, "passed", passed, "total", len(results), "source", res.Source)
	d.refresh(ctx, updated)
	return settle(res)
}
