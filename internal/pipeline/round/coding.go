package round

import (
	"context"
	"fmt"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/core/scoring"
	"github.com/vietddude/interviewer/internal/infra/ai/routing"
	"github.com/vietddude/interviewer/internal/infra/queue"
)

const (
	// ExpansionThreshold is the review quality that earns the extra problem.
	ExpansionThreshold  = 8.0
	expansionDifficulty = "hard"
)

// CodeResult is the outcome of executing and reviewing one submission.
type CodeResult struct {
	RoundID   string
	ProblemID string
	// Cursor is the problem index the submission was made at.
	Cursor  int
	Results []domain.TestResult
	Review  *domain.CodeReview
}

// SubmitCode records the submission for the current problem, moves the
// round to evaluating and enqueues execution. Submissions for any other
// problem are rejected without touching the round.
func (s *Service) SubmitCode(ctx context.Context, roundID, problemID, code, language string) (*domain.Round, error) {
	now := s.now()
	cursor := -1
	r, err := s.mutate(ctx, roundID, func(r *domain.Round) error {
		if r.Type != domain.RoundCoding {
			return fmt.Errorf("round %s is not a coding round: %w", r.ID, domain.ErrRoundClosed)
		}
		switch r.Status {
		case domain.RoundEvaluating:
			return fmt.Errorf("round %s: %w", r.ID, domain.ErrEvaluating)
		case domain.RoundInProgress:
		default:
			return fmt.Errorf("round %s is %s: %w", r.ID, r.Status, domain.ErrRoundClosed)
		}
		p, _ := r.Problem(problemID)
		if p == nil {
			return fmt.Errorf("problem %s: %w", problemID, domain.ErrItemNotFound)
		}
		if cur := r.CurrentProblem(); cur == nil || cur.ID != problemID {
			return fmt.Errorf("problem %s: %w", problemID, domain.ErrOutOfSequence)
		}

		lang := language
		if lang == "" {
			lang = r.Options.Language
		}
		p.Submission = &domain.Submission{Code: code, Language: lang, SubmittedAt: now}
		p.Status = domain.ProblemSubmitted
		p.Version++
		cursor = r.CurrentProblemIndex
		return r.Transition(domain.RoundEvaluating)
	})
	if err != nil {
		return nil, err
	}

	p, _ := r.Problem(problemID)
	payload := domain.CodeExecutionPayload{
		RoundID:   r.ID,
		ProblemID: problemID,
		Code:      code,
		Language:  p.Submission.Language,
		Cursor:    cursor,
	}
	if _, err := s.jobs.Enqueue(ctx, payload, queue.EnqueueOptions{Priority: p.Sequence}); err != nil {
		s.log.Error("Failed to enqueue code execution, reopening problem",
			"round", r.ID, "problem", problemID, "error", err)
		if _, rerr := s.reopen(ctx, roundID, problemID, cursor); rerr != nil {
			s.log.Error("Failed to reopen problem", "round", r.ID, "problem", problemID, "error", rerr)
		}
		return nil, fmt.Errorf("enqueue code execution: %w", err)
	}
	return r, nil
}

// reopen undoes a submission whose execution job could not be enqueued.
func (s *Service) reopen(ctx context.Context, roundID, problemID string, cursor int) (*domain.Round, error) {
	return s.mutate(ctx, roundID, func(r *domain.Round) error {
		p, _ := r.Problem(problemID)
		if p == nil || r.Status != domain.RoundEvaluating || r.CurrentProblemIndex != cursor {
			return errNoChange
		}
		p.Submission = nil
		p.Status = domain.ProblemPending
		p.Version++
		return r.Transition(domain.RoundInProgress)
	})
}

// expandable reports whether res may earn the adaptive extra problem.
func expandable(r *domain.Round, res CodeResult, index int) bool {
	return r.Adaptive && !r.Expanded && index >= 1 &&
		res.Review != nil && !res.Review.IsPending &&
		quality(res.Review) >= ExpansionThreshold
}

func quality(c *domain.CodeReview) float64 {
	return scoring.CodeQuality(c.Correctness, c.Efficiency, c.Readability, c.EdgeCases)
}

// ApplyCodeResult stores test results and review on a problem. When the
// round cursor still sits on the evaluated problem it advances, possibly
// appending the adaptive extra problem, and the round either reopens for
// the next problem or completes.
func (s *Service) ApplyCodeResult(ctx context.Context, res CodeResult) (*domain.Round, error) {
	r, err := s.rounds.Get(ctx, res.RoundID)
	if err != nil {
		return nil, err
	}
	_, index := r.Problem(res.ProblemID)
	if index < 0 {
		return nil, fmt.Errorf("problem %s: %w", res.ProblemID, domain.ErrItemNotFound)
	}

	var extra *domain.Problem
	if expandable(r, res, index) && r.Status == domain.RoundEvaluating && r.CurrentProblemIndex == res.Cursor {
		req := s.generateRequest(r, len(r.Problems)+1)
		req.Kind = routing.GenerateCodingProblem
		req.Difficulty = expansionDifficulty
		extra = s.gen.Generate(ctx, req).Problem
	}

	now := s.now()
	var completed, expanded bool
	r, err = s.mutate(ctx, res.RoundID, func(r *domain.Round) error {
		completed, expanded = false, false
		p, i := r.Problem(res.ProblemID)
		if p == nil {
			return fmt.Errorf("problem %s: %w", res.ProblemID, domain.ErrItemNotFound)
		}
		if p.Submission == nil {
			return fmt.Errorf("problem %s: %w", res.ProblemID, domain.ErrNotAnswered)
		}
		if res.Review != nil && p.Review != nil && !res.Review.Supersedes(p.Review) {
			s.log.Debug("Keeping newer review", "round", r.ID, "problem", p.ID)
			return errNoChange
		}

		passed := 0
		for _, tr := range res.Results {
			if tr.Passed {
				passed++
			}
		}
		p.TestResults = append([]domain.TestResult(nil), res.Results...)
		p.PassedTests = passed
		p.TotalTests = len(res.Results)
		p.TestPassRate = scoring.PassRate(passed, len(res.Results))
		if res.Review != nil {
			review := *res.Review
			review.QualityScore = quality(&review)
			p.Review = &review
		}
		q := 0.0
		if p.Review != nil {
			q = p.Review.QualityScore
		}
		p.FinalScore = scoring.CodingFinal(p.TestPassRate, q)
		p.Status = domain.ProblemEvaluated
		p.Version++

		if r.Status == domain.RoundEvaluating && r.CurrentProblemIndex == res.Cursor && i == res.Cursor {
			r.CurrentProblemIndex++
			r.SolvedProblems++
			if extra != nil && expandable(r, res, i) {
				c := *extra
				c.Sequence = r.NextSequence()
				c.IsAdaptive = true
				c.Version = 1
				r.Problems = append(r.Problems, &c)
				r.TotalCount++
				r.Expanded = true
				expanded = true
			}
			r.AnsweredCount = min(r.CurrentProblemIndex, r.TotalCount)
			if r.CurrentProblemIndex >= r.TotalCount {
				completed = true
				return s.complete(r, now)
			}
			if err := r.Transition(domain.RoundInProgress); err != nil {
				return err
			}
		}
		rescore(r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expanded {
		s.log.Info("Adaptive problem added", "round", r.ID, "total", r.TotalCount)
	}
	if completed {
		s.recordCompletion(r)
	}
	return r, nil
}
