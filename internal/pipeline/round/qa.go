package round

import (
	"context"
	"fmt"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/core/scoring"
	"github.com/vietddude/interviewer/internal/infra/queue"
)

// SubmitResult is returned after an answer is recorded.
type SubmitResult struct {
	Round     *domain.Round    `json:"round"`
	Next      *domain.Question `json:"next,omitempty"`
	Completed bool             `json:"completed"`
	Progress  scoring.Progress `json:"progress"`
}

// checkAnswerable validates that questionID is the item the candidate is on.
func checkAnswerable(r *domain.Round, questionID string) (*domain.Question, error) {
	if r.Type == domain.RoundCoding {
		return nil, fmt.Errorf("round %s is a coding round: %w", r.ID, domain.ErrRoundClosed)
	}
	if r.Status != domain.RoundInProgress {
		return nil, fmt.Errorf("round %s is %s: %w", r.ID, r.Status, domain.ErrRoundClosed)
	}
	q := r.Question(questionID)
	if q == nil {
		return nil, fmt.Errorf("question %s: %w", questionID, domain.ErrItemNotFound)
	}
	if q.Answered() {
		return nil, fmt.Errorf("question %s: %w", questionID, domain.ErrAlreadyAnswered)
	}
	if cur := r.CurrentQuestion(); cur == nil || cur.ID != questionID {
		return nil, fmt.Errorf("question %s: %w", questionID, domain.ErrOutOfSequence)
	}
	return q, nil
}

// SubmitAnswer records the answer to the current question, enqueues its
// evaluation and appends the next question. The round completes when every
// question is answered.
func (s *Service) SubmitAnswer(ctx context.Context, roundID, questionID, answer string) (*SubmitResult, error) {
	r, err := s.rounds.Get(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if _, err := checkAnswerable(r, questionID); err != nil {
		return nil, err
	}

	// The next question is generated before the write so the slow provider
	// call never holds a version.
	n := len(r.Questions) + 1
	var next *domain.Question
	if r.AnsweredCount+1 < r.TotalCount && n <= r.TotalCount {
		next = s.gen.Generate(ctx, s.generateRequest(r, n)).Question
	}

	now := s.now()
	var (
		answered  domain.Question
		completed bool
		appended  bool
	)
	r, err = s.mutate(ctx, roundID, func(r *domain.Round) error {
		completed, appended = false, false
		q, err := checkAnswerable(r, questionID)
		if err != nil {
			return err
		}
		text := answer
		q.UserAnswer = &text
		q.AnsweredAt = &now
		q.Version++
		r.AnsweredCount++
		answered = *q

		if r.AnsweredCount >= r.TotalCount {
			completed = true
			return s.complete(r, now)
		}
		// A concurrent submit may already have appended item n.
		if next != nil && len(r.Questions) == n-1 {
			c := *next
			c.Sequence = r.NextSequence()
			c.Version = 1
			r.Questions = append(r.Questions, &c)
			appended = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.enqueueEvaluation(ctx, r, &answered)
	if completed {
		s.recordCompletion(r)
	} else if appended && s.cfg.Prefetch > 0 {
		s.prefetch(ctx, r, n+s.cfg.Prefetch, n+s.cfg.Prefetch)
	}

	return &SubmitResult{
		Round:     r,
		Next:      r.CurrentQuestion(),
		Completed: completed,
		Progress:  scoring.NewProgress(r.AnsweredCount, r.TotalCount),
	}, nil
}

// enqueueEvaluation hands an answered question to the evaluation queue. A
// failure is only logged; the item stays unevaluated and Retrigger picks
// it up.
func (s *Service) enqueueEvaluation(ctx context.Context, r *domain.Round, q *domain.Question) {
	var payload domain.Payload = domain.AnswerEvaluationPayload{RoundID: r.ID, QuestionID: q.ID}
	if r.Type == domain.RoundHR {
		payload = domain.HREvaluationPayload{RoundID: r.ID, QuestionID: q.ID}
	}
	if _, err := s.jobs.Enqueue(ctx, payload, queue.EnqueueOptions{Priority: q.Sequence}); err != nil {
		s.log.Error("Failed to enqueue evaluation", "round", r.ID, "question", q.ID, "error", err)
	}
}

// SubmitFollowUp records the answer to an item's follow-up question.
func (s *Service) SubmitFollowUp(ctx context.Context, roundID, questionID, answer string) (*domain.Round, error) {
	now := s.now()
	return s.mutate(ctx, roundID, func(r *domain.Round) error {
		if r.Status == domain.RoundNotStarted {
			return fmt.Errorf("round %s: %w", r.ID, domain.ErrRoundClosed)
		}
		q := r.Question(questionID)
		if q == nil {
			return fmt.Errorf("question %s: %w", questionID, domain.ErrItemNotFound)
		}
		if q.FollowUp == nil {
			return fmt.Errorf("question %s: %w", questionID, domain.ErrFollowUpMissing)
		}
		if q.FollowUp.Answer != nil {
			return fmt.Errorf("follow-up of question %s: %w", questionID, domain.ErrAlreadyAnswered)
		}
		text := answer
		q.FollowUp.Answer = &text
		q.FollowUp.AnsweredAt = &now
		q.Version++
		return nil
	})
}

// ApplyEvaluation attaches eval to a question unless the question already
// holds a result that eval does not supersede. Round aggregates are
// recomputed, including on completed rounds.
func (s *Service) ApplyEvaluation(ctx context.Context, roundID, questionID string, eval *domain.Evaluation) (*domain.Round, error) {
	now := s.now()
	return s.mutate(ctx, roundID, func(r *domain.Round) error {
		q := r.Question(questionID)
		if q == nil {
			return fmt.Errorf("question %s: %w", questionID, domain.ErrItemNotFound)
		}
		if !q.Answered() {
			return fmt.Errorf("question %s: %w", questionID, domain.ErrNotAnswered)
		}
		if !eval.Supersedes(q.Evaluation) {
			s.log.Debug("Keeping newer evaluation", "round", roundID, "question", questionID)
			return errNoChange
		}

		e := *eval
		q.Evaluation = &e
		q.Version++
		if !e.IsPending && e.FollowUpQuestion != "" && r.Status != domain.RoundCompleted &&
			scoring.ShouldFollowUp(e.Score, q.FollowUp != nil) {
			q.FollowUp = &domain.FollowUp{Question: e.FollowUpQuestion, AskedAt: now}
		}
		rescore(r)
		return nil
	})
}
