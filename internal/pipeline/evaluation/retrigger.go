package evaluation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/infra/queue"
	"github.com/vietddude/interviewer/internal/infra/storage"
)

const defaultRetriggerLimit = 500

// Enqueuer hands payloads to the work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload domain.Payload, opts queue.EnqueueOptions) (*domain.Job, error)
}

// Retriggerer re-enqueues evaluation jobs for answered items that have no
// real evaluation, pending markers included.
type Retriggerer struct {
	rounds storage.RoundRepository
	jobs   Enqueuer
	log    *slog.Logger
}

func NewRetriggerer(rounds storage.RoundRepository, jobs Enqueuer) *Retriggerer {
	return &Retriggerer{
		rounds: rounds,
		jobs:   jobs,
		log:    slog.Default().With("component", "retrigger"),
	}
}

// Retrigger scans up to limit rounds and returns the number of jobs
// enqueued.
func (t *Retriggerer) Retrigger(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultRetriggerLimit
	}
	rounds, err := t.rounds.FindUnevaluated(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("find unevaluated rounds: %w", err)
	}

	enqueued := 0
	for _, r := range rounds {
		for _, id := range r.Unevaluated() {
			payload, priority := retriggerPayload(r, id)
			if payload == nil {
				continue
			}
			if _, err := t.jobs.Enqueue(ctx, payload, queue.EnqueueOptions{Priority: priority}); err != nil {
				return enqueued, fmt.Errorf("enqueue %s for round %s: %w", payload.Kind(), r.ID, err)
			}
			enqueued++
		}
	}
	t.log.Info("Retriggered evaluations", "rounds", len(rounds), "jobs", enqueued)
	return enqueued, nil
}

func retriggerPayload(r *domain.Round, itemID string) (domain.Payload, int) {
	if q := r.Question(itemID); q != nil {
		if r.Type == domain.RoundHR {
			return domain.HREvaluationPayload{RoundID: r.ID, QuestionID: q.ID}, q.Sequence
		}
		return domain.AnswerEvaluationPayload{RoundID: r.ID, QuestionID: q.ID}, q.Sequence
	}
	p, index := r.Problem(itemID)
	if p == nil || p.Submission == nil {
		return nil, 0
	}
	return domain.CodeExecutionPayload{
		RoundID:   r.ID,
		ProblemID: p.ID,
		Code:      p.Submission.Code,
		Language:  p.Submission.Language,
		Cursor:    index,
	}, p.Sequence
}
