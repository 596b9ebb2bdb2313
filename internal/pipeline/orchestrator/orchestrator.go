// Package orchestrator drives an interview through its ordered rounds and
// produces the final report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/core/scoring"
	"github.com/vietddude/interviewer/internal/infra/storage"
	"github.com/vietddude/interviewer/internal/pipeline/metrics"
	"github.com/vietddude/interviewer/internal/pipeline/round"
)

const maxRetries = 5

// stage describes one round in interview order.
type stage struct {
	round   domain.RoundType
	status  domain.InterviewStatus
	require domain.RoundType
}

var stages = map[domain.RoundType]stage{
	domain.RoundTechnical: {round: domain.RoundTechnical, status: domain.InterviewStatusTechnical},
	domain.RoundHR:        {round: domain.RoundHR, status: domain.InterviewStatusHR, require: domain.RoundTechnical},
	domain.RoundCoding:    {round: domain.RoundCoding, status: domain.InterviewStatusCoding, require: domain.RoundHR},
}

type Orchestrator struct {
	interviews storage.InterviewRepository
	rounds     *round.Service
	now        func() time.Time
	log        *slog.Logger
}

func New(interviews storage.InterviewRepository, rounds *round.Service) *Orchestrator {
	return &Orchestrator{
		interviews: interviews,
		rounds:     rounds,
		now:        time.Now,
		log:        slog.Default().With("component", "orchestrator"),
	}
}

// SetClock overrides the orchestrator clock.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

var errNoChange = errors.New("no change")

func (o *Orchestrator) mutate(ctx context.Context, id string, fn func(iv *domain.Interview) error) (*domain.Interview, error) {
	for attempt := 0; ; attempt++ {
		iv, err := o.interviews.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(iv); err != nil {
			if errors.Is(err, errNoChange) {
				return iv, nil
			}
			return nil, err
		}
		err = o.interviews.Update(ctx, iv)
		if err == nil {
			return iv, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt >= maxRetries {
			return nil, err
		}
	}
}

// CreateInterview stores a new interview for a candidate.
func (o *Orchestrator) CreateInterview(ctx context.Context, candidateID string, opts domain.Options) (*domain.Interview, error) {
	now := o.now()
	iv := &domain.Interview{
		ID:          uuid.NewString(),
		CandidateID: candidateID,
		Status:      domain.InterviewStatusCreated,
		Options:     opts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.interviews.Create(ctx, iv); err != nil {
		return nil, fmt.Errorf("create interview: %w", err)
	}
	o.log.Info("Interview created", "interview", iv.ID, "candidate", candidateID)
	return iv, nil
}

// Get returns an interview.
func (o *Orchestrator) Get(ctx context.Context, id string) (*domain.Interview, error) {
	return o.interviews.Get(ctx, id)
}

// StartTechnical creates and starts the technical round, or resumes it.
func (o *Orchestrator) StartTechnical(ctx context.Context, interviewID string) (*domain.Round, error) {
	return o.start(ctx, interviewID, stages[domain.RoundTechnical])
}

// StartHR starts the HR round once the technical round is completed. A
// started HR round is resumed.
func (o *Orchestrator) StartHR(ctx context.Context, interviewID string) (*domain.Round, error) {
	return o.start(ctx, interviewID, stages[domain.RoundHR])
}

// StartCoding starts the coding round once the HR round is completed. A
// started coding round is resumed.
func (o *Orchestrator) StartCoding(ctx context.Context, interviewID string) (*domain.Round, error) {
	return o.start(ctx, interviewID, stages[domain.RoundCoding])
}

func (o *Orchestrator) start(ctx context.Context, interviewID string, st stage) (*domain.Round, error) {
	iv, err := o.interviews.Get(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if iv.Status == domain.InterviewStatusCompleted {
		return nil, fmt.Errorf("interview %s: %w", iv.ID, domain.ErrRoundClosed)
	}

	if id := iv.RoundID(st.round); id != "" {
		r, err := o.rounds.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if r.Status != domain.RoundNotStarted {
			return o.rounds.Start(ctx, id)
		}
	}

	if st.require != "" {
		if err := o.requireCompleted(ctx, iv, st.require); err != nil {
			return nil, err
		}
	}

	roundID := iv.RoundID(st.round)
	if roundID == "" {
		r, err := o.rounds.Create(ctx, iv.ID, st.round, roundOptions(iv.Options, st.round))
		switch {
		case err == nil:
			roundID = r.ID
		case errors.Is(err, storage.ErrDuplicate):
			// A concurrent start created it first.
			existing, ferr := o.rounds.ForInterview(ctx, interviewID)
			if ferr != nil {
				return nil, ferr
			}
			for _, r := range existing {
				if r.Type == st.round {
					roundID = r.ID
				}
			}
			if roundID == "" {
				return nil, err
			}
		default:
			return nil, err
		}
	}

	iv, err = o.mutate(ctx, interviewID, func(iv *domain.Interview) error {
		changed := false
		if iv.RoundID(st.round) == "" {
			setRoundID(iv, st.round, roundID)
			changed = true
		}
		if iv.Advance(st.status) {
			changed = true
		}
		if !changed {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r, err := o.rounds.Start(ctx, iv.RoundID(st.round))
	if err != nil {
		return nil, err
	}
	o.log.Info("Round in progress", "interview", iv.ID, "round", r.ID, "type", r.Type)
	return r, nil
}

func (o *Orchestrator) requireCompleted(ctx context.Context, iv *domain.Interview, t domain.RoundType) error {
	id := iv.RoundID(t)
	if id == "" {
		return fmt.Errorf("%s round not started: %w", t, domain.ErrPrerequisite)
	}
	r, err := o.rounds.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.Status != domain.RoundCompleted {
		return fmt.Errorf("%s round is %s: %w", t, r.Status, domain.ErrPrerequisite)
	}
	return nil
}

func setRoundID(iv *domain.Interview, t domain.RoundType, id string) {
	switch t {
	case domain.RoundTechnical:
		iv.TechnicalRoundID = id
	case domain.RoundHR:
		iv.HRRoundID = id
	case domain.RoundCoding:
		iv.CodingRoundID = id
	}
}

// roundOptions derives the options of one round. A nested map under the
// round type key of the interview options overrides interview-wide values.
func roundOptions(opts domain.Options, t domain.RoundType) domain.Options {
	base := domain.Options{
		Difficulty: opts.Difficulty,
		Role:       opts.Role,
		Language:   opts.Language,
		TimeLimit:  opts.TimeLimit,
		Adaptive:   opts.Adaptive,
	}
	nested, ok := opts.Extra[string(t)].(map[string]any)
	if !ok {
		return base
	}
	parsed, err := domain.ParseOptions(nested)
	if err != nil {
		slog.Warn("Ignoring invalid round options", "type", t, "error", err)
		return base
	}
	return parsed.WithDefaults(base)
}

// Report computes the overall score and hiring decision. The coding round
// must be completed.
func (o *Orchestrator) Report(ctx context.Context, interviewID string) (*domain.Interview, error) {
	iv, err := o.interviews.Get(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if err := o.requireCompleted(ctx, iv, domain.RoundCoding); err != nil {
		return nil, err
	}
	report, err := o.buildReport(ctx, iv)
	if err != nil {
		return nil, err
	}

	now := o.now()
	iv, err = o.mutate(ctx, interviewID, func(iv *domain.Interview) error {
		iv.Report = report
		iv.Advance(domain.InterviewStatusCompleted)
		if iv.CompletedAt == nil {
			iv.CompletedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.InterviewReportsTotal.WithLabelValues(string(report.Decision)).Inc()
	o.log.Info("Interview report generated",
		"interview", iv.ID, "overall", report.OverallScore, "decision", report.Decision)
	return iv, nil
}

// Refresh recomputes the report of a completed interview after a late
// evaluation changed a round score. Interviews without a report are left
// as they are.
func (o *Orchestrator) Refresh(ctx context.Context, interviewID string) (*domain.Interview, error) {
	iv, err := o.interviews.Get(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if iv.Report == nil {
		return iv, nil
	}
	report, err := o.buildReport(ctx, iv)
	if err != nil {
		return nil, err
	}
	return o.mutate(ctx, interviewID, func(iv *domain.Interview) error {
		if iv.Report != nil && sameScores(iv.Report, report) {
			return errNoChange
		}
		iv.Report = report
		return nil
	})
}

func sameScores(a, b *domain.Report) bool {
	return a.TechnicalScore == b.TechnicalScore &&
		a.HRScore == b.HRScore &&
		a.CodingScore == b.CodingScore
}

func (o *Orchestrator) buildReport(ctx context.Context, iv *domain.Interview) (*domain.Report, error) {
	scores := make(map[domain.RoundType]float64, 3)
	for _, t := range []domain.RoundType{domain.RoundTechnical, domain.RoundHR, domain.RoundCoding} {
		id := iv.RoundID(t)
		if id == "" {
			continue
		}
		r, err := o.rounds.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load %s round: %w", t, err)
		}
		scores[t] = r.Score
	}

	overall := scoring.Overall(scores[domain.RoundTechnical], scores[domain.RoundHR], scores[domain.RoundCoding])
	d := scoring.Decide(overall)
	return &domain.Report{
		TechnicalScore: scores[domain.RoundTechnical],
		HRScore:        scores[domain.RoundHR],
		CodingScore:    scores[domain.RoundCoding],
		OverallScore:   overall,
		Decision:       d.Decision,
		Probability:    d.Probability,
		Readiness:      d.Readiness,
		GeneratedAt:    o.now(),
	}, nil
}
