// Package round implements the technical, HR and coding round state
// machines. Every write is a compare-and-swap on the round version; a
// conflicting write re-reads the round and re-applies the change.
package round

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/core/scoring"
	"github.com/vietddude/interviewer/internal/infra/ai/bank"
	"github.com/vietddude/interviewer/internal/infra/ai/routing"
	"github.com/vietddude/interviewer/internal/infra/queue"
	"github.com/vietddude/interviewer/internal/infra/storage"
	"github.com/vietddude/interviewer/internal/pipeline/metrics"
)

const (
	defaultMaxRetries = 5
	defaultPrefetch   = 2
)

// Generator produces questions and problems.
type Generator interface {
	Generate(ctx context.Context, req routing.GenerateRequest) routing.GenerateResult
}

// Enqueuer hands payloads to the work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload domain.Payload, opts queue.EnqueueOptions) (*domain.Job, error)
}

// Config holds per-type option defaults.
type Config struct {
	Technical domain.Options `yaml:"technical"`
	HR        domain.Options `yaml:"hr"`
	Coding    domain.Options `yaml:"coding"`
	// Prefetch is how many upcoming questions are generated ahead in the
	// background to warm the response cache.
	Prefetch   int `yaml:"prefetch"`
	MaxRetries int `yaml:"max_retries"`
}

// DefaultConfig returns the stock round sizes.
func DefaultConfig() Config {
	return Config{
		Technical: domain.Options{
			Difficulty: "medium",
			TotalItems: 10,
			Categories: bank.Categories(domain.RoundTechnical),
			Role:       "software engineer",
		},
		HR: domain.Options{
			Difficulty: "medium",
			TotalItems: 5,
			Categories: bank.Categories(domain.RoundHR),
			Role:       "software engineer",
		},
		Coding: domain.Options{
			Difficulty: "medium",
			TotalItems: 3,
			Adaptive:   domain.Bool(true),
			Language:   "python",
			Role:       "software engineer",
		},
		Prefetch:   defaultPrefetch,
		MaxRetries: defaultMaxRetries,
	}
}

// Snapshot is the state a client polls.
type Snapshot struct {
	Round    *domain.Round    `json:"round"`
	Question *domain.Question `json:"question,omitempty"`
	Problem  *domain.Problem  `json:"problem,omitempty"`
	Progress scoring.Progress `json:"progress"`
}

// Service runs the round state machines.
type Service struct {
	rounds storage.RoundRepository
	gen    Generator
	jobs   Enqueuer
	cfg    Config
	now    func() time.Time
	log    *slog.Logger
}

// NewService creates a round service.
func NewService(rounds storage.RoundRepository, gen Generator, jobs Enqueuer, cfg Config) *Service {
	defaults := DefaultConfig()
	cfg.Technical = cfg.Technical.WithDefaults(defaults.Technical)
	cfg.HR = cfg.HR.WithDefaults(defaults.HR)
	cfg.Coding = cfg.Coding.WithDefaults(defaults.Coding)
	if cfg.Prefetch < 0 {
		cfg.Prefetch = 0
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Service{
		rounds: rounds,
		gen:    gen,
		jobs:   jobs,
		cfg:    cfg,
		now:    time.Now,
		log:    slog.Default().With("component", "round"),
	}
}

// SetClock overrides the service clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// errNoChange aborts a mutation without writing.
var errNoChange = errors.New("no change")

// mutate applies fn to a fresh copy of the round and writes it back,
// retrying on version conflicts. When fn returns errNoChange the round is
// returned as read.
func (s *Service) mutate(ctx context.Context, roundID string, fn func(r *domain.Round) error) (*domain.Round, error) {
	for attempt := 0; ; attempt++ {
		r, err := s.rounds.Get(ctx, roundID)
		if err != nil {
			return nil, err
		}
		if err := fn(r); err != nil {
			if errors.Is(err, errNoChange) {
				return r, nil
			}
			return nil, err
		}

		err = s.rounds.Update(ctx, r)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt >= s.cfg.MaxRetries {
			return nil, err
		}
		s.log.Debug("Round version conflict, retrying", "round", roundID, "attempt", attempt+1)
	}
}

func (s *Service) defaults(t domain.RoundType) domain.Options {
	switch t {
	case domain.RoundHR:
		return s.cfg.HR
	case domain.RoundCoding:
		return s.cfg.Coding
	}
	return s.cfg.Technical
}

// Get returns a round.
func (s *Service) Get(ctx context.Context, roundID string) (*domain.Round, error) {
	return s.rounds.Get(ctx, roundID)
}

// ForInterview returns every round of an interview.
func (s *Service) ForInterview(ctx context.Context, interviewID string) ([]*domain.Round, error) {
	return s.rounds.ListByInterview(ctx, interviewID)
}

// Create stores a new round in not_started.
func (s *Service) Create(ctx context.Context, interviewID string, t domain.RoundType, opts domain.Options) (*domain.Round, error) {
	opts = opts.WithDefaults(s.defaults(t))
	now := s.now()
	r := &domain.Round{
		ID:          uuid.NewString(),
		InterviewID: interviewID,
		Type:        t,
		Status:      domain.RoundNotStarted,
		Options:     opts,
		TotalCount:  opts.TotalItems,
		Adaptive:    t == domain.RoundCoding && opts.AdaptiveEnabled(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.rounds.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create %s round: %w", t, err)
	}
	return r, nil
}

// Start moves a round to in_progress and generates its first items. A
// round already under way is returned unchanged so clients can resume.
func (s *Service) Start(ctx context.Context, roundID string) (*domain.Round, error) {
	r, err := s.rounds.Get(ctx, roundID)
	if err != nil {
		return nil, err
	}
	switch r.Status {
	case domain.RoundInProgress, domain.RoundEvaluating:
		return r, nil
	case domain.RoundCompleted:
		return nil, fmt.Errorf("start round %s: %w", roundID, domain.ErrRoundClosed)
	}

	// Generation is slow; do it before taking the write.
	var (
		questions []*domain.Question
		problems  []*domain.Problem
	)
	if r.Type == domain.RoundCoding {
		for n := 1; n <= r.TotalCount; n++ {
			if p := s.gen.Generate(ctx, s.generateRequest(r, n)).Problem; p != nil {
				problems = append(problems, p)
			}
		}
	} else if r.TotalCount > 0 {
		if q := s.gen.Generate(ctx, s.generateRequest(r, 1)).Question; q != nil {
			questions = append(questions, q)
		}
	}

	now := s.now()
	started := false
	r, err = s.mutate(ctx, roundID, func(r *domain.Round) error {
		started = false
		if r.Status != domain.RoundNotStarted {
			return errNoChange
		}
		if err := r.Transition(domain.RoundInProgress); err != nil {
			return err
		}
		r.StartedAt = &now
		for _, q := range questions {
			c := *q
			c.Sequence = r.NextSequence()
			c.Version = 1
			r.Questions = append(r.Questions, &c)
		}
		for _, p := range problems {
			c := *p
			c.Sequence = r.NextSequence()
			c.Version = 1
			r.Problems = append(r.Problems, &c)
		}
		if r.Type == domain.RoundCoding {
			r.TotalCount = len(r.Problems)
		}
		started = true
		// Nothing to ask; no submission would ever complete it.
		if r.TotalCount == 0 {
			return s.complete(r, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !started {
		return r, nil
	}
	if r.Status == domain.RoundCompleted {
		s.log.Warn("Round started with no items", "round", r.ID, "type", r.Type)
		s.recordCompletion(r)
		return r, nil
	}

	s.log.Info("Round started", "round", r.ID, "type", r.Type, "total", r.TotalCount)
	if r.Type != domain.RoundCoding {
		s.prefetch(ctx, r, 2, 1+s.cfg.Prefetch)
	}
	return r, nil
}

// prefetch enqueues background generation for items from..to.
func (s *Service) prefetch(ctx context.Context, r *domain.Round, from, to int) {
	for n := from; n <= to && n <= r.TotalCount; n++ {
		req := s.generateRequest(r, n)
		payload := domain.ItemGenerationPayload{
			RoundID:        r.ID,
			RoundType:      r.Type,
			Category:       req.Category,
			Difficulty:     req.Difficulty,
			QuestionNumber: n,
		}
		if _, err := s.jobs.Enqueue(ctx, payload, queue.EnqueueOptions{Priority: n}); err != nil {
			s.log.Warn("Failed to enqueue item prefetch", "round", r.ID, "item", n, "error", err)
		}
	}
}

// Prefetch generates item n of a round so the synchronous generation on
// the next submit is served from the cache.
func (s *Service) Prefetch(ctx context.Context, p domain.ItemGenerationPayload) error {
	r, err := s.rounds.Get(ctx, p.RoundID)
	if err != nil {
		return err
	}
	if r.Status == domain.RoundCompleted || p.QuestionNumber <= len(r.Questions) {
		return nil
	}

	req := s.generateRequest(r, p.QuestionNumber)
	if p.Category != "" {
		req.Category = p.Category
	}
	if p.Difficulty != "" {
		req.Difficulty = p.Difficulty
	}
	if res := s.gen.Generate(ctx, req); res.QuotaExhausted {
		return queue.ErrQuotaExhausted
	}
	return nil
}

func (s *Service) generateRequest(r *domain.Round, n int) routing.GenerateRequest {
	opts := r.Options
	req := routing.GenerateRequest{
		Difficulty: opts.Difficulty,
		Role:       opts.Role,
		ItemNumber: n,
	}
	switch r.Type {
	case domain.RoundCoding:
		req.Kind = routing.GenerateCodingProblem
		req.Language = opts.Language
	case domain.RoundHR:
		req.Kind = routing.GenerateHRQuestion
		req.Category = category(r, n)
	default:
		req.Kind = routing.GenerateTechnicalQuestion
		req.Category = category(r, n)
	}
	return req
}

// category rotates through the configured categories by item number.
func category(r *domain.Round, n int) string {
	cats := r.Options.Categories
	if len(cats) == 0 {
		cats = bank.Categories(r.Type)
	}
	if n < 1 {
		n = 1
	}
	return cats[(n-1)%len(cats)]
}

// Current returns the item the candidate should work on next.
func (s *Service) Current(ctx context.Context, roundID string) (*Snapshot, error) {
	r, err := s.rounds.Get(ctx, roundID)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Round: r}
	if r.Type == domain.RoundCoding {
		snap.Problem = r.CurrentProblem()
		snap.Progress = scoring.NewProgress(r.CurrentProblemIndex, r.TotalCount)
	} else {
		snap.Question = r.CurrentQuestion()
		snap.Progress = scoring.NewProgress(r.AnsweredCount, r.TotalCount)
	}
	return snap, nil
}

// rescore recomputes the round aggregates from evaluated items.
func rescore(r *domain.Round) {
	switch r.Type {
	case domain.RoundTechnical:
		res := scoring.Technical(r.Questions)
		r.Score = res.Score
		r.SubScores.Categories = res.Categories
	case domain.RoundHR:
		res := scoring.HR(r.Questions)
		r.Score = res.Score
		r.SubScores.Communication = res.Communication
		r.SubScores.Attitude = res.Attitude
		r.SubScores.CultureFit = res.CultureFit
	case domain.RoundCoding:
		r.Score = scoring.Coding(r.Problems)
	}
}

func (s *Service) complete(r *domain.Round, now time.Time) error {
	rescore(r)
	if err := r.Complete(now); err != nil {
		return err
	}
	return nil
}

func (s *Service) recordCompletion(r *domain.Round) {
	metrics.RoundsCompletedTotal.WithLabelValues(string(r.Type)).Inc()
	s.log.Info("Round completed",
		"round", r.ID, "type", r.Type, "score", r.Score, "duration_minutes", r.DurationMinutes)
}
