// Package routing sends generation and evaluation requests through the
// response cache and an ordered list of model providers, falling back to
// static content or a pending marker so callers always get a result.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/infra/ai/bank"
	"github.com/vietddude/interviewer/internal/infra/ai/cache"
	"github.com/vietddude/interviewer/internal/infra/ai/provider"
	"github.com/vietddude/interviewer/internal/infra/ai/ratelimit"
	"github.com/vietddude/interviewer/internal/pipeline/metrics"
)

// DefaultCallTimeout bounds a single provider call.
const DefaultCallTimeout = 30 * time.Second

// PendingScore is the neutral score of a pending evaluation.
const PendingScore = 5

// Router is the provider fallback chain.
type Router struct {
	providers   []provider.Provider
	limiter     *ratelimit.Limiter
	cache       *cache.Cache
	callTimeout time.Duration
	now         func() time.Time
	log         *slog.Logger
}

// NewRouter creates a router trying providers in the given order.
func NewRouter(
	limiter *ratelimit.Limiter,
	respCache *cache.Cache,
	callTimeout time.Duration,
	providers ...provider.Provider,
) *Router {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Router{
		providers:   providers,
		limiter:     limiter,
		cache:       respCache,
		callTimeout: callTimeout,
		now:         time.Now,
		log:         slog.Default().With("component", "router"),
	}
}

// Providers returns the providers in fallback order.
func (r *Router) Providers() []provider.Provider {
	return r.providers
}

// CacheStats returns the response cache counters.
func (r *Router) CacheStats() cache.Stats {
	return r.cache.Stats()
}

// attempt is the outcome of walking the provider chain.
type attempt struct {
	source    string
	ok        bool
	attempted int
	quotaHits int
}

func (a attempt) quotaExhausted() bool {
	return !a.ok && a.attempted > 0 && a.quotaHits == a.attempted
}

// complete walks the providers in order until one returns output that
// decode accepts. Rate-limited and open-circuit providers are skipped
// without consuming budget.
func (r *Router) complete(
	ctx context.Context,
	op string,
	prompt provider.Prompt,
	decode func(text string) error,
) attempt {
	var res attempt
	for _, p := range r.providers {
		name := p.Name()

		if !p.IsAvailable() {
			r.log.Debug("Skipping provider with open circuit", "provider", name, "operation", op)
			metrics.ProviderCallsTotal.WithLabelValues(name, op, "circuit_open").Inc()
			continue
		}

		if r.limiter != nil {
			if d := r.limiter.Check(ctx, name); !d.Allowed {
				r.log.Info("Provider rate limited, falling through",
					"provider", name, "operation", op, "retry_after", d.RetryAfter)
				metrics.ProviderCallsTotal.WithLabelValues(name, op, "rate_limited").Inc()
				continue
			}
		}

		res.attempted++
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		start := time.Now()
		text, err := p.Complete(callCtx, prompt)
		cancel()
		latency := time.Since(start)
		metrics.ProviderLatency.WithLabelValues(name, op).Observe(latency.Seconds())

		if err == nil {
			err = decode(text)
		}
		if err != nil {
			p.RecordFailure(err)
			action := ClassifyError(err)
			if action == ActionQuota {
				res.quotaHits++
			}
			r.log.Warn("Provider attempt failed",
				"provider", name, "operation", op, "action", action.String(),
				"latency", latency, "error", err)
			metrics.ProviderCallsTotal.WithLabelValues(name, op, "error").Inc()
			if ctx.Err() != nil {
				return res
			}
			continue
		}

		p.RecordSuccess(latency)
		r.log.Debug("Provider attempt succeeded", "provider", name, "operation", op, "latency", latency)
		metrics.ProviderCallsTotal.WithLabelValues(name, op, "success").Inc()
		res.source = name
		res.ok = true
		return res
	}
	return res
}

// decodeInto parses the first JSON object of text into v and validates it.
func decodeInto[T interface{ validate() error }](text string, v T) ([]byte, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// Generate returns a question or problem. It never fails: when every
// provider is unavailable the static bank answers.
func (r *Router) Generate(ctx context.Context, req GenerateRequest) GenerateResult {
	op := string(req.Kind)
	key := cache.Key(op, req.params())

	if raw, ok := r.cache.Get(ctx, op, key); ok {
		if res, err := r.buildGenerated(req, string(raw), domain.SourceCache); err == nil {
			r.log.Debug("Cache hit", "operation", op)
			metrics.FallbackServedTotal.WithLabelValues(op, string(domain.SourceCache)).Inc()
			return res
		}
	}

	var (
		result     GenerateResult
		normalized []byte
	)
	att := r.complete(ctx, op, generatePrompt(req), func(text string) error {
		res, err := r.buildGenerated(req, text, "")
		if err != nil {
			return err
		}
		result = res
		normalized, err = r.normalizedGenerated(req, text)
		return err
	})

	if att.ok {
		result.stamp(domain.ItemSource(att.source))
		r.cache.Set(ctx, op, key, normalized, false)
		metrics.FallbackServedTotal.WithLabelValues(op, att.source).Inc()
		return result
	}

	r.log.Warn("All providers failed, serving static bank item",
		"operation", op, "category", req.Category, "item", req.ItemNumber)
	metrics.FallbackServedTotal.WithLabelValues(op, string(domain.SourceBank)).Inc()
	result = r.fromBank(req)
	result.QuotaExhausted = att.quotaExhausted()
	return result
}

func (res *GenerateResult) stamp(source domain.ItemSource) {
	res.Source = source
	if res.Question != nil {
		res.Question.Source = source
	}
	if res.Problem != nil {
		res.Problem.Source = source
	}
}

func (r *Router) normalizedGenerated(req GenerateRequest, text string) ([]byte, error) {
	if req.Kind == GenerateCodingProblem {
		return decodeInto(text, &problemPayload{})
	}
	return decodeInto(text, &questionPayload{})
}

func (r *Router) buildGenerated(req GenerateRequest, text string, source domain.ItemSource) (GenerateResult, error) {
	now := r.now()
	if req.Kind == GenerateCodingProblem {
		var p problemPayload
		if _, err := decodeInto(text, &p); err != nil {
			return GenerateResult{}, err
		}
		difficulty := p.Difficulty
		if difficulty == "" {
			difficulty = req.Difficulty
		}
		problem := &domain.Problem{
			ID:          uuid.NewString(),
			Title:       p.Title,
			Description: p.Description,
			Difficulty:  difficulty,
			Source:      source,
			Status:      domain.ProblemPending,
			CreatedAt:   now,
		}
		for _, tc := range p.TestCases {
			problem.TestCases = append(problem.TestCases, domain.TestCase{
				Input:          tc.Input,
				ExpectedOutput: tc.ExpectedOutput,
				Hidden:         tc.Hidden,
			})
		}
		problem.TotalTests = len(problem.TestCases)
		return GenerateResult{Problem: problem, Source: source}, nil
	}

	var q questionPayload
	if _, err := decodeInto(text, &q); err != nil {
		return GenerateResult{}, err
	}
	category := req.Category
	if category == "" {
		category = q.Category
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = q.Difficulty
	}
	return GenerateResult{
		Question: &domain.Question{
			ID:             uuid.NewString(),
			Category:       category,
			Difficulty:     difficulty,
			Text:           q.Question,
			ExpectedPoints: q.ExpectedPoints,
			Source:         source,
			CreatedAt:      now,
		},
		Source: source,
	}, nil
}

func (r *Router) fromBank(req GenerateRequest) GenerateResult {
	now := r.now()
	if req.Kind == GenerateCodingProblem {
		p := bank.Problem(req.Difficulty, req.ItemNumber)
		p.ID = uuid.NewString()
		p.Status = domain.ProblemPending
		p.TotalTests = len(p.TestCases)
		p.CreatedAt = now
		return GenerateResult{Problem: &p, Source: domain.SourceBank}
	}

	roundType := domain.RoundTechnical
	if req.Kind == GenerateHRQuestion {
		roundType = domain.RoundHR
	}
	q := bank.Question(roundType, req.Category, req.Difficulty, req.ItemNumber)
	q.ID = uuid.NewString()
	q.CreatedAt = now
	return GenerateResult{Question: &q, Source: domain.SourceBank}
}

// Evaluate scores an answer or reviews a submission. It never fails: when
// every provider is unavailable it returns a pending, neutral result.
func (r *Router) Evaluate(ctx context.Context, req EvaluateRequest) EvaluateResult {
	op := string(req.Kind)
	key := cache.Key(op, req.params())

	if raw, ok := r.cache.Get(ctx, op, key); ok {
		if res, err := r.buildEvaluated(req, string(raw), string(domain.SourceCache)); err == nil {
			r.log.Debug("Cache hit", "operation", op)
			metrics.FallbackServedTotal.WithLabelValues(op, string(domain.SourceCache)).Inc()
			return res
		}
	}

	var (
		result     EvaluateResult
		normalized []byte
	)
	att := r.complete(ctx, op, evaluatePrompt(req), func(text string) error {
		var err error
		if req.Kind == EvaluateCodeReview {
			normalized, err = decodeInto(text, &reviewPayload{})
		} else {
			normalized, err = decodeInto(text, &evaluationPayload{})
		}
		if err != nil {
			return err
		}
		result, err = r.buildEvaluated(req, string(normalized), "")
		return err
	})

	if att.ok {
		result.stamp(att.source)
		r.cache.Set(ctx, op, key, normalized, true)
		metrics.FallbackServedTotal.WithLabelValues(op, att.source).Inc()
		return result
	}

	r.log.Warn("All providers failed, evaluation pending", "operation", op)
	metrics.FallbackServedTotal.WithLabelValues(op, string(domain.SourcePending)).Inc()
	result = r.pending(req)
	result.QuotaExhausted = att.quotaExhausted()
	return result
}

func (res *EvaluateResult) stamp(source string) {
	res.Source = source
	if res.Evaluation != nil {
		res.Evaluation.Provider = source
	}
	if res.Review != nil {
		res.Review.Provider = source
	}
}

func (r *Router) buildEvaluated(req EvaluateRequest, text, source string) (EvaluateResult, error) {
	if req.Kind == EvaluateCodeReview {
		var p reviewPayload
		if _, err := decodeInto(text, &p); err != nil {
			return EvaluateResult{}, err
		}
		return EvaluateResult{
			Review: &domain.CodeReview{
				Correctness: p.Correctness,
				Efficiency:  p.Efficiency,
				Readability: p.Readability,
				EdgeCases:   p.EdgeCases,
				Feedback:    p.Feedback,
				Provider:    source,
			},
			Source: source,
		}, nil
	}

	var p evaluationPayload
	if _, err := decodeInto(text, &p); err != nil {
		return EvaluateResult{}, err
	}
	return EvaluateResult{
		Evaluation: &domain.Evaluation{
			Score:            p.Score,
			Strengths:        p.Strengths,
			Weaknesses:       p.Weaknesses,
			Feedback:         p.Feedback,
			FollowUpQuestion: p.FollowUpQuestion,
			Communication:    p.Communication,
			Attitude:         p.Attitude,
			Provider:         source,
			EvaluatedAt:      r.now(),
		},
		Source: source,
	}, nil
}

func (r *Router) pending(req EvaluateRequest) EvaluateResult {
	const feedback = "Evaluation pending: no model provider is currently available."
	src := string(domain.SourcePending)
	if req.Kind == EvaluateCodeReview {
		return EvaluateResult{
			Review: &domain.CodeReview{
				Correctness: PendingScore,
				Efficiency:  PendingScore,
				Readability: PendingScore,
				EdgeCases:   PendingScore,
				Feedback:    feedback,
				IsPending:   true,
				Provider:    src,
			},
			Source:  src,
			Pending: true,
		}
	}
	return EvaluateResult{
		Evaluation: &domain.Evaluation{
			Score:       PendingScore,
			Feedback:    feedback,
			IsPending:   true,
			Provider:    src,
			EvaluatedAt: r.now(),
		},
		Source:  src,
		Pending: true,
	}
}
