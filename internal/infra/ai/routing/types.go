package routing

import (
	"fmt"
	"strings"

	"github.com/vietddude/interviewer/internal/core/domain"
)

// GenerateKind identifies what to generate.
type GenerateKind string

const (
	GenerateTechnicalQuestion GenerateKind = "technical_question"
	GenerateHRQuestion        GenerateKind = "hr_question"
	GenerateCodingProblem     GenerateKind = "coding_problem"
)

// EvaluateKind identifies what to evaluate.
type EvaluateKind string

const (
	EvaluateTechnicalAnswer EvaluateKind = "technical_answer"
	EvaluateHRAnswer        EvaluateKind = "hr_answer"
	EvaluateCodeReview      EvaluateKind = "code_review"
)

// GenerateRequest describes one item to generate. Every field is part of
// the cache key, so identical requests share a cached template.
type GenerateRequest struct {
	Kind       GenerateKind
	Category   string
	Difficulty string
	Role       string
	Language   string
	ItemNumber int
}

func (r GenerateRequest) params() map[string]any {
	return map[string]any{
		"category":    r.Category,
		"difficulty":  r.Difficulty,
		"role":        r.Role,
		"language":    r.Language,
		"item_number": r.ItemNumber,
	}
}

// GenerateResult carries the generated item. Exactly one of Question and
// Problem is set, depending on the request kind.
type GenerateResult struct {
	Question *domain.Question
	Problem  *domain.Problem
	Source   domain.ItemSource
	// QuotaExhausted is set when every attempted provider failed on quota.
	QuotaExhausted bool
}

// EvaluateRequest describes one answer or submission to evaluate.
type EvaluateRequest struct {
	Kind           EvaluateKind
	Category       string
	Question       string
	ExpectedPoints []string
	Answer         string

	// Code review only.
	ProblemTitle       string
	ProblemDescription string
	Code               string
	Language           string
	PassedTests        int
	TotalTests         int
}

func (r EvaluateRequest) params() map[string]any {
	m := map[string]any{
		"category": r.Category,
		"question": r.Question,
		"answer":   r.Answer,
	}
	if r.Kind == EvaluateCodeReview {
		m["problem"] = r.ProblemTitle
		m["language"] = r.Language
		m["passed"] = r.PassedTests
		m["total"] = r.TotalTests
		// Code is hashed verbatim; whitespace can change semantics.
		m["code"] = fmt.Sprintf("%x", []byte(r.Code))
	}
	return m
}

// EvaluateResult carries the evaluation. Evaluation is set for answers,
// Review for code. Pending results are neutral placeholders.
type EvaluateResult struct {
	Evaluation     *domain.Evaluation
	Review         *domain.CodeReview
	Source         string
	Pending        bool
	QuotaExhausted bool
}

type questionPayload struct {
	Question       string   `json:"question"`
	Category       string   `json:"category,omitempty"`
	Difficulty     string   `json:"difficulty,omitempty"`
	ExpectedPoints []string `json:"expected_points,omitempty"`
}

func (p *questionPayload) validate() error {
	if strings.TrimSpace(p.Question) == "" {
		return fmt.Errorf("%w: empty question", ErrMalformedOutput)
	}
	return nil
}

type testCasePayload struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Hidden         bool   `json:"hidden,omitempty"`
}

type problemPayload struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Difficulty  string            `json:"difficulty,omitempty"`
	TestCases   []testCasePayload `json:"test_cases"`
}

func (p *problemPayload) validate() error {
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Description) == "" {
		return fmt.Errorf("%w: problem without title or description", ErrMalformedOutput)
	}
	if len(p.TestCases) == 0 {
		return fmt.Errorf("%w: problem without test cases", ErrMalformedOutput)
	}
	return nil
}

type evaluationPayload struct {
	Score            float64  `json:"score"`
	Strengths        []string `json:"strengths"`
	Weaknesses       []string `json:"weaknesses"`
	Feedback         string   `json:"feedback"`
	FollowUpQuestion string   `json:"follow_up_question"`
	Communication    float64  `json:"communication,omitempty"`
	Attitude         float64  `json:"attitude,omitempty"`
}

func (p *evaluationPayload) validate() error {
	for _, v := range []float64{p.Score, p.Communication, p.Attitude} {
		if v < 0 || v > 10 {
			return fmt.Errorf("%w: score %.2f outside 0-10", ErrMalformedOutput, v)
		}
	}
	return nil
}

type reviewPayload struct {
	Correctness float64 `json:"correctness"`
	Efficiency  float64 `json:"efficiency"`
	Readability float64 `json:"readability"`
	EdgeCases   float64 `json:"edge_cases"`
	Feedback    string  `json:"feedback"`
}

func (p *reviewPayload) validate() error {
	for _, v := range []float64{p.Correctness, p.Efficiency, p.Readability, p.EdgeCases} {
		if v < 0 || v > 10 {
			return fmt.Errorf("%w: facet %.2f outside 0-10", ErrMalformedOutput, v)
		}
	}
	return nil
}
