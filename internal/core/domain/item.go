package domain

import "time"

// ItemSource records where generated content came from.
type ItemSource string

const (
	SourceCache   ItemSource = "cache"
	SourceBank    ItemSource = "bank"
	SourcePending ItemSource = "pending"
)

// Technical question categories.
const (
	CategoryCoreKnowledge = "core_knowledge"
	CategoryAlgorithms    = "algorithms"
	CategorySystemDesign  = "system_design"
	CategoryFramework     = "framework"
	CategoryProject       = "project"
)

// HR question categories.
const (
	CategoryCommunication = "communication"
	CategoryCulture       = "culture"
	CategoryBehavioral    = "behavioral"
	CategoryMotivation    = "motivation"
	CategoryTeamwork      = "teamwork"
)

// Question is an item of a technical or HR round.
type Question struct {
	ID             string      `json:"id"`
	Sequence       int         `json:"sequence"`
	Category       string      `json:"category"`
	Difficulty     string      `json:"difficulty"`
	Text           string      `json:"text"`
	ExpectedPoints []string    `json:"expected_points,omitempty"`
	Source         ItemSource  `json:"source"`
	UserAnswer     *string     `json:"user_answer,omitempty"`
	AnsweredAt     *time.Time  `json:"answered_at,omitempty"`
	Evaluation     *Evaluation `json:"evaluation,omitempty"`
	FollowUp       *FollowUp   `json:"follow_up,omitempty"`
	Version        int64       `json:"version"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Answered reports whether the candidate has answered the question.
func (q *Question) Answered() bool {
	return q.UserAnswer != nil
}

// Evaluated reports whether a non-pending evaluation is attached.
func (q *Question) Evaluated() bool {
	return q.Evaluation != nil && !q.Evaluation.IsPending
}

// Evaluation is a model-produced assessment of an answer.
type Evaluation struct {
	Score            float64   `json:"score"`
	Strengths        []string  `json:"strengths,omitempty"`
	Weaknesses       []string  `json:"weaknesses,omitempty"`
	Feedback         string    `json:"feedback"`
	FollowUpQuestion string    `json:"follow_up_question,omitempty"`
	Communication    float64   `json:"communication,omitempty"`
	Attitude         float64   `json:"attitude,omitempty"`
	IsPending        bool      `json:"is_pending"`
	Provider         string    `json:"provider"`
	RequestedAt      time.Time `json:"requested_at"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
}

// Supersedes reports whether e should replace the existing evaluation.
// A pending marker never replaces a real result, and a result requested
// earlier never replaces one requested later.
func (e *Evaluation) Supersedes(existing *Evaluation) bool {
	if existing == nil {
		return true
	}
	if e.IsPending && !existing.IsPending {
		return false
	}
	if !e.IsPending && existing.IsPending {
		return true
	}
	return !e.RequestedAt.Before(existing.RequestedAt)
}

// FollowUp is the single follow-up question an item may receive.
type FollowUp struct {
	Question   string     `json:"question"`
	Answer     *string    `json:"answer,omitempty"`
	AskedAt    time.Time  `json:"asked_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
}

// ProblemStatus is the lifecycle of a single coding problem.
type ProblemStatus string

const (
	ProblemPending   ProblemStatus = "pending"
	ProblemSubmitted ProblemStatus = "submitted"
	ProblemEvaluated ProblemStatus = "evaluated"
)

// Problem is an item of a coding round.
type Problem struct {
	ID           string        `json:"id"`
	Sequence     int           `json:"sequence"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Difficulty   string        `json:"difficulty"`
	TestCases    []TestCase    `json:"test_cases"`
	Source       ItemSource    `json:"source"`
	IsAdaptive   bool          `json:"is_adaptive"`
	Status       ProblemStatus `json:"status"`
	Submission   *Submission   `json:"submission,omitempty"`
	TestResults  []TestResult  `json:"test_results,omitempty"`
	Review       *CodeReview   `json:"review,omitempty"`
	PassedTests  int           `json:"passed_tests"`
	TotalTests   int           `json:"total_tests"`
	TestPassRate float64       `json:"test_pass_rate"`
	FinalScore   float64       `json:"final_score"`
	Version      int64         `json:"version"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Evaluated reports whether the submission was executed and reviewed by a model.
func (p *Problem) Evaluated() bool {
	return p.Status == ProblemEvaluated && p.Review != nil && !p.Review.IsPending
}

// Submission is the candidate's code for a problem.
type Submission struct {
	Code        string    `json:"code"`
	Language    string    `json:"language"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// TestCase is one input/expected-output pair.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Hidden         bool   `json:"hidden,omitempty"`
}

// Verdict is the normalized outcome of running one test case.
type Verdict string

const (
	VerdictAccepted          Verdict = "Accepted"
	VerdictWrongAnswer       Verdict = "WrongAnswer"
	VerdictTimeLimitExceeded Verdict = "TimeLimitExceeded"
	VerdictRuntimeError      Verdict = "RuntimeError"
	VerdictCompilationError  Verdict = "CompilationError"
	VerdictOther             Verdict = "Other"
)

// TestResult is the outcome of one test case.
type TestResult struct {
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expected_output"`
	ActualOutput   string  `json:"actual_output"`
	Passed         bool    `json:"passed"`
	Verdict        Verdict `json:"verdict"`
	Time           float64 `json:"time"`
	Memory         int     `json:"memory"`
	Error          string  `json:"error,omitempty"`
}

// CodeReview is the model-produced quality review of a submission.
type CodeReview struct {
	Correctness  float64   `json:"correctness"`
	Efficiency   float64   `json:"efficiency"`
	Readability  float64   `json:"readability"`
	EdgeCases    float64   `json:"edge_cases"`
	QualityScore float64   `json:"quality_score"`
	Feedback     string    `json:"feedback"`
	IsPending    bool      `json:"is_pending"`
	Provider     string    `json:"provider"`
	RequestedAt  time.Time `json:"requested_at"`
}

// Supersedes mirrors Evaluation.Supersedes for code reviews.
func (c *CodeReview) Supersedes(existing *CodeReview) bool {
	if existing == nil {
		return true
	}
	if c.IsPending != existing.IsPending {
		return !c.IsPending
	}
	return !c.RequestedAt.Before(existing.RequestedAt)
}
