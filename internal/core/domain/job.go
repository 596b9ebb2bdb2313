package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobKind is the closed set of background work the pipeline performs.
type JobKind string

const (
	JobAnswerEvaluation JobKind = "answer-evaluation"
	JobItemGeneration   JobKind = "item-generation"
	JobHREvaluation     JobKind = "hr-evaluation"
	JobCodeExecution    JobKind = "code-execution"
)

// JobKinds lists every kind. Each one runs on its own logical queue.
var JobKinds = []JobKind{
	JobAnswerEvaluation,
	JobItemGeneration,
	JobHREvaluation,
	JobCodeExecution,
}

// Valid reports whether k is a known kind.
func (k JobKind) Valid() bool {
	switch k {
	case JobAnswerEvaluation, JobItemGeneration, JobHREvaluation, JobCodeExecution:
		return true
	}
	return false
}

// JobStatus is the lifecycle position of a job.
type JobStatus string

const (
	JobWaiting   JobStatus = "waiting"
	JobActive    JobStatus = "active"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is a durable unit of background work.
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Kind        JobKind         `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	Backoff     time.Duration   `json:"backoff"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	RunAt       time.Time       `json:"run_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// Payload is implemented by the typed payload of every job kind.
type Payload interface {
	Kind() JobKind
}

// AnswerEvaluationPayload requests evaluation of a technical answer.
type AnswerEvaluationPayload struct {
	RoundID    string `json:"round_id"`
	QuestionID string `json:"question_id"`
}

func (AnswerEvaluationPayload) Kind() JobKind { return JobAnswerEvaluation }

// ItemGenerationPayload requests generation of an upcoming question.
type ItemGenerationPayload struct {
	RoundID        string    `json:"round_id"`
	RoundType      RoundType `json:"round_type"`
	Category       string    `json:"category"`
	Difficulty     string    `json:"difficulty"`
	QuestionNumber int       `json:"question_number"`
}

func (ItemGenerationPayload) Kind() JobKind { return JobItemGeneration }

// HREvaluationPayload requests evaluation of a behavioral answer.
type HREvaluationPayload struct {
	RoundID    string `json:"round_id"`
	QuestionID string `json:"question_id"`
}

func (HREvaluationPayload) Kind() JobKind { return JobHREvaluation }

// CodeExecutionPayload requests test execution and review of a submission.
// Cursor is the round's problem index at enqueue time.
type CodeExecutionPayload struct {
	RoundID   string `json:"round_id"`
	ProblemID string `json:"problem_id"`
	Code      string `json:"code"`
	Language  string `json:"language"`
	Cursor    int    `json:"cursor"`
}

func (CodeExecutionPayload) Kind() JobKind { return JobCodeExecution }

// DecodePayload decodes the job payload into its typed form.
func (j *Job) DecodePayload() (Payload, error) {
	var p Payload
	switch j.Kind {
	case JobAnswerEvaluation:
		p = &AnswerEvaluationPayload{}
	case JobItemGeneration:
		p = &ItemGenerationPayload{}
	case JobHREvaluation:
		p = &HREvaluationPayload{}
	case JobCodeExecution:
		p = &CodeExecutionPayload{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobKind, j.Kind)
	}
	if err := json.Unmarshal(j.Payload, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", j.Kind, err)
	}
	return p, nil
}
