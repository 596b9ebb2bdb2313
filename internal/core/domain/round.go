package domain

import (
	"slices"
	"time"
)

// RoundType identifies the kind of round.
type RoundType string

const (
	RoundTechnical RoundType = "technical"
	RoundHR        RoundType = "hr"
	RoundCoding    RoundType = "coding"
)

// RoundStatus is the state of a round's state machine.
type RoundStatus string

const (
	RoundNotStarted RoundStatus = "not_started"
	RoundInProgress RoundStatus = "in_progress"
	RoundEvaluating RoundStatus = "evaluating"
	RoundCompleted  RoundStatus = "completed"
)

// ValidTransitions defines allowed round status transitions.
// Only coding rounds pass through RoundEvaluating.
var ValidTransitions = map[RoundStatus][]RoundStatus{
	RoundNotStarted: {RoundInProgress},
	RoundInProgress: {RoundEvaluating, RoundCompleted},
	RoundEvaluating: {RoundInProgress, RoundCompleted},
}

// CanTransition reports whether a round may move from one status to another.
func CanTransition(from, to RoundStatus) bool {
	return slices.Contains(ValidTransitions[from], to)
}

// Round is one stage of an interview together with its items.
type Round struct {
	ID          string      `json:"id"`
	InterviewID string      `json:"interview_id"`
	Type        RoundType   `json:"type"`
	Status      RoundStatus `json:"status"`
	Options     Options     `json:"options"`

	// Questions holds the items of technical and HR rounds, Problems those of
	// coding rounds. Items are only ever appended.
	Questions []*Question `json:"questions,omitempty"`
	Problems  []*Problem  `json:"problems,omitempty"`

	AnsweredCount int `json:"answered_count"`
	TotalCount    int `json:"total_count"`

	// Coding cursor.
	CurrentProblemIndex int  `json:"current_problem_index"`
	SolvedProblems      int  `json:"solved_problems"`
	Adaptive            bool `json:"adaptive"`
	Expanded            bool `json:"expanded"`

	Score     float64   `json:"score"`
	SubScores SubScores `json:"sub_scores"`

	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubScores carries per-facet aggregates of a round.
type SubScores struct {
	Categories    map[string]float64 `json:"categories,omitempty"`
	Communication float64            `json:"communication,omitempty"`
	Attitude      float64            `json:"attitude,omitempty"`
	CultureFit    float64            `json:"culture_fit,omitempty"`
}

// Transition moves the round to status if the state machine allows it.
func (r *Round) Transition(to RoundStatus) error {
	if !CanTransition(r.Status, to) {
		return &TransitionError{From: r.Status, To: to}
	}
	r.Status = to
	return nil
}

// Question returns the question with the given id.
func (r *Round) Question(id string) *Question {
	for _, q := range r.Questions {
		if q.ID == id {
			return q
		}
	}
	return nil
}

// Problem returns the problem with the given id and its index.
func (r *Round) Problem(id string) (*Problem, int) {
	for i, p := range r.Problems {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// CurrentQuestion returns the first unanswered question, nil if none.
func (r *Round) CurrentQuestion() *Question {
	for _, q := range r.Questions {
		if !q.Answered() {
			return q
		}
	}
	return nil
}

// CurrentProblem returns the problem under the coding cursor, nil past the end.
func (r *Round) CurrentProblem() *Problem {
	if r.CurrentProblemIndex < 0 || r.CurrentProblemIndex >= len(r.Problems) {
		return nil
	}
	return r.Problems[r.CurrentProblemIndex]
}

// Unevaluated returns the ids of answered or submitted items that have no
// real evaluation yet, pending markers included.
func (r *Round) Unevaluated() []string {
	var ids []string
	for _, q := range r.Questions {
		if q.Answered() && !q.Evaluated() {
			ids = append(ids, q.ID)
		}
	}
	for _, p := range r.Problems {
		if p.Submission != nil && !p.Evaluated() {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// NextSequence returns the sequence number for the next appended item.
func (r *Round) NextSequence() int {
	return len(r.Questions) + len(r.Problems) + 1
}

// Complete marks the round completed at now and records its duration.
func (r *Round) Complete(now time.Time) error {
	if err := r.Transition(RoundCompleted); err != nil {
		return err
	}
	r.CompletedAt = &now
	if r.StartedAt != nil {
		r.DurationMinutes = int(now.Sub(*r.StartedAt).Minutes())
	}
	return nil
}
