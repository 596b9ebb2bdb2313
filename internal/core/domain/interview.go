package domain

import "time"

// InterviewStatus is the lifecycle position of an interview.
// Statuses are ordered; an interview never moves backwards.
type InterviewStatus string

const (
	InterviewStatusCreated   InterviewStatus = "created"
	InterviewStatusTechnical InterviewStatus = "technical_in_progress"
	InterviewStatusHR        InterviewStatus = "hr_in_progress"
	InterviewStatusCoding    InterviewStatus = "coding_in_progress"
	InterviewStatusCompleted InterviewStatus = "completed"
)

var interviewStatusRank = map[InterviewStatus]int{
	InterviewStatusCreated:   0,
	InterviewStatusTechnical: 1,
	InterviewStatusHR:        2,
	InterviewStatusCoding:    3,
	InterviewStatusCompleted: 4,
}

// Rank returns the position of s in the interview lifecycle, -1 if unknown.
func (s InterviewStatus) Rank() int {
	r, ok := interviewStatusRank[s]
	if !ok {
		return -1
	}
	return r
}

// Interview is the top-level record for one candidate's run through the rounds.
type Interview struct {
	ID               string          `json:"id"`
	CandidateID      string          `json:"candidate_id"`
	Status           InterviewStatus `json:"status"`
	TechnicalRoundID string          `json:"technical_round_id,omitempty"`
	HRRoundID        string          `json:"hr_round_id,omitempty"`
	CodingRoundID    string          `json:"coding_round_id,omitempty"`
	Options          Options         `json:"options"`
	Report           *Report         `json:"report,omitempty"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// Advance moves the interview forward to status. It never moves backwards.
func (i *Interview) Advance(status InterviewStatus) bool {
	if status.Rank() <= i.Status.Rank() {
		return false
	}
	i.Status = status
	return true
}

// RoundID returns the id of the round of type t, empty if not started.
func (i *Interview) RoundID(t RoundType) string {
	switch t {
	case RoundTechnical:
		return i.TechnicalRoundID
	case RoundHR:
		return i.HRRoundID
	case RoundCoding:
		return i.CodingRoundID
	}
	return ""
}

// HiringDecision is the recommendation band derived from the overall score.
type HiringDecision string

const (
	DecisionStrongHire HiringDecision = "Strong Hire"
	DecisionHire       HiringDecision = "Hire"
	DecisionConsider   HiringDecision = "Consider"
	DecisionReject     HiringDecision = "Reject"
)

// Report is the final aggregate for a completed interview.
type Report struct {
	TechnicalScore float64        `json:"technical_score"`
	HRScore        float64        `json:"hr_score"`
	CodingScore    float64        `json:"coding_score"`
	OverallScore   float64        `json:"overall_score"`
	Decision       HiringDecision `json:"decision"`
	Probability    float64        `json:"probability"`
	Readiness      string         `json:"readiness"`
	GeneratedAt    time.Time      `json:"generated_at"`
}
