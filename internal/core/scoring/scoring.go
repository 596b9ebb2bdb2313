// Package scoring turns per-item evaluations into round scores, the overall
// interview score and a hiring recommendation. Every function is pure.
package scoring

import (
	"math"

	"github.com/vietddude/interviewer/internal/core/domain"
)

// CategoryWeights are the relative weights of technical categories.
// Weights are renormalized over the categories actually covered by a round.
var CategoryWeights = map[string]float64{
	domain.CategoryCoreKnowledge: 25,
	domain.CategoryAlgorithms:    30,
	domain.CategorySystemDesign:  25,
	domain.CategoryFramework:     10,
	domain.CategoryProject:       10,
}

// defaultCategoryWeight applies to categories outside CategoryWeights.
const defaultCategoryWeight = 10

// Round weights of the overall score.
const (
	TechnicalWeight = 0.40
	HRWeight        = 0.25
	CodingWeight    = 0.35
)

// Code quality facet weights.
const (
	CorrectnessWeight = 0.35
	EfficiencyWeight  = 0.30
	ReadabilityWeight = 0.20
	EdgeCasesWeight   = 0.15
)

// FollowUpThreshold is the item score below which a follow-up may be asked.
const FollowUpThreshold = 7

// TechnicalResult is the technical round aggregate on a 0-100 scale.
type TechnicalResult struct {
	Score      float64
	Categories map[string]float64
}

// Technical averages evaluated questions per category and combines the
// category means with renormalized weights. Pending evaluations are ignored.
func Technical(questions []*domain.Question) TechnicalResult {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, q := range questions {
		if !q.Evaluated() {
			continue
		}
		sums[q.Category] += q.Evaluation.Score
		counts[q.Category]++
	}

	res := TechnicalResult{Categories: make(map[string]float64, len(sums))}
	var weighted, totalWeight float64
	for cat, sum := range sums {
		mean := sum / float64(counts[cat])
		res.Categories[cat] = round2(mean * 10)

		w, ok := CategoryWeights[cat]
		if !ok {
			w = defaultCategoryWeight
		}
		weighted += mean * w
		totalWeight += w
	}
	if totalWeight > 0 {
		res.Score = round2(weighted / totalWeight * 10)
	}
	return res
}

// HRResult is the HR round aggregate on a 0-100 scale.
type HRResult struct {
	Score         float64
	Communication float64
	Attitude      float64
	CultureFit    float64
}

// HR computes the HR score as the mean item score, the communication and
// attitude facets from the evaluations, and culture fit from culture and
// behavioral items only.
func HR(questions []*domain.Question) HRResult {
	var all, comm, att, culture []float64
	for _, q := range questions {
		if !q.Evaluated() {
			continue
		}
		e := q.Evaluation
		all = append(all, e.Score)
		comm = append(comm, facetOr(e.Communication, e.Score))
		att = append(att, facetOr(e.Attitude, e.Score))
		if q.Category == domain.CategoryCulture || q.Category == domain.CategoryBehavioral {
			culture = append(culture, e.Score)
		}
	}
	return HRResult{
		Score:         round2(mean(all) * 10),
		Communication: round2(mean(comm) * 10),
		Attitude:      round2(mean(att) * 10),
		CultureFit:    round2(mean(culture) * 10),
	}
}

// CodeQuality combines the review facets into a 0-10 quality score.
func CodeQuality(correctness, efficiency, readability, edgeCases float64) float64 {
	return round2(correctness*CorrectnessWeight +
		efficiency*EfficiencyWeight +
		readability*ReadabilityWeight +
		edgeCases*EdgeCasesWeight)
}

// PassRate returns the percentage of passed tests, 0 when there are none.
func PassRate(passed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round2(float64(passed) / float64(total) * 100)
}

// CodingFinal blends the test pass rate (0-100) with quality (0-10) evenly.
func CodingFinal(passRate, quality float64) float64 {
	return round2(passRate*0.5 + quality*10*0.5)
}

// Coding averages the final scores of reviewed problems.
func Coding(problems []*domain.Problem) float64 {
	scores := make([]float64, 0, len(problems))
	for _, p := range problems {
		if !p.Evaluated() {
			continue
		}
		scores = append(scores, p.FinalScore)
	}
	return round2(mean(scores))
}

// Overall combines the three round scores.
func Overall(technical, hr, coding float64) float64 {
	return round2(technical*TechnicalWeight + hr*HRWeight + coding*CodingWeight)
}

// Decision is a hiring recommendation band.
type Decision struct {
	Decision    domain.HiringDecision
	Probability float64
	Readiness   string
}

// Decide maps an overall score to its recommendation band.
func Decide(overall float64) Decision {
	switch {
	case overall >= 85:
		return Decision{domain.DecisionStrongHire, 0.9, "Ready to start immediately"}
	case overall >= 70:
		return Decision{domain.DecisionHire, 0.75, "Ready with standard onboarding"}
	case overall >= 55:
		return Decision{domain.DecisionConsider, 0.5, "Needs further assessment"}
	default:
		return Decision{domain.DecisionReject, 0.2, "Not ready for this role"}
	}
}

// ShouldFollowUp reports whether an item scored score may get its follow-up.
func ShouldFollowUp(score float64, hasFollowUp bool) bool {
	return score < FollowUpThreshold && !hasFollowUp
}

// Progress is the answered/total summary of a round.
type Progress struct {
	Answered   int  `json:"answered"`
	Total      int  `json:"total"`
	Remaining  int  `json:"remaining"`
	Percent    int  `json:"percent"`
	IsComplete bool `json:"is_complete"`
}

// NewProgress builds a Progress from the answered and total counts.
func NewProgress(answered, total int) Progress {
	p := Progress{
		Answered:  answered,
		Total:     total,
		Remaining: max(total-answered, 0),
	}
	if total > 0 {
		p.Percent = int(math.Round(float64(answered) / float64(total) * 100))
		p.IsComplete = answered >= total
	}
	return p
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func facetOr(facet, fallback float64) float64 {
	if facet > 0 {
		return facet
	}
	return fallback
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
