package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vietddude/interviewer/internal/core/domain"
)

func TestQuestion_DeterministicByNumber(t *testing.T) {
	size := Size(domain.RoundTechnical, domain.CategoryAlgorithms)
	a := Question(domain.RoundTechnical, domain.CategoryAlgorithms, "medium", 1)
	b := Question(domain.RoundTechnical, domain.CategoryAlgorithms, "medium", 1+size)
	c := Question(domain.RoundTechnical, domain.CategoryAlgorithms, "medium", 2)

	assert.Equal(t, a.Text, b.Text, "item number wraps modulo bank size")
	assert.NotEqual(t, a.Text, c.Text)
	assert.Equal(t, domain.SourceBank, a.Source)
	assert.Equal(t, "medium", a.Difficulty)
}

func TestQuestion_UnknownCategory(t *testing.T) {
	q := Question(domain.RoundHR, "astrology", "easy", 0)
	assert.NotEmpty(t, q.Text)
	assert.Equal(t, domain.CategoryCommunication, q.Category)

	q = Question(domain.RoundTechnical, "astrology", "easy", 0)
	assert.Equal(t, domain.CategoryCoreKnowledge, q.Category)
}

func TestProblem(t *testing.T) {
	p := Problem("hard", 0)
	assert.Equal(t, "hard", p.Difficulty)
	assert.NotEmpty(t, p.TestCases)

	p.TestCases[0].Input = "mutated"
	again := Problem("hard", 0)
	assert.NotEqual(t, "mutated", again.TestCases[0].Input, "bank entries must not be shared")

	unknown := Problem("impossible", 3)
	assert.Equal(t, "medium", unknown.Difficulty)
}
