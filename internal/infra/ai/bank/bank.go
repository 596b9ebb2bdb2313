// Package bank holds the static questions and problems served when every
// model provider is unavailable.
package bank

import (
	"github.com/vietddude/interviewer/internal/core/domain"
)

type question struct {
	text   string
	points []string
}

var technical = map[string][]question{
	domain.CategoryCoreKnowledge: {
		{"Explain the difference between a process and a thread, and when you would choose one over the other.",
			[]string{"memory isolation", "scheduling cost", "shared state hazards"}},
		{"What happens between typing a URL into a browser and the page rendering?",
			[]string{"DNS resolution", "TCP/TLS handshake", "HTTP request/response", "rendering pipeline"}},
		{"How does garbage collection work in a language you use daily, and what are its trade-offs?",
			[]string{"allocation", "mark/sweep or generational", "pause times"}},
	},
	domain.CategoryAlgorithms: {
		{"How would you detect a cycle in a linked list? Give the time and space complexity.",
			[]string{"two pointers", "O(n) time", "O(1) space"}},
		{"Describe how you would find the k most frequent elements in a large array.",
			[]string{"hash map counting", "heap of size k", "O(n log k)"}},
		{"Explain when dynamic programming applies and walk through an example.",
			[]string{"overlapping subproblems", "optimal substructure", "memoization vs tabulation"}},
	},
	domain.CategorySystemDesign: {
		{"Design a URL shortener that handles 10,000 writes per second.",
			[]string{"id generation", "storage choice", "caching", "redirect latency"}},
		{"How would you design a rate limiter shared by many API servers?",
			[]string{"shared store", "sliding window or token bucket", "failure mode"}},
		{"Design a notification service that sends email, SMS and push messages.",
			[]string{"queueing", "retries", "provider fallback", "user preferences"}},
	},
	domain.CategoryFramework: {
		{"How does your preferred web framework handle request lifecycles and middleware?",
			[]string{"middleware chain", "context propagation", "error handling"}},
		{"What strategies do you use to manage database migrations in production?",
			[]string{"versioned migrations", "backward compatibility", "rollback plan"}},
	},
	domain.CategoryProject: {
		{"Describe the most technically challenging project you have worked on and your role in it.",
			[]string{"problem context", "personal contribution", "outcome"}},
		{"Tell me about a production incident you helped resolve. What did you change afterwards?",
			[]string{"diagnosis", "mitigation", "follow-up actions"}},
	},
}

var hr = map[string][]question{
	domain.CategoryCommunication: {
		{"Tell me about a time you had to explain a complex technical topic to a non-technical audience.", nil},
		{"How do you handle disagreements about a technical decision with a teammate?", nil},
	},
	domain.CategoryCulture: {
		{"What kind of team environment helps you do your best work?", nil},
		{"Describe a company value you have seen in practice and how it affected your work.", nil},
	},
	domain.CategoryBehavioral: {
		{"Tell me about a time you missed a deadline. What happened and what did you learn?", nil},
		{"Describe a situation where you had to make a decision with incomplete information.", nil},
	},
	domain.CategoryMotivation: {
		{"Why are you interested in this role, and where do you see yourself in three years?", nil},
	},
	domain.CategoryTeamwork: {
		{"Give an example of how you helped a struggling teammate.", nil},
	},
}

var technicalOrder = []string{
	domain.CategoryCoreKnowledge,
	domain.CategoryAlgorithms,
	domain.CategorySystemDesign,
	domain.CategoryFramework,
	domain.CategoryProject,
}

var hrOrder = []string{
	domain.CategoryCommunication,
	domain.CategoryCulture,
	domain.CategoryBehavioral,
	domain.CategoryMotivation,
	domain.CategoryTeamwork,
}

var problems = map[string][]domain.Problem{
	"easy": {
		{
			Title:       "Sum of Two Numbers",
			Description: "Read two integers a and b from standard input on one line and print their sum.",
			TestCases: []domain.TestCase{
				{Input: "1 2", ExpectedOutput: "3"},
				{Input: "-5 5", ExpectedOutput: "0"},
				{Input: "1000000 2000000", ExpectedOutput: "3000000", Hidden: true},
			},
		},
		{
			Title:       "Reverse a String",
			Description: "Read a single line from standard input and print it reversed.",
			TestCases: []domain.TestCase{
				{Input: "hello", ExpectedOutput: "olleh"},
				{Input: "a", ExpectedOutput: "a"},
				{Input: "racecar", ExpectedOutput: "racecar", Hidden: true},
			},
		},
	},
	"medium": {
		{
			Title:       "Valid Parentheses",
			Description: "Read a string of brackets ()[]{} and print true if every bracket is closed in the correct order, otherwise false.",
			TestCases: []domain.TestCase{
				{Input: "()[]{}", ExpectedOutput: "true"},
				{Input: "([)]", ExpectedOutput: "false"},
				{Input: "{[()()]}", ExpectedOutput: "true", Hidden: true},
			},
		},
		{
			Title:       "Longest Substring Without Repeating Characters",
			Description: "Read a string and print the length of the longest substring without repeating characters.",
			TestCases: []domain.TestCase{
				{Input: "abcabcbb", ExpectedOutput: "3"},
				{Input: "bbbbb", ExpectedOutput: "1"},
				{Input: "pwwkew", ExpectedOutput: "3", Hidden: true},
			},
		},
	},
	"hard": {
		{
			Title:       "Median of a Stream",
			Description: "The first line holds n, the second n integers. After reading each integer print the running median rounded down, separated by spaces.",
			TestCases: []domain.TestCase{
				{Input: "3\n1 2 3", ExpectedOutput: "1 1 2"},
				{Input: "4\n5 15 1 3", ExpectedOutput: "5 10 5 4"},
			},
		},
		{
			Title:       "Minimum Window Substring",
			Description: "Read strings s and t on separate lines and print the shortest substring of s containing every character of t, or an empty line if none exists.",
			TestCases: []domain.TestCase{
				{Input: "ADOBECODEBANC\nABC", ExpectedOutput: "BANC"},
				{Input: "a\na", ExpectedOutput: "a"},
			},
		},
	},
}

// Size returns the number of entries for a category of a round type.
func Size(roundType domain.RoundType, category string) int {
	return len(pool(roundType, category))
}

func pool(roundType domain.RoundType, category string) []question {
	src, order := technical, technicalOrder
	if roundType == domain.RoundHR {
		src, order = hr, hrOrder
	}
	if qs, ok := src[category]; ok {
		return qs
	}
	return src[order[0]]
}

// Question returns the bank question for (category, n mod size). Unknown
// categories fall back to the first category of the round type.
func Question(roundType domain.RoundType, category, difficulty string, n int) domain.Question {
	qs := pool(roundType, category)
	q := qs[mod(n, len(qs))]
	if _, ok := technical[category]; !ok && roundType != domain.RoundHR {
		category = technicalOrder[0]
	}
	if _, ok := hr[category]; !ok && roundType == domain.RoundHR {
		category = hrOrder[0]
	}
	return domain.Question{
		Category:       category,
		Difficulty:     difficulty,
		Text:           q.text,
		ExpectedPoints: append([]string(nil), q.points...),
		Source:         domain.SourceBank,
	}
}

// Problem returns the bank problem for (difficulty, n mod size).
func Problem(difficulty string, n int) domain.Problem {
	ps, ok := problems[difficulty]
	if !ok {
		difficulty = "medium"
		ps = problems[difficulty]
	}
	p := ps[mod(n, len(ps))]
	p.Difficulty = difficulty
	p.Source = domain.SourceBank
	p.TestCases = append([]domain.TestCase(nil), p.TestCases...)
	return p
}

// Categories returns the default category rotation for a round type.
func Categories(roundType domain.RoundType) []string {
	if roundType == domain.RoundHR {
		return append([]string(nil), hrOrder...)
	}
	return append([]string(nil), technicalOrder...)
}

func mod(n, size int) int {
	return ((n % size) + size) % size
}
