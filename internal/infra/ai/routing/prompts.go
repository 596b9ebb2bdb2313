package routing

import (
	"fmt"
	"strings"

	"github.com/vietddude/interviewer/internal/infra/ai/provider"
)

const systemPrompt = "You are an experienced technical interviewer. Reply with a single JSON object and nothing else."

func generatePrompt(req GenerateRequest) provider.Prompt {
	role := req.Role
	if role == "" {
		role = "software engineer"
	}

	var user string
	switch req.Kind {
	case GenerateHRQuestion:
		user = fmt.Sprintf(`Write behavioral interview question number %d for a %s candidate.
Focus area: %s.
Respond as {"question": string, "category": string}.`,
			req.ItemNumber, role, req.Category)
	case GenerateCodingProblem:
		user = fmt.Sprintf(`Write coding problem number %d of %s difficulty for a %s candidate.
The program reads standard input and writes standard output.
Respond as {"title": string, "description": string, "difficulty": string,
"test_cases": [{"input": string, "expected_output": string, "hidden": bool}]} with 3 to 5 test cases.`,
			req.ItemNumber, req.Difficulty, role)
	default:
		user = fmt.Sprintf(`Write technical interview question number %d of %s difficulty for a %s candidate.
Category: %s.
Respond as {"question": string, "category": string, "difficulty": string, "expected_points": [string]}.`,
			req.ItemNumber, req.Difficulty, role, req.Category)
	}

	return provider.Prompt{System: systemPrompt, User: user, Temperature: 0.7, MaxTokens: 1024}
}

func evaluatePrompt(req EvaluateRequest) provider.Prompt {
	var user string
	switch req.Kind {
	case EvaluateCodeReview:
		user = fmt.Sprintf(`Review this %s solution to "%s".
Problem: %s
It passed %d of %d tests.

%s

Score each facet from 0 to 10.
Respond as {"correctness": number, "efficiency": number, "readability": number, "edge_cases": number, "feedback": string}.`,
			req.Language, req.ProblemTitle, req.ProblemDescription, req.PassedTests, req.TotalTests, req.Code)
	case EvaluateHRAnswer:
		user = fmt.Sprintf(`Evaluate this behavioral interview answer.
Question (%s): %s
Answer: %s

Score from 0 to 10 overall, and separately for communication and attitude.
If the score is below 7, suggest one follow-up question.
Respond as {"score": number, "communication": number, "attitude": number, "strengths": [string], "weaknesses": [string], "feedback": string, "follow_up_question": string}.`,
			req.Category, req.Question, req.Answer)
	default:
		points := "none given"
		if len(req.ExpectedPoints) > 0 {
			points = strings.Join(req.ExpectedPoints, "; ")
		}
		user = fmt.Sprintf(`Evaluate this technical interview answer.
Question (%s): %s
Expected points: %s
Answer: %s

Score from 0 to 10. If the score is below 7, suggest one follow-up question.
Respond as {"score": number, "strengths": [string], "weaknesses": [string], "feedback": string, "follow_up_question": string}.`,
			req.Category, req.Question, points, req.Answer)
	}

	return provider.Prompt{System: systemPrompt, User: user, Temperature: 0.2, MaxTokens: 1024}
}
