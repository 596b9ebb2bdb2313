package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/interviewer/internal/core/domain"
)

func newTestClient(url string) *Client {
	return NewClient(Config{URL: url, Timeout: 2 * time.Second, PollInterval: 10 * time.Millisecond})
}

func TestClient_ExecuteTestCases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/submissions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("wait") != "true" || r.URL.Query().Get("base64_encoded") != "false" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}

		var req submissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if req.LanguageID != 60 {
			t.Errorf("expected go language id 60, got %d", req.LanguageID)
		}

		// Echo stdin; accepted only when it matches the expectation.
		statusID := StatusAccepted
		if req.Stdin != req.ExpectedOutput {
			statusID = 4
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stdout": req.Stdin,
			"time":   "0.012",
			"memory": 2048,
			"status": map[string]any{"id": statusID, "description": Describe(statusID)},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	results := c.ExecuteTestCases(context.Background(), "package main", "Go", []domain.TestCase{
		{Input: "1", ExpectedOutput: "1"},
		{Input: "2", ExpectedOutput: "3"},
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Passed || results[0].Verdict != domain.VerdictAccepted {
		t.Errorf("first case: expected accepted, got %+v", results[0])
	}
	if results[0].Time != 0.012 || results[0].Memory != 2048 {
		t.Errorf("first case: unexpected time/memory %v/%d", results[0].Time, results[0].Memory)
	}
	if results[1].Passed || results[1].Verdict != domain.VerdictWrongAnswer {
		t.Errorf("second case: expected wrong answer, got %+v", results[1])
	}
	if results[1].ActualOutput != "2" {
		t.Errorf("second case: expected actual output 2, got %q", results[1].ActualOutput)
	}
}

func TestClient_PollsQueuedSubmission(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"token":  "abc",
				"status": map[string]any{"id": StatusInQueue},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/submissions/abc":
			statusID := StatusProcessing
			if polls.Add(1) >= 2 {
				statusID = 6
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"compile_output": "syntax error",
				"status":         map[string]any{"id": statusID},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	res := c.Run(context.Background(), "def", LanguageID("python"), domain.TestCase{Input: "x", ExpectedOutput: "y"})

	if res.Verdict != domain.VerdictCompilationError {
		t.Errorf("expected compilation error, got %s", res.Verdict)
	}
	if res.Error != "syntax error" {
		t.Errorf("expected compile output as error, got %q", res.Error)
	}
	if polls.Load() != 2 {
		t.Errorf("expected 2 polls, got %d", polls.Load())
	}
}

func TestClient_NetworkFailureDegradesToOther(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(url)
	results := c.ExecuteTestCases(context.Background(), "print(1)", "python", []domain.TestCase{{Input: "", ExpectedOutput: "1"}})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Passed || results[0].Verdict != domain.VerdictOther {
		t.Errorf("expected failed Other verdict, got %+v", results[0])
	}
	if results[0].Error == "" {
		t.Error("expected error text")
	}
}

func TestClient_ServerErrorDegradesToOther(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	res := newTestClient(server.URL).Run(context.Background(), "x", DefaultLanguageID, domain.TestCase{})
	if res.Verdict != domain.VerdictOther || !strings.Contains(res.Error, "503") {
		t.Errorf("expected Other with status text, got %+v", res)
	}
}

func TestClient_SendsRapidAPIHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-RapidAPI-Key") != "secret" || r.Header.Get("X-RapidAPI-Host") != "judge.example" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(Config{URL: server.URL + "/", APIKey: "secret", Host: "judge.example"})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestVerdictFor(t *testing.T) {
	tests := []struct {
		id     int
		expect domain.Verdict
	}{
		{3, domain.VerdictAccepted},
		{4, domain.VerdictWrongAnswer},
		{5, domain.VerdictTimeLimitExceeded},
		{6, domain.VerdictCompilationError},
		{7, domain.VerdictRuntimeError},
		{11, domain.VerdictRuntimeError},
		{12, domain.VerdictRuntimeError},
		{13, domain.VerdictOther},
		{14, domain.VerdictOther},
		{99, domain.VerdictOther},
	}
	for _, tt := range tests {
		if got := VerdictFor(tt.id); got != tt.expect {
			t.Errorf("VerdictFor(%d) = %s, want %s", tt.id, got, tt.expect)
		}
	}
	if len(statuses) != 14 {
		t.Errorf("expected 14 statuses, got %d", len(statuses))
	}
}

func TestLanguageID(t *testing.T) {
	tests := map[string]int{
		"python":     71,
		" Python3 ":  71,
		"javascript": 63,
		"cpp":        54,
		"go":         60,
		"brainfuck":  DefaultLanguageID,
		"":           DefaultLanguageID,
	}
	for lang, want := range tests {
		if got := LanguageID(lang); got != want {
			t.Errorf("LanguageID(%q) = %d, want %d", lang, got, want)
		}
	}
}
