package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestGeminiProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("api key not sent")
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "be strict" {
			t.Errorf("system instruction missing: %+v", req.SystemInstruction)
		}

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"score\":"},{"text":"8}"}]}}]}`))
	}))
	defer server.Close()

	p := NewGeminiProvider(Config{BaseURL: server.URL, APIKey: "secret", Model: "gemini-test"})
	out, err := p.Complete(context.Background(), Prompt{System: "be strict", User: "grade this"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if out != `{"score":8}` {
		t.Errorf("unexpected output %q", out)
	}
}

func TestGeminiProvider_QuotaStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	p := NewGeminiProvider(Config{BaseURL: server.URL, Model: "m"})
	_, err := p.Complete(context.Background(), Prompt{User: "x"})

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 StatusError, got %v", err)
	}
	if !IsQuotaError(err) {
		t.Error("429 should classify as quota")
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if req.Model != "llama-test" || len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected request %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"llama-test",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"score\":7}"}}]}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(Config{Name: "groq", BaseURL: server.URL + "/", APIKey: "secret", Model: "llama-test"})
	if p.Name() != "groq" {
		t.Errorf("expected name groq, got %s", p.Name())
	}
	out, err := p.Complete(context.Background(), Prompt{System: "be strict", User: "grade this"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if out != `{"score":7}` {
		t.Errorf("unexpected output %q", out)
	}
}

func TestOpenAIProvider_QuotaStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"tokens","code":"rate_limit_exceeded"}}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(Config{BaseURL: server.URL + "/", APIKey: "k", Model: "m"})
	_, err := p.Complete(context.Background(), Prompt{User: "x"})

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 StatusError, got %v", err)
	}
	if !IsQuotaError(err) {
		t.Error("429 should classify as quota")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected no client-side retries, got %d calls", n)
	}
}

func TestIsQuotaError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&StatusError{StatusCode: 429}, true},
		{errors.New("insufficient_quota: You exceeded your current quota"), true},
		{errors.New("RESOURCE_EXHAUSTED"), true},
		{&StatusError{StatusCode: 500, Body: "internal"}, false},
		{errors.New("context deadline exceeded"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsQuotaError(tt.err); got != tt.want {
			t.Errorf("IsQuotaError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestBaseProvider_CircuitBreaker(t *testing.T) {
	now := time.Unix(0, 0)
	p := NewBaseProvider("test")
	p.now = func() time.Time { return now }

	for range defaultFailureThreshold - 1 {
		p.RecordFailure(errors.New("boom"))
	}
	if !p.IsAvailable() {
		t.Fatal("circuit opened before threshold")
	}

	p.RecordFailure(errors.New("boom"))
	if p.IsAvailable() {
		t.Fatal("circuit should be open after threshold")
	}

	now = now.Add(defaultCooldown)
	if !p.IsAvailable() {
		t.Fatal("circuit should close after cooldown")
	}

	p.RecordSuccess(100 * time.Millisecond)
	h := p.Health()
	if h.Requests != defaultFailureThreshold+1 || h.Failures != defaultFailureThreshold {
		t.Errorf("unexpected counters: %+v", h)
	}
	if !strings.EqualFold(h.Name, "test") || !h.Available {
		t.Errorf("unexpected health: %+v", h)
	}
}
