// Package provider implements generative model backends.
//
// This package contains:
//   - Provider interface: a text completion endpoint
//   - OpenAIProvider: any OpenAI-compatible chat completions API
//   - GeminiProvider: Google Gemini generateContent REST API
//   - BaseProvider: health tracking and circuit breaking shared by both
package provider

import (
	"context"
	"fmt"
	"time"
)

// Prompt is a single completion request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Provider is a model endpoint that turns a prompt into raw text.
type Provider interface {
	// Name returns the provider identifier (e.g., "groq", "gemini")
	Name() string

	// Complete returns the model's raw text output
	Complete(ctx context.Context, p Prompt) (string, error)

	// Health returns current health metrics
	Health() HealthStatus

	// IsAvailable reports whether the circuit is closed
	IsAvailable() bool

	// RecordSuccess and RecordFailure feed the health tracker
	RecordSuccess(latency time.Duration)
	RecordFailure(err error)
}

// Config holds settings for one provider.
type Config struct {
	Kind        string        `yaml:"kind"` // openai, gemini
	Name        string        `yaml:"name"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// New builds the provider described by cfg.
func New(cfg Config) (Provider, error) {
	switch cfg.Kind {
	case "openai", "":
		return NewOpenAIProvider(cfg), nil
	case "gemini":
		return NewGeminiProvider(cfg), nil
	}
	return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Name          string        `json:"name"`
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	Requests      int           `json:"requests"`
	Failures      int           `json:"failures"`
	QuotaHits     int           `json:"quota_hits"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
	OpenUntil     time.Time     `json:"open_until,omitzero"`
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}
