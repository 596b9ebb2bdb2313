// Package judge runs candidate code against test cases on a
// Judge0-compatible execution service.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/pipeline/metrics"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultDelay        = 500 * time.Millisecond
	defaultPollInterval = time.Second
)

// Config for the execution service.
type Config struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Host    string        `yaml:"host"`
	Delay   time.Duration `yaml:"delay"`
	Timeout time.Duration `yaml:"timeout"`
	// PollInterval is the wait between status polls of a queued submission.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Client submits code and collects verdicts.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a client. Zero durations take defaults.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: slog.Default().With("component", "judge"),
	}
}

type submissionRequest struct {
	LanguageID     int    `json:"language_id"`
	SourceCode     string `json:"source_code"`
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output"`
}

type submissionResponse struct {
	Token         string  `json:"token"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Time          *string `json:"time"`
	Memory        *int    `json:"memory"`
	Status        struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

// ExecuteTestCases runs code against every test case in order. It never
// fails as a whole: a test case that cannot be executed is reported as
// failed with verdict Other and the error text.
func (c *Client) ExecuteTestCases(ctx context.Context, code, language string, cases []domain.TestCase) []domain.TestResult {
	languageID := LanguageID(language)
	if !Supported(language) {
		c.log.Warn("Unknown language, defaulting to Python 3", "language", language)
	}

	results := make([]domain.TestResult, 0, len(cases))
	for i, tc := range cases {
		if i > 0 && c.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.Delay):
			}
		}

		res := c.Run(ctx, code, languageID, tc)
		metrics.JudgeSubmissionsTotal.WithLabelValues(language, string(res.Verdict)).Inc()
		results = append(results, res)
	}
	return results
}

// Run executes a single test case.
func (c *Client) Run(ctx context.Context, code string, languageID int, tc domain.TestCase) domain.TestResult {
	result := domain.TestResult{
		Input:          tc.Input,
		ExpectedOutput: tc.ExpectedOutput,
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.submit(ctx, submissionRequest{
		LanguageID:     languageID,
		SourceCode:     code,
		Stdin:          tc.Input,
		ExpectedOutput: tc.ExpectedOutput,
	})
	if err == nil && pending(resp.Status.ID) {
		resp, err = c.poll(ctx, resp.Token)
	}
	if err != nil {
		c.log.Warn("Test case execution failed", "error", err)
		result.Verdict = domain.VerdictOther
		result.Error = err.Error()
		return result
	}

	result.Verdict = VerdictFor(resp.Status.ID)
	result.Passed = resp.Status.ID == StatusAccepted
	result.ActualOutput = deref(resp.Stdout)
	if resp.Time != nil {
		result.Time, _ = strconv.ParseFloat(*resp.Time, 64)
	}
	if resp.Memory != nil {
		result.Memory = *resp.Memory
	}

	switch result.Verdict {
	case domain.VerdictCompilationError:
		result.Error = deref(resp.CompileOutput)
	case domain.VerdictRuntimeError, domain.VerdictOther:
		result.Error = firstNonEmpty(deref(resp.Stderr), deref(resp.Message), Describe(resp.Status.ID))
	case domain.VerdictTimeLimitExceeded:
		result.Error = Describe(resp.Status.ID)
	}
	return result
}

func (c *Client) submit(ctx context.Context, body submissionRequest) (*submissionResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.URL+"/submissions?base64_encoded=false&wait=true", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp submissionResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	return &resp, nil
}

// poll waits for a queued submission to finish. The request context
// carries the overall ceiling.
func (c *Client) poll(ctx context.Context, token string) (*submissionResponse, error) {
	if token == "" {
		return nil, errors.New("queued submission without token")
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("poll submission %s: %w", token, ctx.Err())
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.cfg.URL+"/submissions/"+token+"?base64_encoded=false", nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		var resp submissionResponse
		if err := c.do(req, &resp); err != nil {
			return nil, fmt.Errorf("poll submission %s: %w", token, err)
		}
		if !pending(resp.Status.ID) {
			return &resp, nil
		}
	}
}

// Ping checks that the service answers.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/about", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.cfg.APIKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.cfg.APIKey)
	}
	if c.cfg.Host != "" {
		req.Header.Set("X-RapidAPI-Host", c.cfg.Host)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
