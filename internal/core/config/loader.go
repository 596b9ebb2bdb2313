package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/infra/ai/cache"
	"github.com/vietddude/interviewer/internal/infra/queue"
	"github.com/vietddude/interviewer/internal/pipeline/round"
)

// Default queue sizing. Evaluation queues share the provider budget, code
// execution is bounded by the judge.
var defaultQueues = map[domain.JobKind]QueueConfig{
	domain.JobAnswerEvaluation: {Concurrency: 50, MaxJobs: 100, Window: time.Minute},
	domain.JobHREvaluation:     {Concurrency: 50, MaxJobs: 100, Window: time.Minute},
	domain.JobItemGeneration:   {Concurrency: 5},
	domain.JobCodeExecution:    {Concurrency: 10},
}

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) error {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Providers.CallTimeout == 0 {
		cfg.Providers.CallTimeout = 30 * time.Second
	}

	defCache := cache.DefaultConfig()
	if cfg.Cache.EvaluationTTL == 0 {
		cfg.Cache.EvaluationTTL = defCache.EvaluationTTL
	}
	if cfg.Cache.GenerationTTL == 0 {
		cfg.Cache.GenerationTTL = defCache.GenerationTTL
	}

	defRetention := queue.DefaultRetention()
	if cfg.Retention.Completed == 0 {
		cfg.Retention.Completed = defRetention.Completed
	}
	if cfg.Retention.Failed == 0 {
		cfg.Retention.Failed = defRetention.Failed
	}

	if cfg.Rounds.Prefetch == 0 {
		cfg.Rounds.Prefetch = round.DefaultConfig().Prefetch
	}

	if cfg.Queues == nil {
		cfg.Queues = make(map[string]QueueConfig)
	}
	for name := range cfg.Queues {
		if !domain.JobKind(name).Valid() {
			return fmt.Errorf("unknown queue %q", name)
		}
	}
	for kind, def := range defaultQueues {
		q := cfg.Queues[string(kind)]
		if q.Concurrency == 0 {
			q.Concurrency = def.Concurrency
		}
		if q.MaxJobs == 0 && q.Window == 0 {
			q.MaxJobs, q.Window = def.MaxJobs, def.Window
		}
		cfg.Queues[string(kind)] = q
	}
	return nil
}
