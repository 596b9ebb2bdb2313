package config

import (
	"time"

	"github.com/vietddude/interviewer/internal/infra/ai/cache"
	"github.com/vietddude/interviewer/internal/infra/ai/provider"
	"github.com/vietddude/interviewer/internal/infra/judge"
	"github.com/vietddude/interviewer/internal/infra/queue"
	redisclient "github.com/vietddude/interviewer/internal/infra/redis"
	"github.com/vietddude/interviewer/internal/infra/storage/postgres"
	"github.com/vietddude/interviewer/internal/pipeline/round"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig           `yaml:"server"`
	Admin     AdminConfig            `yaml:"admin"`
	Logging   LoggingConfig          `yaml:"logging"`
	Database  postgres.Config        `yaml:"database"` // empty url = in-memory storage
	Redis     RedisConfig            `yaml:"redis"`    // empty primary url = in-memory store
	Providers ProvidersConfig        `yaml:"providers"`
	Cache     cache.Config           `yaml:"cache"`
	Judge     judge.Config           `yaml:"judge"`
	Queues    map[string]QueueConfig `yaml:"queues"` // keyed by job kind
	Retention queue.Retention        `yaml:"retention"`
	Rounds    round.Config           `yaml:"rounds"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// AdminConfig holds the gRPC health endpoint settings.
type AdminConfig struct {
	GRPCPort int `yaml:"grpc_port"` // 0 = disabled
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// RedisConfig holds the primary and optional secondary store endpoints.
type RedisConfig struct {
	Primary   redisclient.Config `yaml:"primary"`
	Secondary redisclient.Config `yaml:"secondary"`
}

// ProvidersConfig holds the model providers in fallback order.
type ProvidersConfig struct {
	Primary     provider.Config `yaml:"primary"`
	Secondary   provider.Config `yaml:"secondary"`
	CallTimeout time.Duration   `yaml:"call_timeout"`
}

// List returns the configured providers in fallback order.
func (p ProvidersConfig) List() []provider.Config {
	var out []provider.Config
	for _, c := range []provider.Config{p.Primary, p.Secondary} {
		if c.Kind != "" {
			out = append(out, c)
		}
	}
	return out
}

// QueueConfig sizes one queue and its worker pool.
type QueueConfig struct {
	Attempts     int           `yaml:"attempts"`
	Backoff      time.Duration `yaml:"backoff"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
	Lease        time.Duration `yaml:"lease"`
	Concurrency  int           `yaml:"concurrency"`
	MaxJobs      int           `yaml:"max_jobs"` // per Window, 0 = unlimited
	Window       time.Duration `yaml:"window"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Queue returns the queue settings.
func (c QueueConfig) Queue() queue.Config {
	return queue.Config{Attempts: c.Attempts, Backoff: c.Backoff, MaxBackoff: c.MaxBackoff, Lease: c.Lease}
}

// Pool returns the worker pool settings.
func (c QueueConfig) Pool() queue.PoolConfig {
	return queue.PoolConfig{
		Concurrency:  c.Concurrency,
		MaxJobs:      c.MaxJobs,
		Window:       c.Window,
		PollInterval: c.PollInterval,
	}
}
