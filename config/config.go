// Package config loads the process configuration from a YAML file with
// environment-variable overrides for credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnconfigured is returned by Validate when the bookmark service
// credentials are missing. This is a hard startup failure; the enrichment
// credentials are soft feature toggles instead.
var ErrUnconfigured = errors.New("config: linkding host and api key are required")

// Config holds all linkding-companion configuration.
type Config struct {
	DBPath    string          `yaml:"db_path"`
	Linkding  LinkdingConfig  `yaml:"linkding"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Brave     BraveConfig     `yaml:"brave"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Queue     QueueConfig     `yaml:"queue"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// LinkdingConfig connects to the bookmark service.
type LinkdingConfig struct {
	Host    string        `yaml:"host"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// AnthropicConfig configures the chat-completion collaborator.
type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// BraveConfig configures the search collaborator. An empty key disables the
// search task.
type BraveConfig struct {
	APIKey string `yaml:"api_key"`
}

// PipelineConfig tunes task fan-out.
type PipelineConfig struct {
	SearchInFirstWave      bool `yaml:"search_in_first_wave"`
	NoSummarizeAfterSearch bool `yaml:"no_summarize_after_search"`
	SummaryMaxChars        int  `yaml:"summary_max_chars"`
}

// QueueConfig controls the job queue.
type QueueConfig struct {
	Visibility   time.Duration `yaml:"visibility"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	Workers      int           `yaml:"workers"`
}

// SchedulerConfig controls the sync sweep cadence.
type SchedulerConfig struct {
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// HTTPConfig configures the management API. PasswordHash is a bcrypt hash;
// blank credentials leave the API unauthenticated.
type HTTPConfig struct {
	Addr         string `yaml:"addr"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "companion.db"
	}
	if c.Queue.Visibility <= 0 {
		c.Queue.Visibility = 5 * time.Minute
	}
	if c.Queue.PollInterval <= 0 {
		c.Queue.PollInterval = time.Second
	}
	if c.Queue.MaxAttempts <= 0 {
		c.Queue.MaxAttempts = 5
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 4
	}
	if c.Scheduler.SyncInterval <= 0 {
		c.Scheduler.SyncInterval = 15 * time.Minute
	}
	if c.Pipeline.SummaryMaxChars <= 0 {
		c.Pipeline.SummaryMaxChars = 4000
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

// envOverrides lets credentials come from the environment instead of the
// file, which keeps secrets out of config files in container deployments.
func (c *Config) envOverrides() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.DBPath, "COMPANION_DB_PATH")
	set(&c.Linkding.Host, "LINKDING_HOST")
	set(&c.Linkding.APIKey, "LINKDING_API_KEY")
	set(&c.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	set(&c.Brave.APIKey, "BRAVE_API_KEY")
	set(&c.HTTP.Addr, "COMPANION_HTTP_ADDR")
}

// Validate checks the hard startup requirements.
func (c *Config) Validate() error {
	if c.Linkding.Host == "" || c.Linkding.APIKey == "" {
		return ErrUnconfigured
	}
	return nil
}

// Load reads the YAML file at path, applies environment overrides and
// defaults. An empty path skips the file and configures purely from the
// environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.envOverrides()
	cfg.defaults()
	return cfg, nil
}
