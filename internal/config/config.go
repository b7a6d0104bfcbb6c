// Package config loads and validates the worker's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FetcherConfig controls the HTTP fetcher: concurrency, timeouts,
// retry policy, and per-host politeness.
type FetcherConfig struct {
	UserAgent          string   `yaml:"userAgent"`
	TimeoutMs          int      `yaml:"timeoutMs"`
	MaxBytes           int64    `yaml:"maxBytes"`
	GlobalConcurrency  int      `yaml:"globalConcurrency"`
	RetryAttempts      int      `yaml:"retryAttempts"`
	RetryBaseDelayMs   int      `yaml:"retryBaseDelayMs"`
	RetryableStatuses  []int    `yaml:"retryableStatuses"`
	PerHostMinDelayMs  int      `yaml:"perHostMinDelayMs"`
	PerHostBurst       int      `yaml:"perHostBurst"`
}

// ExtractorConfig controls the cascading content extractor.
type ExtractorConfig struct {
	BoilerplateSelectors []string `yaml:"boilerplateSelectors"`
	MinReadableChars     int      `yaml:"minReadableChars"`
}

// SchedulerConfig controls job dispatch, wave sizing, and cancellation
// polling.
type SchedulerConfig struct {
	MaxConcurrentJobs            int `yaml:"maxConcurrentJobs"`
	PollIntervalMs               int `yaml:"pollIntervalMs"`
	CancelPollMs                 int `yaml:"cancelPollMs"`
	IdleTimeoutSeconds           int `yaml:"idleTimeoutSeconds"`
	MaxConsecutiveInternalErrors int `yaml:"maxConsecutiveInternalErrors"`
	// PerJobConcurrency bounds how many candidate pipelines a single
	// wave runs at once, inside one job.
	PerJobConcurrency int `yaml:"perJobConcurrency"`
	// WaveSizeLimit bounds how many candidates are pulled per
	// ListCandidates call within a wave.
	WaveSizeLimit int `yaml:"waveSizeLimit"`
	// ProgressPublishMs bounds how often a job's progress is
	// broadcast to live subscribers; the durable snapshot is never
	// throttled.
	ProgressPublishMs int `yaml:"progressPublishMs"`
}

// ScorersConfig controls quality/relevance/sentiment weighting.
type ScorersConfig struct {
	QualityWeights     QualityWeights `yaml:"qualityWeights"`
	SentimentThreshold float64        `yaml:"sentimentConfidenceThreshold"`
	// MinRelevanceForLLM is the relevance floor (min_rel) an
	// expression must clear before the LLM-batch pipeline spends a
	// call validating it.
	MinRelevanceForLLM float64 `yaml:"minRelevanceForLLM"`
}

// QualityWeights are the five additive block weights; they are
// expected to sum to 1.0.
type QualityWeights struct {
	Access     float64 `yaml:"access"`
	Structure  float64 `yaml:"structure"`
	Richness   float64 `yaml:"richness"`
	Coherence  float64 `yaml:"coherence"`
	Integrity  float64 `yaml:"integrity"`
}

// RobotsConfig controls robots.txt compliance.
type RobotsConfig struct {
	Respect bool `yaml:"respect"`
}

// DatabaseConfig is the Postgres DSN and pool tuning.
type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifeMins int    `yaml:"connMaxLifeMinutes"`
}

// RedisConfig backs the progress channel's live pub/sub fan-out. Empty
// URL disables live fan-out; the durable snapshot path is unaffected.
type RedisConfig struct {
	URL string `yaml:"url"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

type GoogleLLMConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

type LLMConfig struct {
	DefaultProvider string          `yaml:"defaultProvider"`
	MaxCallsPerJob  int             `yaml:"maxCallsPerJob"`
	CacheTTLMinutes int             `yaml:"cacheTTLMinutes"`
	OpenAI          OpenAIConfig    `yaml:"openai"`
	Anthropic       AnthropicConfig `yaml:"anthropic"`
	Google          GoogleLLMConfig `yaml:"google"`
}

// SearxngConfig holds provider-specific configuration for SearxNG-based
// search, used to seed Lands from search results.
type SearxngConfig struct {
	BaseURL      string `yaml:"baseURL"`
	DefaultLimit int    `yaml:"defaultLimit"`
	TimeoutMs    int    `yaml:"timeoutMs"`
}

type SearchConfig struct {
	Enabled bool          `yaml:"enabled"`
	Searxng SearxngConfig `yaml:"searxng"`
}

// ArchiveConfig configures the archive-fallback adapter.
type ArchiveConfig struct {
	BaseURL   string `yaml:"baseURL"`
	TimeoutMs int    `yaml:"timeoutMs"`
}

// SEORankConfig configures the SEO-metrics adapter.
type SEORankConfig struct {
	BaseURL               string `yaml:"baseURL"`
	TimeoutMs             int    `yaml:"timeoutMs"`
	CircuitBreakerFailures int   `yaml:"circuitBreakerFailures"`
}

// AdaptersConfig groups the external-service adapters.
type AdaptersConfig struct {
	Archive ArchiveConfig `yaml:"archive"`
	SEORank SEORankConfig `yaml:"seorank"`
}

// HeuristicsConfig drives the link-graph's host-pattern rewrite map
// and the per-page discovery caps applied before new candidates are
// inserted.
type HeuristicsConfig struct {
	URLRewrites     map[string]string `yaml:"urlRewrites"`
	MaxLinksPerPage int               `yaml:"maxLinksPerPage"`
}

// JobTTLConfig controls job retention in days; DefaultDays applies to
// every job kind.
type JobTTLConfig struct {
	DefaultDays int `yaml:"defaultDays"`
}

// RetentionConfig controls TTL-like deletion of finished jobs.
type RetentionConfig struct {
	Enabled                bool         `yaml:"enabled"`
	CleanupIntervalMinutes int          `yaml:"cleanupIntervalMinutes"`
	Jobs                   JobTTLConfig `yaml:"jobs"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// BootstrapLandConfig seeds a Land and its starting domains from
// config at first startup.
type BootstrapLandConfig struct {
	Name          string   `yaml:"name"`
	Lang          string   `yaml:"lang"`
	Keywords      []string `yaml:"keywords"`
	DepthLimit    int      `yaml:"depthLimit"`
	SeedURLs      []string `yaml:"seedUrls"`
	SearchQueries []string `yaml:"searchQueries"`
}

type BootstrapConfig struct {
	Lands []BootstrapLandConfig `yaml:"lands"`
}

type Config struct {
	Fetcher   FetcherConfig   `yaml:"fetcher"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Scorers   ScorersConfig   `yaml:"scorers"`
	Robots    RobotsConfig    `yaml:"robots"`
	Adapters  AdaptersConfig  `yaml:"adapters"`
	Heuristics HeuristicsConfig `yaml:"heuristics"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	return &cfg
}

// Validate performs basic sanity checks on the loaded configuration so
// that obviously misconfigured providers fail fast at startup.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	provider := strings.TrimSpace(cfg.LLM.DefaultProvider)
	if provider != "" {
		switch provider {
		case "openai":
			if cfg.LLM.OpenAI.APIKey == "" || cfg.LLM.OpenAI.Model == "" {
				return errors.New("openai llm provider is not fully configured")
			}
		case "anthropic":
			if cfg.LLM.Anthropic.APIKey == "" || cfg.LLM.Anthropic.Model == "" {
				return errors.New("anthropic llm provider is not fully configured")
			}
		case "google":
			if cfg.LLM.Google.APIKey == "" || cfg.LLM.Google.Model == "" {
				return errors.New("google llm provider is not fully configured")
			}
		default:
			return fmt.Errorf("unsupported llm.defaultProvider: %s", provider)
		}
	}

	w := cfg.Scorers.QualityWeights
	sum := w.Access + w.Structure + w.Richness + w.Coherence + w.Integrity
	if sum != 0 && (sum < 0.99 || sum > 1.01) {
		return fmt.Errorf("scorers.qualityWeights must sum to 1.0, got %.3f", sum)
	}

	if cfg.Fetcher.GlobalConcurrency < 0 {
		return errors.New("fetcher.globalConcurrency must not be negative")
	}

	return nil
}

// DefaultRetryableStatuses is used when fetcher.retryableStatuses is
// not set in config: 5xx plus 408 and 429.
func DefaultRetryableStatuses() []int {
	statuses := []int{408, 429}
	for s := 500; s < 600; s++ {
		statuses = append(statuses, s)
	}
	return statuses
}
