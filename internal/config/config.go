// Package config loads the application YAML config. Reference data lives
// in its own file handled by the refdata package.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sanjaynair/amlscope/internal/refdata"
	"github.com/sanjaynair/amlscope/internal/tools"
)

// Config is the top-level YAML structure.
type Config struct {
	Version string      `yaml:"version"`
	Engine  EngineConf  `yaml:"engine"`
	Cache   CacheConf   `yaml:"cache"`
	LLM     LLMConf     `yaml:"llm"`
	RefData RefDataConf `yaml:"refdata"`
	PubSub  PubSubConf  `yaml:"pubsub"`
}

// EngineConf holds controller tunables.
type EngineConf struct {
	EnrichmentWorkers int `yaml:"enrichment_workers"`
	QueueDepth        int `yaml:"queue_depth"`
	StageTimeoutMs    int `yaml:"stage_timeout_ms"`
	ToolTimeoutMs     int `yaml:"tool_timeout_ms"`
}

// CacheConf holds per-operation TTLs in milliseconds. Zero means default.
type CacheConf struct {
	RiskTTLMs           int `yaml:"risk_ttl_ms"`
	ExchangeRateTTLMs   int `yaml:"exchange_rate_ttl_ms"`
	WebSearchTTLMs      int `yaml:"web_search_ttl_ms"`
	DocSearchTTLMs      int `yaml:"doc_search_ttl_ms"`
	AcademicSearchTTLMs int `yaml:"academic_search_ttl_ms"`
}

// LLMConf selects and parameterizes the collaborator.
type LLMConf struct {
	// Provider is "gemini" or "offline". Defaults to gemini when an API
	// key is present, offline otherwise.
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// RefDataConf locates the reference-data file.
type RefDataConf struct {
	Path       string             `yaml:"path"`
	Precedence refdata.Precedence `yaml:"precedence"`
	Watch      bool               `yaml:"watch"`
}

// PubSubConf enables the optional terminal-event publisher.
type PubSubConf struct {
	Enabled   bool   `yaml:"enabled"`
	ProjectID string `yaml:"project_id"`
	TopicID   string `yaml:"topic_id"`
}

// Load reads path and applies defaults. A missing file yields the default
// config with an error the caller may log and ignore.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	raw, err := os.ReadFile(path)
	if err != nil {
		return withDefaults(cfg), fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return withDefaults(&Config{}), fmt.Errorf("parse config %s: %w", path, err)
	}
	return withDefaults(cfg), nil
}

func withDefaults(cfg *Config) *Config {
	if cfg.Engine.EnrichmentWorkers == 0 {
		cfg.Engine.EnrichmentWorkers = 8
	}
	if cfg.Engine.QueueDepth == 0 {
		cfg.Engine.QueueDepth = 64
	}
	if cfg.Engine.StageTimeoutMs == 0 {
		cfg.Engine.StageTimeoutMs = 60000
	}
	if cfg.Engine.ToolTimeoutMs == 0 {
		cfg.Engine.ToolTimeoutMs = 10000
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-1.5-flash"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.RefData.Path == "" {
		cfg.RefData.Path = "configs/refdata.yaml"
	}
	if cfg.RefData.Precedence == "" {
		cfg.RefData.Precedence = refdata.PrecedenceUnion
	}
	return cfg
}

// TTLs resolves the cache configuration against the standard defaults.
func (c *Config) TTLs() tools.TTLs {
	ttls := tools.DefaultTTLs()
	if c.Cache.RiskTTLMs > 0 {
		ttls.Risk = time.Duration(c.Cache.RiskTTLMs) * time.Millisecond
	}
	if c.Cache.ExchangeRateTTLMs > 0 {
		ttls.ExchangeRate = time.Duration(c.Cache.ExchangeRateTTLMs) * time.Millisecond
	}
	if c.Cache.WebSearchTTLMs > 0 {
		ttls.WebSearch = time.Duration(c.Cache.WebSearchTTLMs) * time.Millisecond
	}
	if c.Cache.DocSearchTTLMs > 0 {
		ttls.DocSearch = time.Duration(c.Cache.DocSearchTTLMs) * time.Millisecond
	}
	if c.Cache.AcademicSearchTTLMs > 0 {
		ttls.AcademicSearch = time.Duration(c.Cache.AcademicSearchTTLMs) * time.Millisecond
	}
	return ttls
}
