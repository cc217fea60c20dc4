// Package config loads ENTROPY's configuration from config.yaml with
// environment-variable overrides, mirroring the teacher's internal/store
// package: a flat struct with yaml tags, defaults applied after parse,
// validated once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is ENTROPY's top-level configuration.
type Config struct {
	Provider string `yaml:"provider"`

	Models struct {
		Generalist       string `yaml:"generalist"`
		MarketSpecialist string `yaml:"market_specialist"`
		NewsSpecialist   string `yaml:"news_specialist"`
	} `yaml:"models"`

	Specialist struct {
		MaxWorkers      int `yaml:"max_workers"`
		TTLSeconds      int `yaml:"ttl_seconds"`
		TimeoutSeconds  int `yaml:"timeout_seconds"`
		QueueCapacity   int `yaml:"queue_capacity"`
		CacheCapacity   int `yaml:"cache_capacity"`
	} `yaml:"specialist"`

	Agent struct {
		MaxSteps int `yaml:"max_steps"`
	} `yaml:"agent"`

	Retrieval struct {
		SemanticWeight float64 `yaml:"semantic_weight"`
		LexicalWeight  float64 `yaml:"lexical_weight"`
		KRRF           int     `yaml:"k_rrf"`
		EmbeddingDim   int     `yaml:"embedding_dim"`
		LexicalIndexPath  string `yaml:"lexical_index_path"`
		SemanticIndexPath string `yaml:"semantic_index_path"`
	} `yaml:"retrieval"`

	Indicators struct {
		RSIPeriod  int `yaml:"rsi_period"`
		EMAFast    int `yaml:"ema_fast"`
		EMASlow    int `yaml:"ema_slow"`
		MACDSignal int `yaml:"macd_signal"`
	} `yaml:"indicators"`

	QuotesFeed struct {
		WebsocketURL string `yaml:"websocket_url"`
	} `yaml:"quotes_feed"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
}

// Validate checks invariants that must hold before the system starts.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return errors.New("provider must be set")
	}
	if c.Specialist.MaxWorkers <= 0 {
		return fmt.Errorf("specialist.max_workers must be > 0, got %d", c.Specialist.MaxWorkers)
	}
	if c.Specialist.TTLSeconds <= 0 {
		return fmt.Errorf("specialist.ttl_seconds must be > 0, got %d", c.Specialist.TTLSeconds)
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be > 0, got %d", c.Agent.MaxSteps)
	}
	if c.Retrieval.EmbeddingDim <= 0 {
		return fmt.Errorf("retrieval.embedding_dim must be > 0, got %d", c.Retrieval.EmbeddingDim)
	}
	return nil
}

// TTL returns the specialist result cache TTL as a duration.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.Specialist.TTLSeconds) * time.Second
}

// SpecialistTimeout returns T_SPEC, the immediate-specialist wall-clock budget.
func (c *Config) SpecialistTimeout() time.Duration {
	return time.Duration(c.Specialist.TimeoutSeconds) * time.Second
}

// Load reads path, applies defaults, overlays environment overrides, and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	applyDefaults(&c)
	applyEnvOverrides(&c)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Specialist.MaxWorkers == 0 {
		c.Specialist.MaxWorkers = 4
	}
	if c.Specialist.TTLSeconds == 0 {
		c.Specialist.TTLSeconds = 300
	}
	if c.Specialist.TimeoutSeconds == 0 {
		c.Specialist.TimeoutSeconds = 30
	}
	if c.Specialist.QueueCapacity == 0 {
		c.Specialist.QueueCapacity = 64
	}
	if c.Specialist.CacheCapacity == 0 {
		c.Specialist.CacheCapacity = 512
	}
	if c.Agent.MaxSteps == 0 {
		c.Agent.MaxSteps = 6
	}
	if c.Retrieval.SemanticWeight == 0 {
		c.Retrieval.SemanticWeight = 2.0
	}
	if c.Retrieval.LexicalWeight == 0 {
		c.Retrieval.LexicalWeight = 1.0
	}
	if c.Retrieval.KRRF == 0 {
		c.Retrieval.KRRF = 60
	}
	if c.Retrieval.EmbeddingDim == 0 {
		c.Retrieval.EmbeddingDim = 384
	}
	if c.Indicators.RSIPeriod == 0 {
		c.Indicators.RSIPeriod = 14
	}
	if c.Indicators.EMAFast == 0 {
		c.Indicators.EMAFast = 12
	}
	if c.Indicators.EMASlow == 0 {
		c.Indicators.EMASlow = 26
	}
	if c.Indicators.MACDSignal == 0 {
		c.Indicators.MACDSignal = 9
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

// applyEnvOverrides mirrors teacher's main.go env-var overrides
// (e.g. TRADER_LOG_RETENTION_DAYS), generalized to the three knobs
// spec.md §6 names explicitly.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("SPECIALIST_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Specialist.MaxWorkers = n
		}
	}
	if v := os.Getenv("SPECIALIST_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Specialist.TTLSeconds = n
		}
	}
	if v := os.Getenv("SPECIALIST_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Specialist.TimeoutSeconds = n
		}
	}
}
