package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"failsight/agent"
	"failsight/analysis"
	"failsight/gate"
	"failsight/store"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for failsight.
type Config struct {
	Explain ExplainConfig `yaml:"explain"`
	Agent   agent.Config  `yaml:"agent"`
	Cache   store.Config  `yaml:"cache"`
	Logger  LoggerConfig  `yaml:"logger"`
	Server  ServerConfig  `yaml:"server"`
}

// ExplainConfig controls when failures are explained and how.
type ExplainConfig struct {
	Enabled          bool   `yaml:"enabled"`
	OnlyStatusCodes  []int  `yaml:"only_status_codes"`
	TimeoutMs        int    `yaml:"timeout_ms"`
	CacheTTL         *int   `yaml:"cache_ttl"` // seconds, 0 disables the cache
	IncludeTrace     bool   `yaml:"include_trace"`
	ErrorIDGenerator string `yaml:"error_id_generator"`
}

type LoggerConfig struct {
	Level      string       `yaml:"level"`
	Color      bool         `yaml:"color"`
	Structured StructLogCfg `yaml:"structured"`
}

type StructLogCfg struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type ServerConfig struct {
	Listen        string `yaml:"listen"`
	AuthToken     string `yaml:"auth_token"`
	PurgeInterval string `yaml:"purge_interval"`
}

// LoadConfig reads and parses the config file, expanding environment variables.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config data, expanding ${ENV_VAR} references.
func ParseConfig(data []byte) (*Config, error) {
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Explain.OnlyStatusCodes == nil {
		c.Explain.OnlyStatusCodes = []int{http.StatusInternalServerError}
	}
	if c.Explain.TimeoutMs == 0 {
		c.Explain.TimeoutMs = int(analysis.DefaultTimeout / time.Millisecond)
	}
	if c.Explain.CacheTTL == nil {
		ttl := int(analysis.DefaultCacheTTL / time.Second)
		c.Explain.CacheTTL = &ttl
	}
	if c.Agent.Provider == "" {
		c.Agent.Provider = agent.ProviderAnthropic
	}
	if c.Cache.Type == "" {
		c.Cache.Type = store.TypeMemory
	}
	if c.Cache.Type == store.TypeSQLite && c.Cache.SQLite.Path == "" {
		c.Cache.SQLite.Path = "./data/failsight.db"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Structured.Enabled && c.Logger.Structured.Path == "" {
		c.Logger.Structured.Path = "./logs/failsight.ndjson"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8081"
	}
	if c.Server.PurgeInterval == "" {
		c.Server.PurgeInterval = "5m"
	}
}

func (c *Config) validate() error {
	if err := c.AnalysisConfig().Validate(); err != nil {
		return fmt.Errorf("explain: %w", err)
	}
	if err := (gate.Config{OnlyStatusCodes: c.Explain.OnlyStatusCodes}).Validate(); err != nil {
		return fmt.Errorf("explain.only_status_codes: %w", err)
	}
	if _, err := gate.ErrorIDGenerator(c.Explain.ErrorIDGenerator); err != nil {
		return fmt.Errorf("explain.error_id_generator: %w", err)
	}
	if d, err := time.ParseDuration(strings.TrimSpace(c.Server.PurgeInterval)); err != nil || d <= 0 {
		return fmt.Errorf("server.purge_interval must be a positive duration, got %q", c.Server.PurgeInterval)
	}
	return nil
}

// AnalysisConfig returns the analyzer settings of the explain section.
func (c *Config) AnalysisConfig() analysis.Config {
	ttl := 0
	if c.Explain.CacheTTL != nil {
		ttl = *c.Explain.CacheTTL
	}
	return analysis.Config{
		Timeout:      time.Duration(c.Explain.TimeoutMs) * time.Millisecond,
		CacheTTL:     time.Duration(ttl) * time.Second,
		IncludeTrace: c.Explain.IncludeTrace,
	}
}

// GateConfig returns the gate settings of the explain section.
func (c *Config) GateConfig() (gate.Config, error) {
	newID, err := gate.ErrorIDGenerator(c.Explain.ErrorIDGenerator)
	if err != nil {
		return gate.Config{}, err
	}
	return gate.Config{
		Enabled:         c.Explain.Enabled,
		OnlyStatusCodes: append([]int(nil), c.Explain.OnlyStatusCodes...),
		IncludeTrace:    c.Explain.IncludeTrace,
		NewErrorID:      newID,
	}, nil
}

// ParseDuration parses a duration string, returning a fallback on error.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
