package agent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"failsight/logger"
)

// Supported providers.
const (
	ProviderAmp       = "amp"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
)

// Config selects and configures the agent.
type Config struct {
	Provider  string    `yaml:"provider"`
	Model     string    `yaml:"model"`
	APIKey    string    `yaml:"api_key"`
	BaseURL   string    `yaml:"base_url"`
	MaxTokens int64     `yaml:"max_tokens"`
	Amp       AmpConfig `yaml:"amp"`
}

// apiKeyEnv is consulted when Config.APIKey is empty.
var apiKeyEnv = map[string]string{
	ProviderAmp:       "AMP_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
}

// New creates the agent selected by cfg.Provider.
func New(ctx context.Context, cfg Config, log logger.Logger) (Agent, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	apiKey := cfg.APIKey
	if env, ok := apiKeyEnv[provider]; ok && apiKey == "" {
		apiKey = os.Getenv(env)
	}

	switch provider {
	case ProviderAmp:
		return NewAmp(cfg.Amp, apiKey, log), nil
	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		return NewAnthropic(apiKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens), nil
	case ProviderGemini:
		g, err := NewGemini(ctx, apiKey, cfg.Model, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderOpenAI:
		if apiKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai API key is required")
		}
		return NewOpenAI(apiKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unsupported agent provider: %q (supported: amp, anthropic, gemini, openai)", cfg.Provider)
	}
}
