// Package provider selects the external language-model backend used for
// query planning and relevance scoring.
package provider

import (
	"errors"

	"github.com/pouria-abbasi/mediascout/config"
	openai_provider "github.com/pouria-abbasi/mediascout/provider/openai"
)

// Client names a supported backend.
type Client string

const (
	OpenAI Client = "openai"
)

// ErrNotConfigured is returned when no API key is present. Callers treat it
// as "run without the capability", not as a failure.
var ErrNotConfigured = errors.New("llm provider not configured")

// NewProvider builds the configured backend. The returned client implements
// both research.TextGenerator and research.RelevanceScorer.
func NewProvider(client Client, cfg config.LLMConfig) (*openai_provider.OpenAIClient, error) {
	switch client {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, ErrNotConfigured
		}
		return openai_provider.NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
