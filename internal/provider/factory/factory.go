// Package factory builds a configured provider from its name.
package factory

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/designpartner/internal/provider"
	"github.com/thebtf/designpartner/internal/provider/anthropic"
	"github.com/thebtf/designpartner/internal/provider/openai"
)

// Backend names.
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Ollama    = "ollama"
)

// DefaultOllamaURL is Ollama's OpenAI-compatible endpoint.
const DefaultOllamaURL = "http://localhost:11434/v1"

// New creates the provider named by cfg.Name, wrapped with the configured
// per-call timeout and rate limit.
func New(cfg provider.Config) (provider.Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	if name == "" {
		name = Anthropic
	}
	cfg.Name = name

	var p provider.Provider
	switch name {
	case Anthropic:
		p = anthropic.New(cfg)
	case OpenAI:
		p = openai.New(cfg)
	case Ollama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOllamaURL
		}
		if cfg.APIKey == "" {
			cfg.APIKey = "ollama"
		}
		p = openai.New(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}

	log.Info().Str("provider", name).Str("model", cfg.Model).Dur("timeout", cfg.Timeout).Float64("rps", cfg.RPS).Msg("Provider configured")

	// Rate limiting waits outside the per-call timeout.
	return provider.WithRateLimit(provider.WithTimeout(p, cfg.Timeout), cfg.RPS), nil
}
