// Package openai adapts OpenAI-compatible chat completion APIs, including
// Ollama's compatibility endpoint, to the provider interface.
package openai

import (
	"context"
	"errors"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/thebtf/designpartner/internal/provider"
)

const (
	// DefaultBaseURL is the public OpenAI endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"
)

// Provider talks to an OpenAI-compatible backend.
type Provider struct {
	name      string
	model     string
	client    *goopenai.Client
	maxTokens int
}

// New creates an OpenAI-compatible provider.
func New(cfg provider.Config) *Provider {
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &Provider{
		name:      name,
		model:     model,
		client:    goopenai.NewClientWithConfig(clientCfg),
		maxTokens: cfg.MaxTokens,
	}
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return p.name }

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req *provider.Request) (string, error) {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Transcript)+2)
	if req.System != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages() {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if chatReq.MaxTokens == 0 {
		chatReq.MaxTokens = p.maxTokens
	}
	if req.JSON {
		chatReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &provider.Error{Kind: provider.Transient, Provider: p.name, Message: "empty choices in response"}
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		pe := provider.ClassifyHTTPStatus(apiErr.HTTPStatusCode, apiErr.Message)
		pe.Provider = p.name
		pe.Cause = err
		return pe
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		pe := provider.ClassifyHTTPStatus(reqErr.HTTPStatusCode, reqErr.Error())
		pe.Provider = p.name
		pe.Cause = err
		return pe
	}

	pe := provider.Classify(err)
	pe.Provider = p.name
	return pe
}
