// Package anthropic adapts the Anthropic Messages API to the provider interface.
package anthropic

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"github.com/thebtf/designpartner/internal/provider"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-7-sonnet-20250219"
	APIVersion       = "2023-06-01"
	defaultMaxTokens = 1024
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Provider talks to the Anthropic Messages API.
type Provider struct {
	model     string
	maxTokens int
	client    *resty.Client
}

// New creates an Anthropic provider.
func New(cfg provider.Config) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	client := resty.New()
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	}
	client.
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("anthropic-version", APIVersion).
		SetHeader("content-type", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	return &Provider{model: model, maxTokens: maxTokens, client: client}
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return "anthropic" }

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req *provider.Request) (string, error) {
	body := messagesRequest{
		Model:       p.model,
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = p.maxTokens
	}
	if req.JSON {
		body.System = strings.TrimSpace(body.System + "\n\nRespond with a single JSON object and nothing else.")
	}
	body.Messages = alternate(req.Messages())

	var out messagesResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&errorResponse{}).
		Post("/v1/messages")
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		pe := provider.Classify(err)
		pe.Provider = p.Name()
		return "", pe
	}

	if resp.IsError() {
		msg := resp.String()
		if e, ok := resp.Error().(*errorResponse); ok && e.Error.Message != "" {
			msg = e.Error.Type + ": " + e.Error.Message
		}
		pe := provider.ClassifyHTTPStatus(resp.StatusCode(), msg)
		pe.Provider = p.Name()
		if s := resp.Header().Get("retry-after"); s != "" {
			if secs, convErr := strconv.Atoi(s); convErr == nil {
				pe.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return "", pe
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &provider.Error{Kind: provider.Transient, Provider: p.Name(), Message: "empty content in response"}
	}
	return sb.String(), nil
}

// alternate maps chat messages onto the Messages API, which requires the
// first message to come from the user and roles to alternate. Consecutive
// messages from the same role are joined.
func alternate(msgs []provider.Message) []message {
	out := make([]message, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		if role != provider.RoleAssistant {
			role = provider.RoleUser
		}
		if len(out) == 0 && role == provider.RoleAssistant {
			out = append(out, message{Role: provider.RoleUser, Content: "(conversation start)"})
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, message{Role: role, Content: m.Content})
	}
	return out
}
