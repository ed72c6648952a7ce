// Package provider defines the stateless boundary to language-model backends.
// Concrete backends live in sub-packages and are constructed by provider/factory.
package provider

import (
	"context"
	"net/http"
	"time"
)

// Role of a chat message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prior conversation message passed as context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion request. Providers keep no conversation
// state, so callers pass the history they want the backend to see.
type Request struct {
	System      string
	Transcript  []Message
	Document    string
	Instruction string
	MaxTokens   int
	Temperature float32
	// JSON asks the backend for a single JSON object where supported.
	JSON bool
}

// Messages flattens the request into chat messages: prior transcript, then a
// final user message carrying the document and the instruction.
func (r *Request) Messages() []Message {
	msgs := make([]Message, 0, len(r.Transcript)+1)
	msgs = append(msgs, r.Transcript...)

	final := r.Instruction
	if r.Document != "" {
		final = "<design_document>\n" + r.Document + "\n</design_document>\n\n" + r.Instruction
	}
	return append(msgs, Message{Role: RoleUser, Content: final})
}

// Provider completes prompts against a backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Name       string
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	RPS        float64
	MaxTokens  int
	HTTPClient *http.Client
}

// Func adapts a function to the Provider interface.
type Func func(ctx context.Context, req *Request) (string, error)

// Name implements Provider.
func (f Func) Name() string { return "func" }

// Complete implements Provider.
func (f Func) Complete(ctx context.Context, req *Request) (string, error) {
	return f(ctx, req)
}
