// Package extraction turns a user utterance into proposed design-document
// updates by prompting a language-model provider.
package extraction

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/designpartner/internal/curriculum"
	"github.com/thebtf/designpartner/internal/provider"
	"github.com/thebtf/designpartner/pkg/models"
)

// Request is the input to one extraction.
type Request struct {
	Utterance    string
	Document     *models.Document
	Coverage     *models.CoverageSet
	Transcript   models.Transcript
	Topics       []curriculum.Topic
	CurrentTopic string
}

// Result is the outcome of one extraction.
type Result struct {
	Updates   []models.ProposedUpdate
	Addressed []string
	// ParseFailure is set when the backend output could not be parsed. The
	// result then carries zero updates.
	ParseFailure bool
	Raw          string
}

// Engine runs extractions against a provider.
type Engine struct {
	provider     provider.Provider
	windowTokens int
	maxTokens    int
	temperature  float32
}

// Option configures an Engine.
type Option func(*Engine)

// WithWindowTokens sets the transcript token budget.
func WithWindowTokens(n int) Option {
	return func(e *Engine) { e.windowTokens = n }
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int) Option {
	return func(e *Engine) { e.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(e *Engine) { e.temperature = t }
}

// New creates an extraction engine.
func New(p provider.Provider, opts ...Option) *Engine {
	e := &Engine{
		provider:     p,
		windowTokens: DefaultWindowTokens,
		maxTokens:    1024,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract proposes updates for an utterance. Provider errors are returned
// unchanged; unparseable output is reported through Result.ParseFailure.
func (e *Engine) Extract(ctx context.Context, req Request) (*Result, error) {
	if req.Document == nil {
		req.Document = models.NewDocument()
	}
	if req.Coverage == nil {
		req.Coverage = models.NewCoverageSet()
	}
	if strings.TrimSpace(req.Utterance) == "" {
		return &Result{}, nil
	}

	raw, err := e.provider.Complete(ctx, &provider.Request{
		System:      BuildSystemPrompt(),
		Transcript:  Window(req.Transcript, e.windowTokens),
		Document:    BuildDocumentJSON(req.Document),
		Instruction: BuildExtractionPrompt(&req),
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	updates, addressed, perr := ParseResponse(raw)
	if perr != nil {
		log.Warn().Err(perr).Str("provider", e.provider.Name()).Str("raw", truncate(raw, 500)).Msg("Extraction output unparseable, treating as zero updates")
		return &Result{ParseFailure: true, Raw: raw}, nil
	}

	known := make(map[string]curriculum.Topic, len(req.Topics))
	for _, t := range req.Topics {
		known[t.ID] = t
	}
	for i := range updates {
		t, ok := known[updates[i].TopicID]
		if !ok {
			updates[i].Discovered = true
			continue
		}
		if updates[i].Question == "" {
			updates[i].Question = t.Question
		}
	}

	log.Debug().Int("updates", len(updates)).Strs("addressed", addressed).Msg("Extraction complete")

	return &Result{Updates: updates, Addressed: addressed, Raw: raw}, nil
}
