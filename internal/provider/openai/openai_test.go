package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/designpartner/internal/provider"
)

func TestComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"updates\":[]}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := New(provider.Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "test-model", MaxTokens: 256})
	assert.Equal(t, "openai", p.Name())

	out, err := p.Complete(context.Background(), &provider.Request{
		System:      "You extract facts.",
		Transcript:  []provider.Message{{Role: provider.RoleAssistant, Content: "What are you building?"}},
		Instruction: "Extract.",
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"updates":[]}`, out)

	assert.Equal(t, "test-model", got["model"])
	assert.EqualValues(t, 256, got["max_tokens"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "json_object", got["response_format"].(map[string]any)["type"])
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   provider.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, provider.Transient},
		{"server error", http.StatusInternalServerError, provider.Transient},
		{"bad key", http.StatusUnauthorized, provider.Permanent},
		{"bad request", http.StatusBadRequest, provider.Permanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"x"}}`))
			}))
			defer srv.Close()

			p := New(provider.Config{Name: "ollama", BaseURL: srv.URL})
			_, err := p.Complete(context.Background(), &provider.Request{Instruction: "x"})
			require.Error(t, err)

			var pe *provider.Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, "ollama", pe.Provider)
		})
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := New(provider.Config{BaseURL: srv.URL}).Complete(context.Background(), &provider.Request{})
	assert.True(t, provider.IsTransient(err))
}
