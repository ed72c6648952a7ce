package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/designpartner/internal/provider"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  provider.Config
		want string
	}{
		{"default is anthropic", provider.Config{}, Anthropic},
		{"anthropic", provider.Config{Name: "Anthropic"}, Anthropic},
		{"openai", provider.Config{Name: "openai", Timeout: time.Second}, OpenAI},
		{"ollama", provider.Config{Name: "ollama", RPS: 2}, Ollama},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}

func TestNewUnknown(t *testing.T) {
	_, err := New(provider.Config{Name: "coze"})
	assert.ErrorContains(t, err, "unknown provider")
}
