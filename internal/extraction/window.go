package extraction

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"

	"github.com/thebtf/designpartner/internal/provider"
	"github.com/thebtf/designpartner/pkg/models"
)

// DefaultWindowTokens bounds the recent transcript sent with each extraction.
const DefaultWindowTokens = 2000

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// CountTokens counts cl100k_base tokens in text. When the codec cannot be
// loaded it estimates from the word count.
func CountTokens(text string) int {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Warn().Err(err).Msg("Tokenizer unavailable, estimating tokens from word count")
			return
		}
		codec = c
	})
	if codec != nil {
		ids, _, err := codec.Encode(text)
		if err == nil {
			return len(ids)
		}
	}
	// Roughly four tokens per three words.
	return (len(strings.Fields(text))*4 + 2) / 3
}

// Window selects the most recent transcript turns that fit a token budget.
// Turns are kept whole and in order; the newest turn is always included.
func Window(t models.Transcript, budget int) []provider.Message {
	if len(t) == 0 {
		return nil
	}
	if budget <= 0 {
		budget = DefaultWindowTokens
	}

	used := 0
	start := len(t)
	for i := len(t) - 1; i >= 0; i-- {
		n := CountTokens(t[i].Text)
		if used+n > budget && start < len(t) {
			break
		}
		used += n
		start = i
	}

	msgs := make([]provider.Message, 0, len(t)-start)
	for _, turn := range t[start:] {
		role := provider.RoleUser
		if turn.Role == models.RoleAssistant {
			role = provider.RoleAssistant
		}
		msgs = append(msgs, provider.Message{Role: role, Content: turn.Text})
	}
	return msgs
}
