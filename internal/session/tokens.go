package session

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// messageOverhead approximates the per-message formatting tokens of
// OpenAI-style chat APIs
const messageOverhead = 4

// TokenCounter estimates token counts for quota accounting and context
// folding. It is safe for concurrent use.
type TokenCounter struct {
	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
}

// NewTokenCounter creates a new token counter
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{
		encoders: make(map[string]*tiktoken.Tiktoken),
	}
}

// Count returns the number of tokens in text for a given model
func (tc *TokenCounter) Count(text, model string) int {
	if text == "" {
		return 0
	}

	encoder, ok := tc.encoder(encodingFor(model))
	if !ok {
		return estimateTokens(text)
	}

	return len(encoder.Encode(text, nil, nil))
}

// CountMessage returns the tokens of content plus formatting overhead
func (tc *TokenCounter) CountMessage(content, model string) int {
	return tc.Count(content, model) + messageOverhead
}

func (tc *TokenCounter) encoder(encoding string) (*tiktoken.Tiktoken, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if enc, ok := tc.encoders[encoding]; ok {
		return enc, enc != nil
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		// remember the failure so we don't retry the download every call
		tc.encoders[encoding] = nil
		return nil, false
	}
	tc.encoders[encoding] = enc
	return enc, true
}

// encodingFor maps a model id to a tiktoken encoding. GLM and most other
// hosted models have no public tokenizer; cl100k_base is a close proxy.
func encodingFor(model string) string {
	if strings.HasPrefix(model, "gpt-4o") || strings.HasPrefix(model, "o1") {
		return "o200k_base"
	}
	return "cl100k_base"
}

// estimateTokens provides a rough token estimate. CJK text averages
// about one token per rune, Latin text about four bytes per token.
func estimateTokens(text string) int {
	ascii, other := 0, 0
	for _, r := range text {
		if r < 0x80 {
			ascii++
		} else {
			other++
		}
	}
	return (ascii+3)/4 + other
}
