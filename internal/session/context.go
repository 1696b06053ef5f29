package session

import (
	"strings"

	"github.com/s33g/companion-chat/internal/llm"
)

// ContextBuilder folds recent transcript turns into one outgoing message.
// The chat client is single-turn, so carrying context means rendering
// prior turns into the text of the next user message.
type ContextBuilder struct {
	counter *TokenCounter
	model   string
}

// NewContextBuilder creates a new context builder
func NewContextBuilder(counter *TokenCounter, model string) *ContextBuilder {
	return &ContextBuilder{
		counter: counter,
		model:   model,
	}
}

// Fold returns next prefixed with as many of the newest successful turns
// of history as fit in budget tokens. A failed reply is skipped together
// with the user message it answered. With no turn fitting, next is
// returned unchanged.
func (cb *ContextBuilder) Fold(history []Entry, next string, budget int) string {
	remaining := budget - cb.counter.CountMessage(next, cb.model)

	var picked []Entry
	for i := len(history) - 1; i >= 0 && remaining > 0; i-- {
		e := history[i]
		if e.Err != nil {
			if i > 0 && history[i-1].Role == llm.RoleUser && history[i-1].Err == nil {
				i--
			}
			continue
		}

		cost := cb.counter.CountMessage(e.Content, cb.model)
		if cost > remaining {
			break
		}
		picked = append(picked, e)
		remaining -= cost
	}

	if len(picked) == 0 {
		return next
	}

	var b strings.Builder
	for i := len(picked) - 1; i >= 0; i-- {
		b.WriteString(picked[i].Role)
		b.WriteString(": ")
		b.WriteString(picked[i].Content)
		b.WriteString("\n")
	}
	b.WriteString("user: ")
	b.WriteString(next)

	return b.String()
}
