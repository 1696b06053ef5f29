package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/s33g/companion-chat/internal/config"
)

// ErrExceeded matches any *ExceededError via errors.Is
var ErrExceeded = errors.New("quota exceeded")

// ExceededError reports which local quota rejected a request
type ExceededError struct {
	Limit      string // "minute", "hour" or "tokens"
	RetryAfter time.Duration
	Remaining  int // tokens left in the period, for token quotas
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded, retry in %s", e.Limit, e.RetryAfter)
}

func (e *ExceededError) Is(target error) bool {
	return target == ErrExceeded
}

// Guard applies the configured request and token quotas before a chat
// request is sent. It never calls the provider itself.
type Guard struct {
	limiter *Limiter
	limits  config.LimitsConfig
}

// NewGuard creates a guard enforcing limits through limiter
func NewGuard(limiter *Limiter, limits config.LimitsConfig) *Guard {
	return &Guard{
		limiter: limiter,
		limits:  limits,
	}
}

// Allow consumes one request and tokens from userID's quotas. It returns
// an *ExceededError when a quota is exhausted.
func (g *Guard) Allow(ctx context.Context, userID string, tokens int) error {
	rate, err := g.limiter.CheckRateLimit(ctx, userID, g.limits.Rate)
	if err != nil {
		return err
	}
	if !rate.Allowed {
		return &ExceededError{
			Limit:      rate.LimitType,
			RetryAfter: time.Duration(rate.SecondsToReset) * time.Second,
		}
	}

	tok, err := g.limiter.CheckTokenLimit(ctx, userID, g.limits.Tokens, tokens)
	if err != nil {
		return err
	}
	if !tok.Allowed {
		return &ExceededError{
			Limit:      "tokens",
			RetryAfter: time.Duration(tok.SecondsToReset) * time.Second,
			Remaining:  tok.TokensRemaining,
		}
	}

	return nil
}
