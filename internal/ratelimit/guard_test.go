package ratelimit

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExceededError(t *testing.T) {
	err := fmt.Errorf("send: %w", &ExceededError{Limit: "hour", RetryAfter: 90 * time.Second})

	if !errors.Is(err, ErrExceeded) {
		t.Error("Expected wrapped ExceededError to match ErrExceeded")
	}
	if got := err.Error(); got != "send: hour quota exceeded, retry in 1m30s" {
		t.Errorf("Error() = %q", got)
	}
}

func TestLimiter_Period(t *testing.T) {
	l := &Limiter{now: func() time.Time { return time.Unix(1700000123, 0) }}

	seconds, start := l.period(24)
	if seconds != 86400 {
		t.Errorf("seconds = %d, want 86400", seconds)
	}
	if start != 1699920000 {
		t.Errorf("start = %d, want 1699920000", start)
	}
}
