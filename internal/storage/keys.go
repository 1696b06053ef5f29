package storage

import (
	"fmt"
)

// Keys generates Redis keys with consistent naming
type Keys struct {
	prefix string
}

// NewKeys creates a new Keys generator
func NewKeys(prefix string) *Keys {
	return &Keys{prefix: prefix}
}

// RateLimitMinute returns the key for a user's per-minute request counter
func (k *Keys) RateLimitMinute(userID string) string {
	return fmt.Sprintf("%sratelimit:%s:minute", k.prefix, userID)
}

// RateLimitHour returns the key for a user's per-hour request counter
func (k *Keys) RateLimitHour(userID string) string {
	return fmt.Sprintf("%sratelimit:%s:hour", k.prefix, userID)
}

// TokenLimit returns the key for a user's token usage in the period
// starting at periodStart (unix seconds)
func (k *Keys) TokenLimit(userID string, periodStart int64) string {
	return fmt.Sprintf("%stokens:%s:%d", k.prefix, userID, periodStart)
}
