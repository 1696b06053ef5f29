package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/s33g/companion-chat/internal/config"
	"github.com/s33g/companion-chat/internal/storage"
)

// KEYS[1] minute counter, KEYS[2] hour counter.
// ARGV: minute limit, hour limit, minute ttl, hour ttl. A limit of 0 is unlimited.
var rateLimitScript = redis.NewScript(`
local minute = tonumber(redis.call('GET', KEYS[1]) or "0")
local hour = tonumber(redis.call('GET', KEYS[2]) or "0")
local minute_limit = tonumber(ARGV[1])
local hour_limit = tonumber(ARGV[2])

if minute_limit > 0 and minute >= minute_limit then
    local ttl = redis.call('TTL', KEYS[1])
    return {-1, ttl > 0 and ttl or tonumber(ARGV[3])}
end

if hour_limit > 0 and hour >= hour_limit then
    local ttl = redis.call('TTL', KEYS[2])
    return {-2, ttl > 0 and ttl or tonumber(ARGV[4])}
end

if redis.call('INCR', KEYS[1]) == 1 then
    redis.call('EXPIRE', KEYS[1], tonumber(ARGV[3]))
end
if redis.call('INCR', KEYS[2]) == 1 then
    redis.call('EXPIRE', KEYS[2], tonumber(ARGV[4]))
end

return {1, 0}
`)

// KEYS[1] period counter. ARGV: limit, period seconds, tokens to add.
var tokenLimitScript = redis.NewScript(`
local limit = tonumber(ARGV[1])

if limit == 0 then
    return {1, 0, 0, 0}
end

local used = tonumber(redis.call('GET', KEYS[1]) or "0")
local to_add = tonumber(ARGV[3])

if used + to_add > limit then
    local ttl = redis.call('TTL', KEYS[1])
    return {-1, used, limit - used, ttl > 0 and ttl or tonumber(ARGV[2])}
end

used = redis.call('INCRBY', KEYS[1], to_add)
if used == to_add then
    redis.call('EXPIRE', KEYS[1], tonumber(ARGV[2]))
end

return {1, used, limit - used, 0}
`)

const (
	minuteTTL = 60
	hourTTL   = 3600
)

// Limiter enforces per-user request and token quotas in Redis
type Limiter struct {
	client *storage.Client
	now    func() time.Time
}

// NewLimiter creates a new rate limiter and preloads its scripts
func NewLimiter(ctx context.Context, client *storage.Client) (*Limiter, error) {
	if err := rateLimitScript.Load(ctx, client.Redis()).Err(); err != nil {
		return nil, fmt.Errorf("failed to load rate limit script: %w", err)
	}
	if err := tokenLimitScript.Load(ctx, client.Redis()).Err(); err != nil {
		return nil, fmt.Errorf("failed to load token limit script: %w", err)
	}

	return &Limiter{
		client: client,
		now:    time.Now,
	}, nil
}

// RateLimitResult holds the result of a rate limit check
type RateLimitResult struct {
	Allowed        bool
	SecondsToReset int
	LimitType      string // "minute" or "hour"
}

// CheckRateLimit checks and increments the user's request counters
func (l *Limiter) CheckRateLimit(ctx context.Context, userID string, limits config.RateLimit) (*RateLimitResult, error) {
	keys := []string{
		l.client.Keys().RateLimitMinute(userID),
		l.client.Keys().RateLimitHour(userID),
	}

	values, err := rateLimitScript.Run(ctx, l.client.Redis(), keys,
		limits.RequestsPerMinute,
		limits.RequestsPerHour,
		minuteTTL,
		hourTTL,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	switch values[0] {
	case 1:
		return &RateLimitResult{Allowed: true}, nil
	case -1:
		return &RateLimitResult{SecondsToReset: int(values[1]), LimitType: "minute"}, nil
	case -2:
		return &RateLimitResult{SecondsToReset: int(values[1]), LimitType: "hour"}, nil
	default:
		return nil, fmt.Errorf("unknown rate limit status: %d", values[0])
	}
}

// TokenLimitResult holds the result of a token limit check
type TokenLimitResult struct {
	Allowed         bool
	TokensUsed      int
	TokensRemaining int
	SecondsToReset  int
}

// CheckTokenLimit reserves tokensToAdd from the user's budget for the
// current period
func (l *Limiter) CheckTokenLimit(ctx context.Context, userID string, limit config.TokenLimit, tokensToAdd int) (*TokenLimitResult, error) {
	if limit.Bypass || limit.TokensPerPeriod == 0 {
		return &TokenLimitResult{Allowed: true}, nil
	}
	if limit.PeriodHours <= 0 {
		return nil, fmt.Errorf("token limit period must be positive")
	}

	periodSeconds, periodStart := l.period(limit.PeriodHours)
	key := l.client.Keys().TokenLimit(userID, periodStart)

	values, err := tokenLimitScript.Run(ctx, l.client.Redis(), []string{key},
		limit.TokensPerPeriod,
		periodSeconds,
		tokensToAdd,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("token limit check failed: %w", err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("unexpected token limit result format")
	}

	return &TokenLimitResult{
		Allowed:         values[0] == 1,
		TokensUsed:      int(values[1]),
		TokensRemaining: int(values[2]),
		SecondsToReset:  int(values[3]),
	}, nil
}

// GetCurrentUsage returns current token usage without incrementing
func (l *Limiter) GetCurrentUsage(ctx context.Context, userID string, periodHours int) (int, error) {
	if periodHours <= 0 {
		return 0, fmt.Errorf("token limit period must be positive")
	}

	_, periodStart := l.period(periodHours)
	key := l.client.Keys().TokenLimit(userID, periodStart)

	val, err := l.client.Redis().Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get usage: %w", err)
	}

	return val, nil
}

func (l *Limiter) period(hours int) (seconds, start int64) {
	seconds = int64(hours) * 3600
	start = (l.now().Unix() / seconds) * seconds
	return seconds, start
}
