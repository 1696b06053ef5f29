package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	DefaultProvider string        `yaml:"default_provider"`
	Providers       []Provider    `yaml:"providers"`
	Redis           RedisConfig   `yaml:"redis"`
	Limits          LimitsConfig  `yaml:"limits"`
	Session         SessionConfig `yaml:"session"`
	Logging         LoggingConfig `yaml:"logging"`
}

// Provider represents a chat-completions endpoint and the fixed
// sampling parameters sent with every request
type Provider struct {
	Name           string  `yaml:"name"`
	BaseURL        string  `yaml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	TopP           float64 `yaml:"top_p"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Timeout returns the HTTP timeout; zero means the http.Client default (none)
func (p *Provider) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address     string `yaml:"address"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	KeyPrefix   string `yaml:"key_prefix"`
}

// LimitsConfig holds the caller-side quotas applied before each request
type LimitsConfig struct {
	Enabled bool       `yaml:"enabled"`
	Rate    RateLimit  `yaml:"rate"`
	Tokens  TokenLimit `yaml:"tokens"`
}

// RateLimit defines rate limiting parameters
type RateLimit struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerHour   int `yaml:"requests_per_hour"`
}

// TokenLimit defines token usage limits
type TokenLimit struct {
	Bypass          bool `yaml:"bypass,omitempty"`
	TokensPerPeriod int  `yaml:"tokens_per_period,omitempty"`
	PeriodHours     int  `yaml:"period_hours,omitempty"`
}

// SessionConfig holds settings for the in-memory chat session
type SessionConfig struct {
	User             string `yaml:"user"`
	CarryContext     bool   `yaml:"carry_context"`
	MaxContextTokens int    `yaml:"max_context_tokens"`
	HistoryLimit     int    `yaml:"history_limit"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
