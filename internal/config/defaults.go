package config

const (
	// DefaultProviderName is the provider used when none is configured
	DefaultProviderName = "zhipu"

	// DefaultBaseURL is the BigModel OpenAI-compatible API root
	DefaultBaseURL = "https://open.bigmodel.cn/api/paas/v4"

	// DefaultModel is the model id sent with every request
	DefaultModel = "glm-4-flash"

	// DefaultAPIKeyEnv names the environment variable holding the bearer key
	DefaultAPIKeyEnv = "GLM_API_KEY"

	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
)

// DefaultProvider returns the reference provider configuration
func DefaultProvider() Provider {
	return Provider{
		Name:        DefaultProviderName,
		BaseURL:     DefaultBaseURL,
		APIKeyEnv:   DefaultAPIKeyEnv,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Redis: RedisConfig{
			Address:   "localhost:6379",
			DB:        0,
			KeyPrefix: "companion:",
		},
		Limits: LimitsConfig{
			Enabled: false,
			Rate: RateLimit{
				RequestsPerMinute: 20,
				RequestsPerHour:   300,
			},
			Tokens: TokenLimit{
				TokensPerPeriod: 200000,
				PeriodHours:     24,
			},
		},
		Session: SessionConfig{
			User:             "local",
			CarryContext:     false,
			MaxContextTokens: 4096,
			HistoryLimit:     200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
