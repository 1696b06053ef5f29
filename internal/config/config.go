package config

import (
	"fmt"
	"math"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file. An empty path yields the
// defaults with the reference provider.
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = []Provider{DefaultProvider()}
	}
	for i := range cfg.Providers {
		applyProviderDefaults(&cfg.Providers[i])
	}
	// With no default_provider the first listed provider is used
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = cfg.Providers[0].Name
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// UnmarshalYAML decodes a provider entry. Sampling keys left out of the
// entry take the reference values; an explicit zero is kept.
func (p *Provider) UnmarshalYAML(node *yaml.Node) error {
	type plain Provider
	raw := plain{
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*p = Provider(raw)
	return nil
}

// applyProviderDefaults fills string fields a provider entry may leave out
func applyProviderDefaults(p *Provider) {
	if p.Model == "" {
		p.Model = DefaultModel
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}

	seen := make(map[string]bool)
	for i, provider := range c.Providers {
		if provider.Name == "" {
			return fmt.Errorf("provider[%d].name is required", i)
		}
		if seen[provider.Name] {
			return fmt.Errorf("provider[%d].name %q is duplicated", i, provider.Name)
		}
		seen[provider.Name] = true

		if provider.BaseURL == "" {
			return fmt.Errorf("provider[%d].base_url is required", i)
		}
		u, err := url.Parse(provider.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("provider[%d].base_url %q is not an absolute http(s) URL", i, provider.BaseURL)
		}
		if provider.Model == "" {
			return fmt.Errorf("provider[%d].model is required", i)
		}
		if !finite(provider.Temperature) || provider.Temperature < 0 || provider.Temperature > 2 {
			return fmt.Errorf("provider[%d].temperature must be within [0, 2]", i)
		}
		if !finite(provider.TopP) || provider.TopP <= 0 || provider.TopP > 1 {
			return fmt.Errorf("provider[%d].top_p must be within (0, 1]", i)
		}
		if provider.TimeoutSeconds < 0 {
			return fmt.Errorf("provider[%d].timeout_seconds must not be negative", i)
		}
	}

	if c.DefaultProvider != "" && !seen[c.DefaultProvider] {
		return fmt.Errorf("default_provider %q is not configured", c.DefaultProvider)
	}

	if c.Limits.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address is required when limits are enabled")
		}
		if !c.Limits.Tokens.Bypass && c.Limits.Tokens.TokensPerPeriod > 0 && c.Limits.Tokens.PeriodHours <= 0 {
			return fmt.Errorf("limits.tokens.period_hours must be positive")
		}
	}

	if c.Session.CarryContext && c.Session.MaxContextTokens <= 0 {
		return fmt.Errorf("session.max_context_tokens must be positive when carry_context is set")
	}

	return nil
}

// GetProvider returns a provider by name
func (c *Config) GetProvider(name string) (*Provider, error) {
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			return &c.Providers[i], nil
		}
	}
	return nil, fmt.Errorf("provider %s not found", name)
}

// DefaultProviderConfig returns the provider named by default_provider,
// or the first provider when none is named
func (c *Config) DefaultProviderConfig() (*Provider, error) {
	if c.DefaultProvider == "" {
		if len(c.Providers) == 0 {
			return nil, fmt.Errorf("no providers configured")
		}
		return &c.Providers[0], nil
	}
	return c.GetProvider(c.DefaultProvider)
}
