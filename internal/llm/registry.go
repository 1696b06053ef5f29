package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/s33g/companion-chat/internal/config"
)

// Registry manages one client per configured provider
type Registry struct {
	clients     map[string]*Client // key: provider name
	defaultName string
	mu          sync.RWMutex
	opts        []Option
}

// NewRegistry creates a new provider registry. opts are applied to every
// client it builds, including on Reload.
func NewRegistry(cfg *config.Config, opts ...Option) (*Registry, error) {
	r := &Registry{opts: opts}

	if err := r.Reload(cfg); err != nil {
		return nil, err
	}

	return r, nil
}

// GetClient returns the client for a provider
func (r *Registry) GetClient(providerName string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[providerName]
	if !ok {
		return nil, fmt.Errorf("provider %s not found", providerName)
	}

	return client, nil
}

// Default returns the client for the configured default provider
func (r *Registry) Default() *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.clients[r.defaultName]
}

// Chat sends a single-turn request to the default provider
func (r *Registry) Chat(ctx context.Context, message string) (string, error) {
	return r.Default().Chat(ctx, message)
}

// Complete sends a single-turn request to the default provider and
// returns the whole response
func (r *Registry) Complete(ctx context.Context, message string) (*ChatResponse, error) {
	return r.Default().Complete(ctx, message)
}

// Reload rebuilds every client from cfg. On error the current clients
// stay in place.
func (r *Registry) Reload(cfg *config.Config) error {
	def, err := cfg.DefaultProviderConfig()
	if err != nil {
		return err
	}

	newClients := make(map[string]*Client, len(cfg.Providers))
	for i := range cfg.Providers {
		client, err := NewClient(cfg.Providers[i], r.opts...)
		if err != nil {
			return fmt.Errorf("failed to create client for provider %s: %w", cfg.Providers[i].Name, err)
		}
		newClients[cfg.Providers[i].Name] = client
	}

	r.mu.Lock()
	r.clients = newClients
	r.defaultName = def.Name
	r.mu.Unlock()

	return nil
}

// Providers returns the configured provider names
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}

// MarshalZerologObject summarizes the registry for structured logs
func (r *Registry) MarshalZerologObject(e *zerolog.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e.Str("default", r.defaultName).Int("providers", len(r.clients))
}
