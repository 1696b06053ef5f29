package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/s33g/companion-chat/internal/config"
)

// Client is the shared quota store. Request counters and token budgets
// for every session user live under one key prefix, so several
// companion processes pointed at the same Redis draw from one quota.
type Client struct {
	rdb  *redis.Client
	keys *Keys
}

// NewClient opens the quota store and pings it. It is only called when
// limits are enabled.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	password := ""
	if cfg.PasswordEnv != "" {
		password = os.Getenv(cfg.PasswordEnv)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:       cfg.Address,
		Password:   password,
		DB:         cfg.DB,
		ClientName: "companion",
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("quota store unavailable at %s: %w", cfg.Address, err)
	}

	return &Client{
		rdb:  rdb,
		keys: NewKeys(cfg.KeyPrefix),
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Redis exposes the connection for the limiter's scripts
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Keys returns the per-user quota key scheme
func (c *Client) Keys() *Keys {
	return c.keys
}
