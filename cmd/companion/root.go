package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/s33g/companion-chat/internal/config"
	"github.com/s33g/companion-chat/internal/llm"
	"github.com/s33g/companion-chat/internal/ratelimit"
	"github.com/s33g/companion-chat/internal/session"
	"github.com/s33g/companion-chat/internal/storage"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	provider   string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "companion",
		Short:         "Chat with a hosted language model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (defaults apply when empty)")
	cmd.PersistentFlags().StringVarP(&opts.provider, "provider", "p", "", "Provider to use instead of default_provider")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level")

	cmd.AddCommand(newChatCmd(opts), newAskCmd(opts))

	return cmd
}

// app holds the wired components shared by the subcommands
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *llm.Registry
	storage  *storage.Client
	guard    *ratelimit.Guard
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Logging, opts.logLevel)
	if err != nil {
		return nil, err
	}

	registry, err := llm.NewRegistry(cfg, llm.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
	}

	if cfg.Limits.Enabled {
		a.storage, err = storage.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}

		limiter, err := ratelimit.NewLimiter(ctx, a.storage)
		if err != nil {
			a.storage.Close()
			return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
		a.guard = ratelimit.NewGuard(limiter, cfg.Limits)
	}

	logger.Debug().Object("registry", registry).Msg("Providers ready")

	return a, nil
}

func (a *app) newSession() *session.Session {
	var opts []session.Option
	if a.guard != nil {
		opts = append(opts, session.WithQuota(a.guard))
	}
	return session.New(a.registry, a.cfg.Session, a.logger, opts...)
}

func (a *app) close() {
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close Redis connection")
		}
	}
}

// load reads the config file and applies the --provider override
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := o.override(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *rootOptions) override(cfg *config.Config) error {
	if o.provider == "" {
		return nil
	}
	if _, err := cfg.GetProvider(o.provider); err != nil {
		return err
	}
	cfg.DefaultProvider = o.provider
	return nil
}

func newLogger(cfg config.LoggingConfig, levelOverride string) (zerolog.Logger, error) {
	levelName := cfg.Level
	if levelOverride != "" {
		levelName = levelOverride
	}

	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", levelName, err)
	}

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return logger.Level(level).With().Timestamp().Logger(), nil
}
