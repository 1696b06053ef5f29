package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/s33g/companion-chat/internal/config"
	"github.com/s33g/companion-chat/internal/repl"
	"github.com/spf13/cobra"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

Each message is sent on its own; earlier turns are only included when
session.carry_context is enabled. Editing the config file (or sending
SIGHUP) reloads providers and session settings without restarting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			sess := a.newSession()

			if opts.configPath != "" {
				watcher, err := config.NewWatcher(opts.configPath, func(cfg *config.Config) error {
					if err := opts.override(cfg); err != nil {
						return err
					}
					if err := a.registry.Reload(cfg); err != nil {
						return err
					}
					sess.SetConfig(cfg.Session)
					return nil
				}, a.logger)
				if err != nil {
					a.logger.Warn().Err(err).Msg("Failed to create config watcher - hot reload disabled")
				} else {
					watcher.Start()
					defer watcher.Stop()
				}
			}

			term := repl.NewTerminal()
			defer term.Close()

			return repl.New(term, os.Stdout, sess, a.registry.Default().Model(), !noColor).Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable ANSI colors")

	return cmd
}

