package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/s33g/companion-chat/internal/session"
	"github.com/spf13/cobra"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message...>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			entry, err := a.newSession().Send(cmd.Context(), strings.Join(args, " "))
			if errors.Is(err, session.ErrEmptyMessage) {
				return err
			}
			if err != nil {
				return fmt.Errorf("%s: %w", session.Describe(err), err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), entry.Content)
			return nil
		},
	}
}
