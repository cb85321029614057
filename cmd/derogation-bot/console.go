package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"derogation-bot/internal/channels"
)

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Chat with the bot on stdin/stdout. Documents are copied to channels.console.sink_path.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.close()

			console := channels.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout(), a.dispatcher, a.log)
			return console.Run(ctx)
		},
	}
}
