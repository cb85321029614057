package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"derogation-bot/internal/channels"
	"derogation-bot/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the enabled chat channels.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	webhooks := map[string]server.Webhook{}
	var messenger *channels.Messenger
	if a.cfg.Channels.Messenger.Enabled {
		// events keep running through shutdown so a half-done conversation can finish
		messenger = channels.NewMessenger(
			context.WithoutCancel(ctx),
			a.cfg.Channels.Messenger.GraphURL,
			a.cfg.Channels.Messenger.PageToken,
			a.cfg.Channels.Messenger.VerifyToken,
			a.dispatcher,
			a.log,
		)
		webhooks["messenger"] = messenger
	}

	router := server.NewRouter(server.Options{
		Version:  version,
		Checks:   a.checks,
		Webhooks: webhooks,
	}, a.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, a.cfg.Server.Address, router, a.log)
	})
	if a.cfg.Channels.Telegram.Enabled {
		tg := channels.NewTelegram(a.cfg.Channels.Telegram.BotURL(), a.cfg.Channels.Telegram.PollTimeout, a.dispatcher, a.log)
		g.Go(func() error {
			return tg.Run(gctx)
		})
	}

	err := g.Wait()
	if messenger != nil {
		messenger.Wait()
	}
	a.log.Info("shutdown complete", nil)
	return err
}
