package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"derogation-bot/internal/bot"
	"derogation-bot/internal/browser"
	"derogation-bot/internal/common/config"
	"derogation-bot/internal/common/logger"
	"derogation-bot/internal/common/observability"
	"derogation-bot/internal/server"
	"derogation-bot/internal/session"
	deliverdocument "derogation-bot/internal/workers/deliver-document"
	generateattestation "derogation-bot/internal/workers/generate-attestation"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg        *config.Config
	zapLog     *zap.Logger
	log        logger.Logger
	obs        *observability.Observability
	pool       *browser.Pool
	dispatcher *bot.Dispatcher
	checks     map[string]server.Check
	closers    []func() error
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"app":     cfg.App.Name,
		"version": version,
	})

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		log.Warn("metrics exporter unavailable", map[string]interface{}{"error": err})
	}

	a := &app{
		cfg:    cfg,
		zapLog: zapLog,
		log:    log,
		obs:    obs,
		checks: map[string]server.Check{},
	}

	store, err := a.newStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	a.pool = browser.NewPool(browser.NewChromeStarter(browser.ChromeOptions{
		ExecPath:     cfg.Browser.ExecPath,
		Headless:     cfg.Browser.Headless,
		NoSandbox:    cfg.Browser.NoSandbox,
		StartTimeout: cfg.Browser.StartTimeout,
	}, log), log)
	a.closers = append(a.closers, a.pool.Close)

	deliveryCfg := &deliverdocument.Config{
		Timeout:          30 * time.Second,
		TelegramEnabled:  cfg.Channels.Telegram.Enabled,
		TelegramBotURL:   cfg.Channels.Telegram.BotURL(),
		MessengerEnabled: cfg.Channels.Messenger.Enabled,
		MessengerURL:     cfg.Channels.Messenger.GraphURL,
		MessengerToken:   cfg.Channels.Messenger.PageToken,
		ConsoleSinkPath:  cfg.Channels.Console.SinkPath,
	}
	if err := deliveryCfg.Validate(); err != nil {
		a.close()
		return nil, fmt.Errorf("delivery config: %w", err)
	}

	generationCfg := &generateattestation.Config{
		FormURL:           cfg.Form.URL,
		DownloadsDir:      cfg.Form.DownloadsDir,
		DownloadWait:      cfg.Form.DownloadWait,
		NavigationTimeout: cfg.Form.NavigationTimeout,
	}
	if err := generationCfg.Validate(); err != nil {
		a.close()
		return nil, fmt.Errorf("generation config: %w", err)
	}

	generator := generateattestation.NewHandler(
		generationCfg,
		a.pool,
		deliverdocument.NewHandlerFromConfig(deliveryCfg, log),
		obs,
		log,
	)
	a.dispatcher = bot.NewDispatcher(store, generator, log)

	log.Info("application initialized", map[string]interface{}{
		"environment": cfg.App.Environment,
		"redis":       cfg.Redis.Enabled(),
		"telegram":    cfg.Channels.Telegram.Enabled,
		"messenger":   cfg.Channels.Messenger.Enabled,
	})
	return a, nil
}

func (a *app) newStore(ctx context.Context) (session.Store, error) {
	if !a.cfg.Redis.Enabled() {
		a.log.Info("using in-memory session store", nil)
		return session.NewMemoryStore(), nil
	}

	store := session.NewRedisStore(session.NewRedisClient(a.cfg.Redis), a.cfg.Session.TTL)
	err := retryWithBackoff(ctx, func() error {
		return store.Ping(ctx)
	}, 5, time.Second, a.log, "redis connection")
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.log.Info("redis session store connected", map[string]interface{}{"address": a.cfg.Redis.Address})
	a.closers = append(a.closers, store.Close)
	a.checks["redis"] = store.Ping
	return store, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("shutdown step failed", map[string]interface{}{"error": err})
		}
	}
	a.obs.Shutdown()
	_ = a.zapLog.Sync()
}

// retryWithBackoff attempts operation with exponential backoff.
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = operation(); err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}
		log.Warn(operationName+" failed, retrying", map[string]interface{}{
			"error":       err,
			"attempt":     i + 1,
			"maxRetries":  maxRetries,
			"nextRetryIn": delay.String(),
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
