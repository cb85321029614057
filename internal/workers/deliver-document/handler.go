package deliverdocument

import (
	"context"
	"time"

	"derogation-bot/internal/common/errors"
	commonhttp "derogation-bot/internal/common/http"
	"derogation-bot/internal/common/logger"
	"derogation-bot/internal/common/metrics"
)

const TaskType = "deliver-document"

// Handler routes a document to the Deliverer registered for its channel.
type Handler struct {
	deliverers map[Channel]Deliverer
	logger     logger.Logger
}

func NewHandler(log logger.Logger) *Handler {
	return &Handler{
		deliverers: make(map[Channel]Deliverer),
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// NewHandlerFromConfig registers the deliverers enabled in cfg. Console is always available.
func NewHandlerFromConfig(cfg *Config, log logger.Logger) *Handler {
	h := NewHandler(log)
	client := commonhttp.NewClient(cfg.Timeout)
	if cfg.TelegramEnabled {
		h.Register(ChannelTelegram, NewTelegramDeliverer(client, cfg.TelegramBotURL))
	}
	if cfg.MessengerEnabled {
		h.Register(ChannelMessenger, NewMessengerDeliverer(client, cfg.MessengerURL, cfg.MessengerToken))
	}
	h.Register(ChannelConsole, NewConsoleDeliverer(cfg.ConsoleSinkPath))
	return h
}

// Register binds d to channel, replacing any previous binding.
func (h *Handler) Register(channel Channel, d Deliverer) {
	h.deliverers[channel] = d
}

// Deliver sends req.Path through the channel's deliverer. A channel without a
// deliverer is skipped without error.
func (h *Handler) Deliver(ctx context.Context, req Request) error {
	d, ok := h.deliverers[req.Channel]
	if !ok {
		h.logger.Debug("no deliverer for channel, skipping", map[string]interface{}{
			"channel": req.Channel,
		})
		metrics.DeliveriesTotal.WithLabelValues(string(req.Channel), "skipped").Inc()
		return nil
	}

	start := time.Now()
	if err := d.Deliver(ctx, req); err != nil {
		h.logger.Error("document delivery failed", map[string]interface{}{
			"channel":   req.Channel,
			"recipient": req.Recipient,
			"error":     err,
		})
		metrics.DeliveriesTotal.WithLabelValues(string(req.Channel), "failed").Inc()
		return errors.NewDeliveryFailedError(string(req.Channel), err)
	}

	h.logger.Info("document delivered", map[string]interface{}{
		"channel":    req.Channel,
		"recipient":  req.Recipient,
		"durationMs": time.Since(start).Milliseconds(),
	})
	metrics.DeliveriesTotal.WithLabelValues(string(req.Channel), "delivered").Inc()
	return nil
}
