package channels

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"derogation-bot/internal/bot"
	"derogation-bot/internal/common/errors"
	commonhttp "derogation-bot/internal/common/http"
	"derogation-bot/internal/common/logger"
	deliverdocument "derogation-bot/internal/workers/deliver-document"
)

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message,omitempty"`
}

type telegramMessage struct {
	MessageID int64         `json:"message_id"`
	Chat      *telegramChat `json:"chat,omitempty"`
	Text      *string       `json:"text,omitempty"`
}

type telegramChat struct {
	ID int64 `json:"id"`
}

type telegramUpdatesResponse struct {
	OK     bool             `json:"ok"`
	Result []telegramUpdate `json:"result"`
}

type telegramSendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Telegram long-polls the bot API and replies through sendMessage.
type Telegram struct {
	client      *commonhttp.Client
	botURL      string
	pollTimeout time.Duration
	handler     MessageHandler
	logger      logger.Logger
	retryDelay  time.Duration

	queue *sessionQueue
}

func NewTelegram(botURL string, pollTimeout time.Duration, handler MessageHandler, log logger.Logger) *Telegram {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Telegram{
		client:      commonhttp.NewClient(pollTimeout + 10*time.Second),
		botURL:      botURL,
		pollTimeout: pollTimeout,
		handler:     handler,
		logger:      log.WithFields(map[string]interface{}{"channel": deliverdocument.ChannelTelegram}),
		retryDelay:  time.Second,
		queue:       newSessionQueue(),
	}
}

// Run polls until ctx is cancelled, then waits for in-flight messages.
// Updates from one chat are handled in the order the API returned them.
func (t *Telegram) Run(ctx context.Context) error {
	defer t.queue.Wait()
	t.logger.Info("telegram polling started", nil)

	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, next, err := t.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			t.logger.Warn("telegram getUpdates failed", map[string]interface{}{"error": err})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(t.retryDelay):
			}
			continue
		}
		offset = next

		for _, u := range updates {
			msg, ok := telegramToMessage(u)
			if !ok {
				continue
			}
			t.queue.Submit(msg.SessionID, func() {
				_ = t.handler.Handle(context.WithoutCancel(ctx), msg, t)
			})
		}
	}
}

func telegramToMessage(u telegramUpdate) (bot.Message, bool) {
	if u.Message == nil || u.Message.Chat == nil {
		return bot.Message{}, false
	}
	chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
	msg := bot.Message{
		SessionID: string(deliverdocument.ChannelTelegram) + ":" + chatID,
		Channel:   deliverdocument.ChannelTelegram,
		Recipient: chatID,
	}
	if u.Message.Text != nil {
		msg.Text = *u.Message.Text
		msg.IsText = true
	}
	return msg, true
}

func (t *Telegram) getUpdates(ctx context.Context, offset int64) ([]telegramUpdate, int64, error) {
	url := fmt.Sprintf("%s/getUpdates?timeout=%d", t.botURL, int(t.pollTimeout.Seconds()))
	if offset > 0 {
		url += fmt.Sprintf("&offset=%d", offset)
	}

	var out telegramUpdatesResponse
	resp, err := t.client.GetJSON(ctx, url, &out)
	if err != nil {
		return nil, offset, err
	}
	if !resp.OK() {
		return nil, offset, errors.NewChannelAPIFailedError(string(deliverdocument.ChannelTelegram), resp.StatusCode, string(resp.Body))
	}
	if !out.OK {
		return nil, offset, fmt.Errorf("telegram getUpdates: ok=false")
	}

	next := offset
	for _, u := range out.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out.Result, next, nil
}

// SendText implements bot.Replier.
func (t *Telegram) SendText(ctx context.Context, recipient, text string) error {
	resp, err := t.client.PostJSON(ctx, t.botURL+"/sendMessage", telegramSendMessageRequest{
		ChatID: recipient,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if !resp.OK() {
		return errors.NewChannelAPIFailedError(string(deliverdocument.ChannelTelegram), resp.StatusCode, string(resp.Body))
	}
	return nil
}
