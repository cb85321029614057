package deliverdocument

import (
	"context"
	"fmt"

	"derogation-bot/internal/common/errors"
	commonhttp "derogation-bot/internal/common/http"
)

// TelegramDeliverer posts the document to the bot API sendDocument endpoint.
type TelegramDeliverer struct {
	client *commonhttp.Client
	botURL string
}

// NewTelegramDeliverer takes the bot root, e.g. https://api.telegram.org/bot<token>.
func NewTelegramDeliverer(client *commonhttp.Client, botURL string) *TelegramDeliverer {
	return &TelegramDeliverer{client: client, botURL: botURL}
}

func (t *TelegramDeliverer) Deliver(ctx context.Context, req Request) error {
	resp, err := t.client.PostMultipart(ctx, t.botURL+"/sendDocument",
		map[string]string{"chat_id": req.Recipient},
		commonhttp.FilePart{Field: "document", Path: req.Path},
	)
	if err != nil {
		return fmt.Errorf("telegram sendDocument: %w", err)
	}
	if !resp.OK() {
		return errors.NewChannelAPIFailedError(string(ChannelTelegram), resp.StatusCode, string(resp.Body))
	}
	return nil
}
