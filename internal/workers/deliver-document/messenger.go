package deliverdocument

import (
	"context"
	"fmt"
	"net/url"

	"github.com/bytedance/sonic"

	"derogation-bot/internal/common/errors"
	commonhttp "derogation-bot/internal/common/http"
)

// MessengerDeliverer uploads the document as a file attachment through the Send API.
type MessengerDeliverer struct {
	client   *commonhttp.Client
	graphURL string
	token    string
}

func NewMessengerDeliverer(client *commonhttp.Client, graphURL, pageToken string) *MessengerDeliverer {
	return &MessengerDeliverer{client: client, graphURL: graphURL, token: pageToken}
}

func (m *MessengerDeliverer) Deliver(ctx context.Context, req Request) error {
	recipient, err := sonic.MarshalString(messengerRecipient{ID: req.Recipient})
	if err != nil {
		return fmt.Errorf("encode recipient: %w", err)
	}
	var msg messengerAttachment
	msg.Attachment.Type = "file"
	message, err := sonic.MarshalString(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", m.graphURL, url.QueryEscape(m.token))
	resp, err := m.client.PostMultipart(ctx, endpoint,
		map[string]string{"recipient": recipient, "message": message},
		commonhttp.FilePart{Field: "filedata", Path: req.Path},
	)
	if err != nil {
		return fmt.Errorf("messenger send: %w", err)
	}
	if !resp.OK() {
		return errors.NewChannelAPIFailedError(string(ChannelMessenger), resp.StatusCode, string(resp.Body))
	}
	return nil
}
