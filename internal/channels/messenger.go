package channels

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"

	"derogation-bot/internal/bot"
	"derogation-bot/internal/common/errors"
	commonhttp "derogation-bot/internal/common/http"
	"derogation-bot/internal/common/logger"
	deliverdocument "derogation-bot/internal/workers/deliver-document"
)

type messengerEvent struct {
	Object string           `json:"object"`
	Entry  []messengerEntry `json:"entry"`
}

type messengerEntry struct {
	Messaging []messengerMessaging `json:"messaging"`
}

type messengerMessaging struct {
	Sender  messengerParty    `json:"sender"`
	Message *messengerMessage `json:"message,omitempty"`
}

type messengerParty struct {
	ID string `json:"id"`
}

type messengerMessage struct {
	Text   *string `json:"text,omitempty"`
	IsEcho bool    `json:"is_echo,omitempty"`
}

type messengerSendRequest struct {
	MessagingType string         `json:"messaging_type"`
	Recipient     messengerParty `json:"recipient"`
	Message       struct {
		Text string `json:"text"`
	} `json:"message"`
}

// Messenger receives page webhook events and replies through the Send API.
type Messenger struct {
	client      *commonhttp.Client
	graphURL    string
	pageToken   string
	verifyToken string
	handler     MessageHandler
	logger      logger.Logger

	ctx   context.Context
	queue *sessionQueue
}

// NewMessenger creates the webhook binding. Events are handled under ctx,
// after the webhook request has been acknowledged.
func NewMessenger(ctx context.Context, graphURL, pageToken, verifyToken string, handler MessageHandler, log logger.Logger) *Messenger {
	return &Messenger{
		client:      commonhttp.NewClient(30 * time.Second),
		graphURL:    graphURL,
		pageToken:   pageToken,
		verifyToken: verifyToken,
		handler:     handler,
		logger:      log.WithFields(map[string]interface{}{"channel": deliverdocument.ChannelMessenger}),
		ctx:         ctx,
		queue:       newSessionQueue(),
	}
}

// Verify answers the webhook subscription handshake.
func (m *Messenger) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != m.verifyToken || m.verifyToken == "" {
		m.logger.Warn("webhook verification rejected", nil)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// Receive acknowledges a webhook delivery and handles its messages in the background,
// in order per sender.
func (m *Messenger) Receive(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var event messengerEvent
	if err := sonic.Unmarshal(raw, &event); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if event.Object != "page" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	for _, msg := range messengerToMessages(event) {
		m.queue.Submit(msg.SessionID, func() {
			_ = m.handler.Handle(m.ctx, msg, m)
		})
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "EVENT_RECEIVED")
}

func messengerToMessages(event messengerEvent) []bot.Message {
	var out []bot.Message
	for _, entry := range event.Entry {
		for _, ev := range entry.Messaging {
			if ev.Message == nil || ev.Message.IsEcho || ev.Sender.ID == "" {
				continue
			}
			msg := bot.Message{
				SessionID: string(deliverdocument.ChannelMessenger) + ":" + ev.Sender.ID,
				Channel:   deliverdocument.ChannelMessenger,
				Recipient: ev.Sender.ID,
			}
			if ev.Message.Text != nil {
				msg.Text = *ev.Message.Text
				msg.IsText = true
			}
			out = append(out, msg)
		}
	}
	return out
}

// Wait blocks until every accepted event has been handled.
func (m *Messenger) Wait() {
	m.queue.Wait()
}

// SendText implements bot.Replier.
func (m *Messenger) SendText(ctx context.Context, recipient, text string) error {
	req := messengerSendRequest{
		MessagingType: "RESPONSE",
		Recipient:     messengerParty{ID: recipient},
	}
	req.Message.Text = text

	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", m.graphURL, url.QueryEscape(m.pageToken))
	resp, err := m.client.PostJSON(ctx, endpoint, req)
	if err != nil {
		return fmt.Errorf("messenger send: %w", err)
	}
	if !resp.OK() {
		return errors.NewChannelAPIFailedError(string(deliverdocument.ChannelMessenger), resp.StatusCode, string(resp.Body))
	}
	return nil
}
