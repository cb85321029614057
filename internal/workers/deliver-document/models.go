package deliverdocument

import (
	"context"
	"strings"
)

// Channel identifies the messaging platform a conversation runs on.
type Channel string

const (
	ChannelMessenger Channel = "messenger"
	ChannelTelegram  Channel = "telegram"
	ChannelConsole   Channel = "console"
	ChannelUnknown   Channel = "unknown"
)

// ParseChannel maps a platform name to a Channel. Anything unrecognised is ChannelUnknown.
func ParseChannel(s string) Channel {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelMessenger:
		return ChannelMessenger
	case ChannelTelegram:
		return ChannelTelegram
	case ChannelConsole:
		return ChannelConsole
	default:
		return ChannelUnknown
	}
}

// Request asks for one document to be sent to one recipient.
type Request struct {
	Channel   Channel `json:"channel"`
	Recipient string  `json:"recipient"`
	Path      string  `json:"path"`
}

// Deliverer sends a document through one channel's native document-send primitive.
type Deliverer interface {
	Deliver(ctx context.Context, req Request) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, req Request) error

func (f DelivererFunc) Deliver(ctx context.Context, req Request) error {
	return f(ctx, req)
}

type messengerRecipient struct {
	ID string `json:"id"`
}

type messengerAttachment struct {
	Attachment struct {
		Type    string `json:"type"`
		Payload struct {
			IsReusable bool `json:"is_reusable"`
		} `json:"payload"`
	} `json:"attachment"`
}
