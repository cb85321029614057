// Package channels binds chat platforms to the dispatcher: it turns platform
// events into bot messages and sends text replies back.
package channels

import (
	"context"

	"derogation-bot/internal/bot"
)

// MessageHandler consumes one inbound message. *bot.Dispatcher satisfies it.
type MessageHandler interface {
	Handle(ctx context.Context, msg bot.Message, replier bot.Replier) error
}
