package channels

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"derogation-bot/internal/bot"
	"derogation-bot/internal/common/logger"
	deliverdocument "derogation-bot/internal/workers/deliver-document"
)

const consoleSession = "console"

// Console reads one message per line and prints replies.
type Console struct {
	in      io.Reader
	out     io.Writer
	handler MessageHandler
	logger  logger.Logger

	mu sync.Mutex
}

func NewConsole(in io.Reader, out io.Writer, handler MessageHandler, log logger.Logger) *Console {
	return &Console{
		in:      in,
		out:     out,
		handler: handler,
		logger:  log.WithFields(map[string]interface{}{"channel": deliverdocument.ChannelConsole}),
	}
}

// Run handles lines until the input ends or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errCh:
					return err
				default:
					return nil
				}
			}
			msg := bot.Message{
				SessionID: consoleSession,
				Channel:   deliverdocument.ChannelConsole,
				Recipient: consoleSession,
				Text:      strings.TrimSuffix(line, "\r"),
				IsText:    true,
			}
			if err := c.handler.Handle(ctx, msg, c); err != nil {
				c.logger.Warn("message handling failed", map[string]interface{}{"error": err})
			}
		}
	}
}

// SendText implements bot.Replier.
func (c *Console) SendText(_ context.Context, _ string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, text)
	return err
}
