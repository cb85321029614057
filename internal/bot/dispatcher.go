// Package bot routes inbound chat messages to the dialogue, the generation
// workflow or one of the static replies.
package bot

import (
	"context"
	"strings"

	"derogation-bot/internal/common/errors"
	"derogation-bot/internal/common/logger"
	"derogation-bot/internal/common/metrics"
	"derogation-bot/internal/dialogue"
	"derogation-bot/internal/reasons"
	"derogation-bot/internal/session"
	deliverdocument "derogation-bot/internal/workers/deliver-document"
	generateattestation "derogation-bot/internal/workers/generate-attestation"
)

// Message is one inbound event from a chat platform.
type Message struct {
	SessionID string
	Channel   deliverdocument.Channel
	Recipient string
	Text      string
	// IsText is false for stickers, attachments and other non-text events.
	IsText bool
}

// Replier sends a text message back to a recipient on the message's channel.
type Replier interface {
	SendText(ctx context.Context, recipient, text string) error
}

// Generator runs the generation workflow.
type Generator interface {
	Execute(ctx context.Context, input *generateattestation.Input) *generateattestation.Output
}

// Route names the handler a message was dispatched to.
type Route string

const (
	RouteDialogue      Route = "dialogue"
	RouteGreeting      Route = "greeting"
	RouteFill          Route = "fill"
	RouteDerogation    Route = "derogation"
	RouteReset         Route = "reset"
	RouteNotUnderstood Route = "not_understood"
)

type Dispatcher struct {
	store     session.Store
	generator Generator
	logger    logger.Logger
	locks     *keyedMutex
}

func NewDispatcher(store session.Store, generator Generator, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		generator: generator,
		logger:    log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		locks:     newKeyedMutex(),
	}
}

// conversation sends replies for one inbound message.
type conversation struct {
	ctx     context.Context
	msg     Message
	replier Replier
	logger  logger.Logger
}

func (c *conversation) say(texts ...string) {
	for _, t := range texts {
		if err := c.replier.SendText(c.ctx, c.msg.Recipient, t); err != nil {
			c.logger.Warn("failed to send reply", map[string]interface{}{"error": err})
		}
	}
}

// Classify picks the route for msg given the session snapshot.
// A session waiting for a field answer always goes to the dialogue.
func Classify(st dialogue.State, msg Message) Route {
	if !msg.IsText {
		return RouteNotUnderstood
	}
	if st.Awaiting() {
		return RouteDialogue
	}
	first, _ := splitFirst(msg.Text)
	word := reasons.Normalize(first)
	switch {
	case contains(GreetingTriggers, word):
		return RouteGreeting
	case contains(FillTriggers, word):
		return RouteFill
	case contains(DerogationTriggers, word):
		return RouteDerogation
	case contains(ResetTriggers, word):
		return RouteReset
	default:
		return RouteNotUnderstood
	}
}

// Handle processes msg end to end. Messages of one session are handled one
// at a time. The returned error is informational; the user has already been
// told when something failed.
func (d *Dispatcher) Handle(ctx context.Context, msg Message, replier Replier) error {
	unlock := d.locks.Lock(msg.SessionID)
	defer unlock()

	log := d.logger.WithFields(map[string]interface{}{
		"sessionId": msg.SessionID,
		"channel":   msg.Channel,
	})
	conv := &conversation{ctx: ctx, msg: msg, replier: replier, logger: log}

	prev, err := d.store.Get(ctx, msg.SessionID)
	if err != nil {
		log.Error("failed to load session", map[string]interface{}{"error": err})
		conv.say(MsgUnexpected)
		return errors.NewSessionStoreFailedError("get", err)
	}

	route := Classify(prev, msg)
	metrics.MessagesTotal.WithLabelValues(string(route)).Inc()
	log.Debug("message routed", map[string]interface{}{"route": route})

	next := prev
	switch route {
	case RouteDialogue, RouteFill:
		next = d.handleFill(conv, prev)
	case RouteGreeting:
		conv.say(MsgGreeting)
		conv.say(HelpText()...)
	case RouteDerogation:
		d.handleDerogation(conv, prev)
	case RouteReset:
		var replies []string
		next, replies = dialogue.Reset()
		conv.say(replies...)
	default:
		conv.say(MsgNotUnderstood)
		conv.say(HelpText()...)
	}

	if err := session.Commit(ctx, d.store, msg.SessionID, prev, next); err != nil {
		log.Error("failed to save session", map[string]interface{}{"error": err})
		conv.say(MsgUnexpected)
		return errors.NewSessionStoreFailedError("commit", err)
	}
	return nil
}

func (d *Dispatcher) handleFill(conv *conversation, st dialogue.State) dialogue.State {
	next, replies := dialogue.Fill(st, conv.msg.Text)
	conv.say(replies...)
	return next
}

func (d *Dispatcher) handleDerogation(conv *conversation, st dialogue.State) {
	if !st.IsValidDetails() {
		conv.say(dialogue.MsgIncomplete)
		return
	}

	first, rest := splitFirst(conv.msg.Text)
	reasonText := reasons.Normalize(rest)
	if reasonText == "" {
		conv.say(usageText(first)...)
		return
	}

	code, ok := reasons.Lookup(reasonText)
	if !ok {
		conv.say(unknownReasonText())
		return
	}

	conv.say(MsgWorking)

	// generation is not cancelled if the inbound request goes away
	out := d.generator.Execute(context.WithoutCancel(conv.ctx), &generateattestation.Input{
		SessionID: conv.msg.SessionID,
		Channel:   conv.msg.Channel,
		Recipient: conv.msg.Recipient,
		Details:   st.Clone().Details,
		Reason:    code,
	})
	if out == nil {
		conv.say(MsgUnexpected)
		return
	}
	conv.logger.Info("generation outcome", map[string]interface{}{
		"attemptId": out.AttemptID,
		"status":    out.Status,
		"reason":    code,
	})
	if out.Message != "" {
		conv.say(out.Message)
	}
}

// splitFirst returns the first whitespace-delimited word and the rest joined by single spaces.
func splitFirst(text string) (string, string) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return "", ""
	}
	return words[0], strings.Join(words[1:], " ")
}
