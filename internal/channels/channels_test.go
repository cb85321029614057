package channels

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"derogation-bot/internal/bot"
	"derogation-bot/internal/common/logger"
	deliverdocument "derogation-bot/internal/workers/deliver-document"
)

// ==========================
// Test Helper Functions
// ==========================

// echoHandler records messages and answers each text with "echo: <text>".
type echoHandler struct {
	mu       sync.Mutex
	messages []bot.Message
	received chan struct{}
}

func newEchoHandler() *echoHandler {
	return &echoHandler{received: make(chan struct{}, 64)}
}

func (e *echoHandler) Handle(ctx context.Context, msg bot.Message, replier bot.Replier) error {
	e.mu.Lock()
	e.messages = append(e.messages, msg)
	e.mu.Unlock()
	if msg.IsText {
		_ = replier.SendText(ctx, msg.Recipient, "echo: "+msg.Text)
	}
	e.received <- struct{}{}
	return nil
}

func (e *echoHandler) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-e.received:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i+1)
		}
	}
}

func (e *echoHandler) snapshot() []bot.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]bot.Message(nil), e.messages...)
}

// ==========================
// Telegram
// ==========================

func TestTelegram_PollsAndReplies(t *testing.T) {
	var (
		mu      sync.Mutex
		offsets []string
		sent    []telegramSendMessageRequest
		served  bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			mu.Lock()
			offsets = append(offsets, r.URL.Query().Get("offset"))
			first := !served
			served = true
			mu.Unlock()
			if first {
				_, _ = io.WriteString(w, `{"ok":true,"result":[
					{"update_id":1,"message":{"message_id":10,"chat":{"id":42},"text":"  hi  "}},
					{"update_id":2,"message":{"message_id":11,"chat":{"id":42}}},
					{"update_id":3}
				]}`)
				return
			}
			time.Sleep(10 * time.Millisecond)
			_, _ = io.WriteString(w, `{"ok":true,"result":[]}`)
		case "/botTOKEN/sendMessage":
			var req telegramSendMessageRequest
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, sonic.Unmarshal(body, &req))
			mu.Lock()
			sent = append(sent, req)
			mu.Unlock()
			_, _ = io.WriteString(w, `{"ok":true}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	handler := newEchoHandler()
	tg := NewTelegram(srv.URL+"/botTOKEN", time.Second, handler, logger.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tg.Run(ctx) }()

	handler.wait(t, 2)
	cancel()
	require.NoError(t, <-done)

	msgs := handler.snapshot()
	require.Len(t, msgs, 2)
	byText := map[bool]bot.Message{}
	for _, m := range msgs {
		byText[m.IsText] = m
	}
	assert.Equal(t, bot.Message{
		SessionID: "telegram:42",
		Channel:   deliverdocument.ChannelTelegram,
		Recipient: "42",
		Text:      "  hi  ",
		IsText:    true,
	}, byText[true])
	assert.False(t, byText[false].IsText)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1)
	assert.Equal(t, telegramSendMessageRequest{ChatID: "42", Text: "echo:   hi  "}, sent[0])
	require.GreaterOrEqual(t, len(offsets), 2)
	assert.Equal(t, "", offsets[0])
	assert.Equal(t, "4", offsets[1])
}

func TestTelegram_RetriesAfterAPIError(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if n == 2 {
			_, _ = io.WriteString(w, `{"ok":true,"result":[{"update_id":7,"message":{"chat":{"id":1},"text":"fill"}}]}`)
			return
		}
		time.Sleep(10 * time.Millisecond)
		_, _ = io.WriteString(w, `{"ok":true,"result":[]}`)
	}))
	defer srv.Close()

	handler := newEchoHandler()
	tg := NewTelegram(srv.URL+"/botX", time.Second, handler, logger.NewTestLogger(t))
	tg.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tg.Run(ctx) }()

	handler.wait(t, 1)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, "fill", handler.snapshot()[0].Text)
}

// ==========================
// Messenger
// ==========================

func TestMessenger_Verify(t *testing.T) {
	m := NewMessenger(context.Background(), "http://unused", "page", "secret", newEchoHandler(), logger.NewTestLogger(t))

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"valid handshake", "hub.mode=subscribe&hub.verify_token=secret&hub.challenge=1158201444", http.StatusOK, "1158201444"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=secret&hub.challenge=1", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			m.Verify(rec, httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestMessenger_ReceiveAndReply(t *testing.T) {
	var (
		mu    sync.Mutex
		sends []messengerSendRequest
		token string
	)
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req messengerSendRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(body, &req))
		mu.Lock()
		sends = append(sends, req)
		token = r.URL.Query().Get("access_token")
		mu.Unlock()
		_, _ = io.WriteString(w, `{"recipient_id":"psid-1","message_id":"m1"}`)
	}))
	defer graph.Close()

	handler := newEchoHandler()
	m := NewMessenger(context.Background(), graph.URL, "page-token", "secret", handler, logger.NewTestLogger(t))

	payload := `{"object":"page","entry":[{"messaging":[
		{"sender":{"id":"psid-1"},"message":{"text":"please travail"}},
		{"sender":{"id":"psid-1"},"message":{"text":"echoed","is_echo":true}},
		{"sender":{"id":"psid-2"},"message":{}},
		{"sender":{"id":"psid-3"}}
	]}]}`
	rec := httptest.NewRecorder()
	m.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload)))
	m.Wait()

	assert.Equal(t, http.StatusOK, rec.Code)
	msgs := handler.snapshot()
	require.Len(t, msgs, 2)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sends, 1)
	assert.Equal(t, "psid-1", sends[0].Recipient.ID)
	assert.Equal(t, "echo: please travail", sends[0].Message.Text)
	assert.Equal(t, "RESPONSE", sends[0].MessagingType)
	assert.Equal(t, "page-token", token)
}

func TestMessenger_ReceiveRejectsOtherObjects(t *testing.T) {
	handler := newEchoHandler()
	m := NewMessenger(context.Background(), "http://unused", "page", "secret", handler, logger.NewTestLogger(t))

	rec := httptest.NewRecorder()
	m.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"object":"user"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	m.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	m.Wait()
	assert.Empty(t, handler.snapshot())
}

// ==========================
// Console
// ==========================

func TestConsole_Run(t *testing.T) {
	handler := newEchoHandler()
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("hi\n\n  fill  \n"), &out, handler, logger.NewTestLogger(t))

	require.NoError(t, c.Run(context.Background()))

	msgs := handler.snapshot()
	require.Len(t, msgs, 3)
	assert.Equal(t, "console", msgs[0].SessionID)
	assert.Equal(t, deliverdocument.ChannelConsole, msgs[0].Channel)
	assert.True(t, msgs[1].IsText)
	assert.Equal(t, "", msgs[1].Text)
	assert.Equal(t, "  fill  ", msgs[2].Text)
	assert.Equal(t, "echo: hi\necho: \necho:   fill  \n", out.String())
}

func TestConsole_KeepsLinesVerbatim(t *testing.T) {
	handler := newEchoHandler()
	c := NewConsole(strings.NewReader("  Jean-Éric  \r\n   \n"), io.Discard, handler, logger.NewTestLogger(t))

	require.NoError(t, c.Run(context.Background()))

	msgs := handler.snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, "  Jean-Éric  ", msgs[0].Text)
	assert.True(t, msgs[1].IsText)
	assert.Equal(t, "   ", msgs[1].Text)
}
