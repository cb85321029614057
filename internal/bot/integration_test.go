package bot_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"derogation-bot/internal/bot"
	"derogation-bot/internal/browser"
	"derogation-bot/internal/browser/browsertest"
	"derogation-bot/internal/common/logger"
	"derogation-bot/internal/dialogue"
	"derogation-bot/internal/session"
	deliverdocument "derogation-bot/internal/workers/deliver-document"
	generateattestation "derogation-bot/internal/workers/generate-attestation"
)

type transcript struct {
	mu   sync.Mutex
	sent []string
}

func (tr *transcript) SendText(_ context.Context, _ string, text string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.sent = append(tr.sent, text)
	return nil
}

func (tr *transcript) last() string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.sent[len(tr.sent)-1]
}

// TestConversation_EndToEnd drives a console conversation from greeting to a
// delivered document, with sessions in redis and a scripted browser.
func TestConversation_EndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewRedisStore(client, time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	engine := &browsertest.Engine{Configure: func(p *browsertest.Page) {
		p.DownloadTrigger = "#generate-btn"
		p.DownloadName = "attestation.pdf"
		p.DownloadContent = []byte("%PDF-1.4 end-to-end")
	}}
	pool := browser.NewPool(func(context.Context) (browser.Engine, error) { return engine, nil }, logger.NewNoOpLogger())
	t.Cleanup(func() { _ = pool.Close() })

	sink := filepath.Join(t.TempDir(), "attestation.pdf")
	delivery := deliverdocument.NewHandler(logger.NewTestLogger(t))
	delivery.Register(deliverdocument.ChannelConsole, deliverdocument.NewConsoleDeliverer(sink))

	genCfg := generateattestation.DefaultConfig()
	genCfg.DownloadsDir = t.TempDir()
	genCfg.DownloadWait = 0
	generator := generateattestation.NewHandler(genCfg, pool, delivery, nil, logger.NewTestLogger(t))

	d := bot.NewDispatcher(store, generator, logger.NewTestLogger(t))
	tr := &transcript{}
	say := func(text string) {
		require.NoError(t, d.Handle(context.Background(), bot.Message{
			SessionID: "console",
			Channel:   deliverdocument.ChannelConsole,
			Recipient: "console",
			Text:      text,
			IsText:    true,
		}, tr))
	}

	say("hello")
	say("please travail")
	assert.Equal(t, dialogue.MsgIncomplete, tr.last())

	say("fill")
	for _, answer := range []string{"Jane", "Doe", "01/02/1990", "Paris", "1 Rue X", "Paris", "75000"} {
		say(answer)
	}
	assert.Equal(t, dialogue.MsgAllSet, tr.last())

	say("please travail")
	assert.Equal(t, bot.MsgWorking, tr.last())

	data, err := os.ReadFile(sink)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 end-to-end", string(data))

	pages := engine.Pages()
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].CloseCount())
	entries, err := os.ReadDir(genCfg.DownloadsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	say("reset")
	st, err := store.Get(context.Background(), "console")
	require.NoError(t, err)
	assert.Empty(t, st.Details)
	assert.Equal(t, dialogue.MsgForgotten, tr.last())
}
