package browser

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"derogation-bot/internal/common/logger"
)

func findChrome(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no chrome binary on PATH")
	return ""
}

func TestChromePage_CloseDisposesTarget(t *testing.T) {
	start := NewChromeStarter(ChromeOptions{
		ExecPath:     findChrome(t),
		Headless:     true,
		NoSandbox:    true,
		StartTimeout: 30 * time.Second,
	}, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	engine, err := start(ctx)
	require.NoError(t, err)
	defer engine.Close()

	pg, err := engine.NewPage(ctx)
	require.NoError(t, err)
	id := chromedp.FromContext(pg.(*chromePage).ctx).Target.TargetID

	require.NoError(t, pg.Close())
	assert.NoError(t, pg.Close())

	targets, err := chromedp.Targets(engine.(*chromeEngine).ctx)
	require.NoError(t, err)
	for _, info := range targets {
		assert.NotEqual(t, id, info.TargetID)
	}
}
