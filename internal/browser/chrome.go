package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"derogation-bot/internal/common/logger"
)

// ChromeOptions configures the launched Chrome process.
type ChromeOptions struct {
	ExecPath     string
	Headless     bool
	NoSandbox    bool
	StartTimeout time.Duration
}

// NewChromeStarter returns a StartFunc that launches Chrome through chromedp.
func NewChromeStarter(opts ChromeOptions, log logger.Logger) StartFunc {
	return func(ctx context.Context) (Engine, error) {
		allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if !opts.Headless {
			allocOpts = append(allocOpts, chromedp.Flag("headless", false))
		}
		if opts.NoSandbox {
			allocOpts = append(allocOpts, chromedp.NoSandbox, chromedp.Flag("disable-setuid-sandbox", true))
		}
		if opts.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
		}

		allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx,
			chromedp.WithErrorf(func(format string, args ...interface{}) {
				log.Warn("chromedp", map[string]interface{}{"detail": fmt.Sprintf(format, args...)})
			}),
		)

		// The first Run allocates the browser; it must not run on a context with a deadline
		// or the process dies with it.
		done := make(chan error, 1)
		go func() { done <- chromedp.Run(browserCtx) }()

		timeout := opts.StartTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		select {
		case err := <-done:
			if err != nil {
				browserCancel()
				allocCancel()
				return nil, fmt.Errorf("launch chrome: %w", err)
			}
		case <-time.After(timeout):
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("launch chrome: timed out after %s", timeout)
		}

		return &chromeEngine{
			ctx:         browserCtx,
			cancel:      browserCancel,
			allocCancel: allocCancel,
			logger:      log,
		}, nil
	}
}

type chromeEngine struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      logger.Logger
}

// NewPage opens a tab inside a fresh browser context, so cookies and the
// download folder of one page never leak into another.
func (e *chromeEngine) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(e.ctx, chromedp.WithNewBrowserContext())

	p := &chromePage{
		ctx:    tabCtx,
		cancel: cancel,
		logger: e.logger,
	}
	chromedp.ListenTarget(tabCtx, p.onEvent)

	// The first Run creates the tab and binds its event loop to the context it
	// is given, so it gets tabCtx itself rather than a derived one.
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(tabCtx,
			network.Enable(),
			runtime.Enable(),
			page.SetLifecycleEventsEnabled(true),
		)
	}()

	select {
	case err := <-done:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("open page: %w", err)
		}
	case <-ctx.Done():
		cancel()
		return nil, fmt.Errorf("open page: %w", ctx.Err())
	}
	return p, nil
}

func (e *chromeEngine) Close() error {
	err := chromedp.Cancel(e.ctx)
	e.cancel()
	e.allocCancel()
	return err
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger logger.Logger

	mu        sync.Mutex
	lifecycle func(*page.EventLifecycleEvent)
	closeOnce sync.Once
}

// run executes actions on the tab, aborting when the caller's ctx is done.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) AllowDownloads(ctx context.Context, dir string) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		params := browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(dir).
			WithEventsEnabled(true)
		if c := chromedp.FromContext(ctx); c != nil && c.BrowserContextID != "" {
			params = params.WithBrowserContextID(c.BrowserContextID)
		}
		return params.Do(ctx)
	}))
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	idle := make(chan struct{})
	var (
		once      sync.Once
		mainFrame cdp.FrameID
	)
	p.setLifecycle(func(ev *page.EventLifecycleEvent) {
		switch ev.Name {
		case "init":
			if mainFrame == "" {
				mainFrame = ev.FrameID
			}
		case "networkIdle":
			if mainFrame != "" && ev.FrameID == mainFrame {
				once.Do(func() { close(idle) })
			}
		}
	})
	defer p.setLifecycle(nil)

	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return err
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for network idle: %w", ctx.Err())
	}
}

func (p *chromePage) Type(ctx context.Context, selector, text string) error {
	return p.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (p *chromePage) SetValue(ctx context.Context, selector, value string) error {
	return p.run(ctx, chromedp.SetValue(selector, value, chromedp.ByQuery))
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// Close closes the tab and disposes its browser context, waiting for both.
func (p *chromePage) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = chromedp.Cancel(p.ctx)
		p.cancel()
	})
	return err
}

func (p *chromePage) setLifecycle(fn func(*page.EventLifecycleEvent)) {
	p.mu.Lock()
	p.lifecycle = fn
	p.mu.Unlock()
}

// onEvent mirrors page diagnostics into the debug log. It runs on the
// chromedp event loop and must not block.
func (p *chromePage) onEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *page.EventLifecycleEvent:
		p.mu.Lock()
		fn := p.lifecycle
		p.mu.Unlock()
		if fn != nil {
			fn(ev)
		}
	case *runtime.EventConsoleAPICalled:
		args := make([]string, 0, len(ev.Args))
		for _, arg := range ev.Args {
			if len(arg.Value) > 0 {
				args = append(args, string(arg.Value))
			} else {
				args = append(args, arg.Description)
			}
		}
		kind := strings.ToUpper(string(ev.Type))
		if len(kind) > 3 {
			kind = kind[:3]
		}
		p.logger.Debug("page console", map[string]interface{}{"type": kind, "text": strings.Join(args, " ")})
	case *runtime.EventExceptionThrown:
		if ev.ExceptionDetails == nil {
			return
		}
		msg := ev.ExceptionDetails.Text
		if ev.ExceptionDetails.Exception != nil && ev.ExceptionDetails.Exception.Description != "" {
			msg = ev.ExceptionDetails.Exception.Description
		}
		p.logger.Debug("page error", map[string]interface{}{"message": msg})
	case *network.EventResponseReceived:
		if ev.Response != nil {
			p.logger.Debug("page response", map[string]interface{}{"status": ev.Response.Status, "url": ev.Response.URL})
		}
	case *network.EventLoadingFailed:
		p.logger.Debug("page request failed", map[string]interface{}{"error": ev.ErrorText, "requestId": string(ev.RequestID)})
	}
}
