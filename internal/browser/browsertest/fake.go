// Package browsertest provides scripted in-memory browser engines for tests.
package browsertest

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"derogation-bot/internal/browser"
)

// Call records one page action.
type Call struct {
	Method   string
	Selector string
	Value    string
}

// Engine hands out Page fakes and remembers them.
type Engine struct {
	// Configure, when set, customizes each new page before it is returned.
	Configure func(p *Page)
	// NewPageErr fails NewPage.
	NewPageErr error

	mu     sync.Mutex
	pages  []*Page
	closed bool
}

func (e *Engine) NewPage(_ context.Context) (browser.Page, error) {
	if e.NewPageErr != nil {
		return nil, e.NewPageErr
	}
	p := &Page{}
	if e.Configure != nil {
		e.Configure(p)
	}
	e.mu.Lock()
	e.pages = append(e.pages, p)
	e.mu.Unlock()
	return p, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

// Pages returns every page opened so far.
func (e *Engine) Pages() []*Page {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Page(nil), e.pages...)
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Page records actions. Clicking DownloadTrigger writes DownloadName into the
// download folder, which mimics the form producing a file.
type Page struct {
	DownloadTrigger string
	DownloadName    string
	DownloadContent []byte

	// FailOn makes the method/selector pair ("Type:#field-city") return the error.
	FailOn map[string]error
	// PanicOn makes the method/selector pair panic.
	PanicOn map[string]bool

	mu          sync.Mutex
	calls       []Call
	downloadDir string
	closeCount  int
}

func (p *Page) record(method, selector, value string) error {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Method: method, Selector: selector, Value: value})
	p.mu.Unlock()

	key := method + ":" + selector
	if p.PanicOn[key] {
		panic("scripted panic at " + key)
	}
	if err, ok := p.FailOn[key]; ok {
		return err
	}
	return nil
}

func (p *Page) AllowDownloads(_ context.Context, dir string) error {
	if err := p.record("AllowDownloads", "", dir); err != nil {
		return err
	}
	p.mu.Lock()
	p.downloadDir = dir
	p.mu.Unlock()
	return nil
}

func (p *Page) Navigate(_ context.Context, url string) error {
	return p.record("Navigate", "", url)
}

func (p *Page) Type(_ context.Context, selector, text string) error {
	return p.record("Type", selector, text)
}

func (p *Page) SetValue(_ context.Context, selector, value string) error {
	return p.record("SetValue", selector, value)
}

func (p *Page) Click(_ context.Context, selector string) error {
	if err := p.record("Click", selector, ""); err != nil {
		return err
	}
	if selector != p.DownloadTrigger || p.DownloadName == "" {
		return nil
	}
	p.mu.Lock()
	dir := p.downloadDir
	p.mu.Unlock()
	content := p.DownloadContent
	if content == nil {
		content = []byte("%PDF-1.4 fake")
	}
	return os.WriteFile(filepath.Join(dir, p.DownloadName), content, 0o600)
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closeCount++
	p.mu.Unlock()
	return nil
}

// Calls returns the recorded actions in order.
func (p *Page) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CloseCount reports how many times Close was called.
func (p *Page) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCount
}

// DownloadDir is the folder passed to AllowDownloads.
func (p *Page) DownloadDir() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.downloadDir
}
