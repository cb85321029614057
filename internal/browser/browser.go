// Package browser owns the process-wide headless browser and hands out isolated pages.
package browser

import "context"

// Engine is a running browser from which pages are opened.
type Engine interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one isolated browsing context. Every method blocks until the
// browser acknowledged the action.
type Page interface {
	// AllowDownloads makes any download land in dir, which must be absolute.
	AllowDownloads(ctx context.Context, dir string) error
	// Navigate loads url and waits for the network to go quiet.
	Navigate(ctx context.Context, url string) error
	// Type sends keystrokes to the element matched by the CSS selector.
	Type(ctx context.Context, selector, text string) error
	// SetValue assigns the value property of the matched element without key events.
	SetValue(ctx context.Context, selector, value string) error
	// Click clicks the matched element.
	Click(ctx context.Context, selector string) error
	// Close releases the page. It is safe to call more than once.
	Close() error
}
