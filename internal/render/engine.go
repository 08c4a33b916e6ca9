package render

import (
	"context"
	"errors"
	"time"
)

// ErrNotReady is returned when the page does not signal readiness in time.
var ErrNotReady = errors.New("render: page not ready")

// Engine launches isolated headless browser sessions. Every call starts a new
// browser; nothing is shared between sessions.
type Engine interface {
	// Launch starts a browser with the given viewport. initScripts run in
	// every document before any page script.
	Launch(ctx context.Context, vp Viewport, initScripts []string) (Page, error)
}

// Page is one browser tab driven by a worker.
type Page interface {
	Navigate(url string) error
	// WaitReady blocks until window.appReady is true, failing with
	// ErrNotReady after timeout.
	WaitReady(timeout time.Duration) error
	// Eval calls the JS function expression js with args and waits for it,
	// including any returned promise.
	Eval(js string, args ...any) error
	// Capture returns a JPEG of the current viewport.
	Capture() ([]byte, error)
	// Close shuts down the tab and its browser.
	Close() error
}
