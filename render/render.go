// CLAUDE:SUMMARY Headless Chrome renderer (go-rod + stealth): lazy launch or remote connect, per-page timeout, resource blocking, outer HTML capture.
// Package render loads JavaScript-built catalog pages in headless Chrome and
// returns the rendered DOM for the listing and detail parsers.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// ErrClosed is returned by Render after Close.
var ErrClosed = errors.New("render: closed")

// Config configures the renderer.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local headless Chrome on first use.
	RemoteURL string `yaml:"remote_url"`

	// Timeout bounds navigation and load of one page. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`

	// Settle is how long to wait after load for late tiles. Default: 0.
	Settle time.Duration `yaml:"settle"`

	// ScrollRounds scrolls to the bottom this many times to trigger
	// lazy-loaded tiles.
	ScrollRounds int `yaml:"scroll_rounds"`

	// BlockResources lists resource types to drop: images, fonts, media,
	// stylesheets, or any raw CDP resource type.
	BlockResources []string `yaml:"block_resources"`
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Renderer owns one Chrome instance. It is safe for concurrent use; pages
// are rendered in separate tabs.
type Renderer struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// New returns a Renderer. Chrome is started by the first Render call.
func New(cfg Config, logger *slog.Logger) *Renderer {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{cfg: cfg, logger: logger}
}

// Render navigates to pageURL in a fresh stealth tab and returns the outer
// HTML of the document once loaded.
func (r *Renderer) Render(ctx context.Context, pageURL string) ([]byte, error) {
	b, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("render: create tab: %w", err)
	}
	defer page.Close()

	if len(r.cfg.BlockResources) > 0 {
		router := blockResources(page, r.cfg.BlockResources)
		defer router.Stop()
	}

	navCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	p := page.Context(navCtx)

	if err := p.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("render: navigate %s: %w", pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		r.logger.Warn("render: wait load", "url", pageURL, "error", err)
	}

	for i := 0; i < r.cfg.ScrollRounds; i++ {
		if _, err := p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			r.logger.Debug("render: scroll failed", "url", pageURL, "error", err)
			break
		}
		if err := sleep(navCtx, 500*time.Millisecond); err != nil {
			break
		}
	}
	if r.cfg.Settle > 0 {
		if err := sleep(navCtx, r.cfg.Settle); err != nil {
			return nil, fmt.Errorf("render: settle %s: %w", pageURL, err)
		}
	}

	res, err := p.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("render: get DOM %s: %w", pageURL, err)
	}
	html := res.Value.Str()
	r.logger.Debug("render: page rendered", "url", pageURL, "bytes", len(html))
	return []byte(html), nil
}

// Close shuts Chrome down. Further Render calls return ErrClosed.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	return err
}

func (r *Renderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if r.browser != nil {
		return r.browser, nil
	}

	wsURL := r.cfg.RemoteURL
	if wsURL != "" {
		r.logger.Info("render: connecting to remote chrome", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("render: launch: %w", err)
		}
		wsURL = u
		r.lnch = l
		r.logger.Info("render: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if r.lnch != nil {
			r.lnch.Cleanup()
			r.lnch = nil
		}
		return nil, fmt.Errorf("render: connect: %w", err)
	}
	r.browser = b
	return b, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
