// CLAUDE:SUMMARY Headless Chrome renderer (rod + stealth) used to import pages whose static HTML is an SPA shell.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserConfig configures the headless renderer.
type BrowserConfig struct {
	// RemoteURL is the DevTools websocket of a running Chrome.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// NavTimeout bounds navigation and load. Default: 30s.
	NavTimeout time.Duration

	// BlockResources lists resource types never downloaded while
	// rendering. Default: images, fonts, media.
	BlockResources []string

	Logger *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.BlockResources == nil {
		c.BlockResources = []string{"image", "font", "media"}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser renders pages in a lazily started Chrome. Safe for concurrent use.
type Browser struct {
	cfg     BrowserConfig
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewBrowser returns a renderer; Chrome starts on the first Render.
func NewBrowser(cfg BrowserConfig) *Browser {
	cfg.defaults()
	return &Browser{cfg: cfg}
}

func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	wsURL := b.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("fetch: launch chrome: %w", err)
		}
		wsURL = u
		b.lnch = l
		b.cfg.Logger.Info("fetch: launched local chrome", "url", wsURL)
	}

	rb := rod.New().ControlURL(wsURL)
	if err := rb.Connect(); err != nil {
		return nil, fmt.Errorf("fetch: connect chrome: %w", err)
	}
	b.browser = rb
	return rb, nil
}

// Render opens pageURL in a stealth tab and returns the outer HTML of the
// document element once the page has loaded.
func (b *Browser) Render(ctx context.Context, pageURL string) ([]byte, error) {
	rb, err := b.connect()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(rb)
	if err != nil {
		return nil, fmt.Errorf("fetch: create tab: %w", err)
	}
	defer page.Close()

	if len(b.cfg.BlockResources) > 0 {
		router := page.HijackRequests()
		blocked := make(map[proto.NetworkResourceType]bool, len(b.cfg.BlockResources))
		for _, t := range b.cfg.BlockResources {
			blocked[resourceType(t)] = true
		}
		router.MustAdd("*", func(h *rod.Hijack) {
			if blocked[h.Request.Type()] {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
			h.ContinueRequest(&proto.FetchContinueRequest{})
		})
		go router.Run()
		defer router.Stop()
	}

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavTimeout)
	defer cancel()

	p := page.Context(navCtx)
	if err := p.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("fetch: navigate %s: %w", pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		b.cfg.Logger.Warn("fetch: wait load timeout", "url", pageURL, "error", err)
	}

	res, err := p.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("fetch: read DOM: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// Close shuts Chrome down, including a locally launched process.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Kill()
		b.lnch = nil
	}
	return err
}

func resourceType(name string) proto.NetworkResourceType {
	switch name {
	case "image", "images":
		return proto.NetworkResourceTypeImage
	case "font", "fonts":
		return proto.NetworkResourceTypeFont
	case "media":
		return proto.NetworkResourceTypeMedia
	case "stylesheet", "stylesheets":
		return proto.NetworkResourceTypeStylesheet
	}
	return proto.NetworkResourceType(name)
}
