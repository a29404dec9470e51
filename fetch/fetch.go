// Package fetch acquires HTML documents for import. A plain HTTP GET is
// tried first; when the body looks like an SPA shell and a Renderer is
// configured, the page is rendered in a headless browser instead.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/surgeon/safe"
)

// ErrStatus is returned for non-2xx responses.
var ErrStatus = errors.New("fetch: unexpected status")

const maxBody = 10 << 20

// Result is the outcome of a fetch.
type Result struct {
	URL        string `json:"url"`
	HTML       []byte `json:"-"`
	StatusCode int    `json:"status_code"`
	Sufficient bool   `json:"sufficient"`
	Rendered   bool   `json:"rendered"` // true when the HTML came from the browser
}

// Renderer returns the serialised DOM of a page after scripts ran.
type Renderer interface {
	Render(ctx context.Context, pageURL string) ([]byte, error)
}

// Fetcher performs HTTP GETs with optional browser escalation.
type Fetcher struct {
	client   *http.Client
	ua       string
	renderer Renderer
	logger   *slog.Logger

	allowPrivate bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.client.Timeout = d }
}

// WithRenderer enables escalation of insufficient pages.
func WithRenderer(r Renderer) Option {
	return func(f *Fetcher) { f.renderer = r }
}

// WithAllowPrivate disables the private-address guard. Tests against
// loopback servers and intranet deployments need it.
func WithAllowPrivate() Option {
	return func(f *Fetcher) { f.allowPrivate = true }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		ua:     "Mozilla/5.0 (compatible; Surgeon/1.0)",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch GETs pageURL and escalates to the renderer when the body is
// insufficient. A failed render falls back to the static body.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	if !f.allowPrivate {
		if err := safe.ValidateURL(ctx, pageURL); err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrStatus, pageURL, resp.StatusCode)
	}

	body, err := safe.LimitedReadAll(resp.Body, maxBody)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}

	res := &Result{
		URL:        pageURL,
		HTML:       body,
		StatusCode: resp.StatusCode,
		Sufficient: IsSufficient(body),
	}
	f.logger.Debug("fetch: fetched",
		"url", pageURL, "status", resp.StatusCode,
		"size", len(body), "sufficient", res.Sufficient)

	if res.Sufficient || f.renderer == nil {
		return res, nil
	}

	rendered, err := f.renderer.Render(ctx, pageURL)
	if err != nil {
		f.logger.Warn("fetch: render failed, keeping static body", "url", pageURL, "error", err)
		return res, nil
	}
	res.HTML = rendered
	res.Rendered = true
	res.Sufficient = IsSufficient(rendered)
	f.logger.Debug("fetch: rendered", "url", pageURL, "size", len(rendered))
	return res, nil
}
